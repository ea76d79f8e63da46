// Package window provides the front-ends of flowrun: an ebiten window that
// shows dialogue and turns key presses into key triggers, and a headless
// console dialogue.
package window

import (
	"errors"
	"fmt"
	"image/color"
	"log/slog"
	"strings"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/hajimehoshi/ebiten/v2/text/v2"
	"golang.org/x/image/font/basicfont"

	"github.com/zurustar/flowrun/pkg/flow"
	"github.com/zurustar/flowrun/pkg/logger"
	"github.com/zurustar/flowrun/pkg/runner"
)

const (
	screenWidth  = 640
	screenHeight = 480
	lineHeight   = 16
	margin       = 24
	// wrapColumns は basicfont 7x13 で1行に収まる文字数
	wrapColumns = (screenWidth - 2*margin) / 7
)

var (
	// 背景色 #0087C8
	backgroundColor = color.RGBA{0x00, 0x87, 0xC8, 0xFF}
	// 台詞枠の色
	boxColor = color.RGBA{0x00, 0x30, 0x50, 0xE0}
	// テキスト色（白）
	textColor = color.White
	// 話者名の色（黄色）
	speakerColor = color.RGBA{0xFF, 0xFF, 0x00, 0xFF}
	// 既読行の色
	historyColor = color.RGBA{0xC0, 0xD8, 0xE8, 0xFF}
	// デフォルトフォント
	defaultFace = text.NewGoXFace(basicfont.Face7x13)
)

// input is what the player did during one frame.
type input struct {
	escape  bool
	advance bool
	keys    []string
	mods    []string // 押下中の修飾キー（flow.ModShift など）
}

// Game はEbitengineのゲームインターフェースを実装する
type Game struct {
	runner *runner.Runner
	board  *Board
	log    *slog.Logger
	dt     time.Duration

	started bool
	err     error
	box     *ebiten.Image
}

// NewGame creates a Game driving r. Lines are shown from board.
func NewGame(r *runner.Runner, board *Board) *Game {
	return &Game{
		runner: r,
		board:  board,
		log:    logger.GetLogger(),
		dt:     time.Second / time.Duration(ebiten.DefaultTPS),
	}
}

// Err returns the error that ended the game, if any. Timeouts are
// reported here as runner.ErrTimeout.
func (g *Game) Err() error { return g.err }

// Update ゲームロジックの更新（Ebitengineが毎フレーム呼び出す）
func (g *Game) Update() error {
	return g.update(readInput())
}

var modifierKeys = []struct {
	key  ebiten.Key
	name string
}{
	{ebiten.KeyShift, flow.ModShift},
	{ebiten.KeyControl, flow.ModControl},
	{ebiten.KeyAlt, flow.ModAlt},
}

func readInput() input {
	in := input{
		escape: inpututil.IsKeyJustPressed(ebiten.KeyEscape),
		advance: inpututil.IsMouseButtonJustPressed(ebiten.MouseButtonLeft) ||
			inpututil.IsKeyJustPressed(ebiten.KeyEnter) ||
			inpututil.IsKeyJustPressed(ebiten.KeySpace),
	}
	for _, k := range inpututil.AppendJustPressedKeys(nil) {
		if k == ebiten.KeyEscape {
			continue
		}
		in.keys = append(in.keys, k.String())
	}
	if len(in.keys) > 0 {
		for _, m := range modifierKeys {
			if ebiten.IsKeyPressed(m.key) {
				in.mods = append(in.mods, m.name)
			}
		}
	}
	return in
}

func (g *Game) update(in input) error {
	if in.escape {
		g.log.Info("Escape pressed, exiting")
		g.runner.Terminate()
		return ebiten.Termination
	}

	// 最初のUpdateでフローチャートを開始する
	reg := g.runner.Registry()
	if !g.started {
		g.started = true
		reg.Start()
	}

	advanced := in.advance && g.board.Advance()
	for _, key := range in.keys {
		// 台詞送りに使ったキーはトリガーにしない
		if advanced && (key == ebiten.KeyEnter.String() || key == ebiten.KeySpace.String()) {
			continue
		}
		ev := flow.NewEvent(flow.TriggerKey, key)
		for _, m := range in.mods {
			ev.SetParam(m, true)
		}
		reg.Post(ev)
	}

	if err := g.runner.Step(g.dt); err != nil {
		if !errors.Is(err, runner.ErrTerminated) {
			g.err = err
		}
		reg.StopAll()
		return ebiten.Termination
	}
	if g.runner.Idle() && g.board.Pending() == 0 {
		g.log.Info("All flowcharts idle, exiting", "elapsed", g.runner.Elapsed())
		return ebiten.Termination
	}
	return nil
}

// Draw 画面描画（Ebitengineが毎フレーム呼び出す）
func (g *Game) Draw(screen *ebiten.Image) {
	screen.Fill(backgroundColor)

	y := float64(margin)
	for _, line := range g.board.History() {
		for _, row := range wrap(line.Text, wrapColumns) {
			drawText(screen, row, margin, y, historyColor)
			y += lineHeight
		}
	}

	line, ok := g.board.Current()
	if !ok {
		return
	}
	rows := wrap(line.Text, wrapColumns)
	boxH := (len(rows)+2)*lineHeight + margin
	if g.box == nil || g.box.Bounds().Dy() != boxH {
		g.box = ebiten.NewImage(screenWidth-margin, boxH)
		g.box.Fill(boxColor)
	}
	top := float64(screenHeight - boxH - margin/2)
	op := &ebiten.DrawImageOptions{}
	op.GeoM.Translate(margin/2, top)
	screen.DrawImage(g.box, op)

	y = top + margin/2
	drawText(screen, line.Flowchart+" / "+line.Block, margin, y, speakerColor)
	for _, row := range rows {
		y += lineHeight
		drawText(screen, row, margin, y, textColor)
	}
	hint := "Click or press Enter"
	if n := g.board.Pending(); n > 1 {
		hint = fmt.Sprintf("%s (%d more)", hint, n-1)
	}
	drawText(screen, hint, margin, y+lineHeight, historyColor)
}

func drawText(screen *ebiten.Image, s string, x, y float64, c color.Color) {
	op := &text.DrawOptions{}
	op.GeoM.Translate(x, y)
	op.ColorScale.ScaleWithColor(c)
	text.Draw(screen, s, defaultFace, op)
}

// wrap splits s into rows of at most width runes, breaking at spaces
// where possible and at explicit newlines.
func wrap(s string, width int) []string {
	var rows []string
	for _, para := range strings.Split(s, "\n") {
		runes := []rune(para)
		for len(runes) > width {
			cut := width
			for i := width; i > 0; i-- {
				if runes[i] == ' ' {
					cut = i
					break
				}
			}
			rows = append(rows, strings.TrimRight(string(runes[:cut]), " "))
			runes = []rune(strings.TrimLeft(string(runes[cut:]), " "))
		}
		rows = append(rows, string(runes))
	}
	return rows
}

// Layout 画面サイズを返す
func (g *Game) Layout(outsideWidth, outsideHeight int) (int, int) {
	return screenWidth, screenHeight
}

// Run GUIモードでウィンドウを実行
func Run(g *Game, title string) error {
	ebiten.SetWindowSize(screenWidth, screenHeight)
	ebiten.SetWindowTitle(title)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)

	if err := ebiten.RunGame(g); err != nil {
		return fmt.Errorf("failed to run game: %w", err)
	}
	return g.Err()
}
