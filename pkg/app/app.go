// Package app wires the flowrun components together: configuration,
// logging, document loading, the flowchart registry, music, metrics and
// one of the two front-ends.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/zurustar/flowrun/pkg/audio"
	"github.com/zurustar/flowrun/pkg/cli"
	"github.com/zurustar/flowrun/pkg/commands"
	"github.com/zurustar/flowrun/pkg/document"
	"github.com/zurustar/flowrun/pkg/fileutil"
	"github.com/zurustar/flowrun/pkg/flow"
	"github.com/zurustar/flowrun/pkg/logger"
	"github.com/zurustar/flowrun/pkg/metrics"
	"github.com/zurustar/flowrun/pkg/runner"
	"github.com/zurustar/flowrun/pkg/window"
)

// DemoDir is the directory of the embedded file system holding the
// documents run when no path is given.
const DemoDir = "demo"

// Application はアプリケーションのメインロジックを管理する
type Application struct {
	config  *cli.Config
	log     *slog.Logger
	embedFS fs.FS

	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

// source は読み込み対象の文書（ファイルシステムとその中の名前）
type source struct {
	fs   fileutil.FileSystem
	name string
	dir  string // 実ディレクトリ（埋め込みの場合は空）
}

// New Applicationを作成。embedFS は DemoDir を含む埋め込みファイルシステム（nil可）
func New(embedFS fs.FS) *Application {
	return &Application{
		embedFS: embedFS,
		stdin:   os.Stdin,
		stdout:  os.Stdout,
		stderr:  os.Stderr,
	}
}

// Run アプリケーションを実行
func (app *Application) Run(args []string) error {
	// 1. コマンドライン引数の解析
	config, err := cli.ParseArgs(args)
	if err != nil {
		return fmt.Errorf("failed to parse args: %w", err)
	}
	app.config = config

	if app.config.ShowHelp {
		cli.PrintHelp()
		return nil
	}

	// 2. ロガーの初期化（台詞は標準出力に出るのでログは標準エラー出力）
	if err := logger.InitLoggerWithOptions(config.LogLevel, config.LogFormat, app.stderr); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	app.log = logger.GetLogger()
	app.log.Info("Application started", "headless", config.Headless)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. 文書の読み込み
	sources, err := app.sources()
	if err != nil {
		return err
	}
	docs, err := app.loadDocuments(sources)
	if err != nil {
		return fmt.Errorf("failed to load documents: %w", err)
	}

	// 4. レジストリと観測
	opts := []flow.Option{flow.WithLogger(app.log), flow.WithStepBudget(config.Budget)}
	if config.MetricsAddr != "" {
		obs := metrics.New()
		opts = append(opts, flow.WithObserver(obs))
		go func() {
			if err := obs.Serve(ctx, config.MetricsAddr, app.log); err != nil {
				app.log.Error("Metrics server failed", "addr", config.MetricsAddr, "error", err)
			}
		}()
	}
	reg := flow.NewRegistry(opts...)

	// 5. 音楽とダイアログ
	jukebox := audio.NewJukebox(app.newPlayer(sources), app.log)
	defer jukebox.Close()

	env := &commands.Env{Music: jukebox}
	var board *window.Board
	if config.Headless {
		env.Dialogue = window.NewConsole(reg, app.stdin, app.stdout, config.AutoAdvance)
	} else {
		board = window.NewBoard()
		env.Dialogue = board
	}

	// 6. フローチャートの構築
	charts, err := document.Build(reg, env, docs...)
	if err != nil {
		return fmt.Errorf("failed to build flowcharts: %w", err)
	}
	names := make([]string, len(charts))
	for i, fc := range charts {
		names[i] = fc.Name()
	}
	app.log.Info("Flowcharts loaded", "count", len(charts), "names", names)

	// 開始トリガーの後に実行する
	if kick := app.kickoff(reg, charts); kick != nil {
		reg.Invoke(kick)
	}

	r := runner.New(reg,
		runner.WithInterval(config.Tick),
		runner.WithTimeout(config.Timeout),
		runner.WithMusic(jukebox),
		runner.WithLogger(app.log),
	)

	// 7. 実行
	if config.Headless {
		err = r.Run(ctx)
	} else {
		err = window.Run(window.NewGame(r, board), "flowrun - "+strings.Join(names, ", "))
	}
	switch {
	case errors.Is(err, runner.ErrTimeout):
		app.log.Info("Timeout reached, terminating", "timeout", config.Timeout)
	case errors.Is(err, context.Canceled):
		app.log.Info("Interrupted, terminating")
	case err != nil:
		return fmt.Errorf("failed to run flowcharts: %w", err)
	}

	app.log.Info("Application terminated normally", "elapsed", r.Elapsed(), "ticks", r.Ticks())
	return nil
}

// sources 位置引数から読み込み対象を決める。引数がなければ埋め込みデモ
func (app *Application) sources() ([]source, error) {
	if len(app.config.Paths) == 0 {
		if app.embedFS == nil {
			return nil, errors.New("no flowchart documents given")
		}
		sub, err := fs.Sub(app.embedFS, DemoDir)
		if err != nil {
			return nil, fmt.Errorf("failed to open embedded demo: %w", err)
		}
		app.log.Info("No documents given, running embedded demo")
		return []source{{fs: fileutil.NewFS(sub, DemoDir), name: "."}}, nil
	}

	var out []source
	for _, p := range app.config.Paths {
		info, err := os.Stat(p)
		if err != nil {
			// 大文字小文字の違いだけならローダーが解決する
			if _, ferr := fileutil.FindFileCaseInsensitive(filepath.Dir(p), filepath.Base(p)); ferr != nil {
				return nil, fmt.Errorf("failed to open %s: %w", p, err)
			}
		}
		if info != nil && info.IsDir() {
			out = append(out, source{fs: fileutil.NewDirFS(p), name: ".", dir: p})
			continue
		}
		dir := filepath.Dir(p)
		out = append(out, source{fs: fileutil.NewDirFS(dir), name: filepath.Base(p), dir: dir})
	}
	return out, nil
}

func (app *Application) loadDocuments(sources []source) ([]*document.Document, error) {
	var docs []*document.Document
	for _, src := range sources {
		loader := document.NewLoader(src.fs,
			document.WithEncoding(app.config.Encoding),
			document.WithLogger(app.log),
		)
		loaded, err := loader.Load(src.name)
		if err != nil {
			return nil, err
		}
		docs = append(docs, loaded...)
	}
	app.log.Info("Documents loaded", "count", len(docs))
	return docs, nil
}

// newPlayer 音楽プレイヤーを選ぶ。音楽ファイルは最初の文書と同じ場所から読む
func (app *Application) newPlayer(sources []source) audio.Player {
	musicFS := sources[0].fs
	if app.config.Headless {
		return audio.NewSilentPlayer(musicFS)
	}

	var dirs []string
	for _, src := range sources {
		if src.dir != "" {
			dirs = append(dirs, src.dir)
		}
	}
	loc, err := findSoundFont(app.embedFS, app.config.SoundFont, dirs)
	if err != nil {
		app.log.Warn("SoundFont unavailable, music is silent", "error", err)
		return audio.NewSilentPlayer(musicFS)
	}
	if loc == nil {
		app.log.Warn("SoundFont not found, music is silent", "name", DefaultSoundFontName)
		return audio.NewSilentPlayer(musicFS)
	}
	data, err := loc.FileSystem.ReadFile(loc.Path)
	if err != nil {
		app.log.Warn("Failed to read SoundFont, music is silent", "path", loc.Path, "error", err)
		return audio.NewSilentPlayer(musicFS)
	}

	player, err := audio.NewDevicePlayer(musicFS, nil, data)
	if err != nil {
		app.log.Warn("Failed to initialize audio device, music is silent", "error", err)
		return audio.NewSilentPlayer(musicFS)
	}
	app.log.Info("SoundFont loaded", "path", loc.Path, "embedded", loc.IsEmbedded)
	return player
}

// kickoff --block と --message の処理を返す。どちらも無ければ nil
func (app *Application) kickoff(reg *flow.Registry, charts []*flow.Flowchart) func() {
	cfg := app.config
	if cfg.StartBlock == "" && cfg.Message == "" {
		return nil
	}
	return func() {
		if cfg.StartBlock != "" {
			if err := startBlock(reg, charts, cfg.StartFlowchart, cfg.StartBlock); err != nil {
				app.log.Error("Failed to start block", "flowchart", cfg.StartFlowchart, "block", cfg.StartBlock, "error", err)
			}
		}
		if cfg.Message != "" {
			reg.Broadcast(cfg.Message)
		}
	}
}

// startBlock 指定ブロックを実行する。フローチャート名が空なら最初のフローチャート
func startBlock(reg *flow.Registry, charts []*flow.Flowchart, fcName, block string) error {
	var fc *flow.Flowchart
	if fcName == "" {
		if len(charts) == 0 {
			return flow.NewFlowchartNotFoundError("")
		}
		fc = charts[0]
	} else {
		var ok bool
		if fc, ok = reg.Flowchart(fcName); !ok {
			return flow.NewFlowchartNotFoundError(fcName)
		}
	}
	return fc.ExecuteBlockByName(block, 0, nil)
}
