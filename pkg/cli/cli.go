package cli

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config はコマンドライン引数から解析された設定を保持する
type Config struct {
	Paths          []string      // フローチャート文書（ファイルまたはディレクトリ）
	Timeout        time.Duration // タイムアウト時間（0は無制限）
	LogLevel       string        // ログレベル（debug, info, warn, error）
	LogFormat      string        // ログ形式（text, json）
	Headless       bool          // ヘッドレスモード
	AutoAdvance    bool          // ヘッドレス時に台詞を自動で進める
	StartFlowchart string        // 開始ブロックのフローチャート名（空なら最初のフローチャート）
	StartBlock     string        // 開始ブロック名
	Message        string        // 開始時にブロードキャストするメッセージ
	Tick           time.Duration // ドライバのティック間隔
	Budget         int           // 1ティックあたりのコマンド実行上限
	Encoding       string        // 文書の文字コード
	SoundFont      string        // SoundFontファイルのパス
	MetricsAddr    string        // /metrics の待ち受けアドレス（空なら無効）
	ShowHelp       bool          // ヘルプ表示フラグ
}

// boolFlags は値を取らないフラグ
var boolFlags = map[string]bool{
	"-h": true, "--h": true, "-help": true, "--help": true,
	"-headless": true, "--headless": true,
	"-auto-advance": true, "--auto-advance": true,
}

// ParseArgs コマンドライン引数を解析してConfigを返す
func ParseArgs(args []string) (*Config, error) {
	// 引数を並べ替え：フラグを前に、位置引数を後ろに
	reorderedArgs := reorderArgs(args)

	fs := flag.NewFlagSet("flowrun", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	config := &Config{}

	var (
		timeoutSec int
		tickMs     int
		block      string
	)
	fs.IntVar(&timeoutSec, "timeout", 0, "タイムアウト時間（秒）")
	fs.IntVar(&timeoutSec, "t", 0, "タイムアウト時間（秒）（短縮形）")
	fs.StringVar(&config.LogLevel, "log-level", "info", "ログレベル（debug, info, warn, error）")
	fs.StringVar(&config.LogLevel, "l", "info", "ログレベル（短縮形）")
	fs.StringVar(&config.LogFormat, "log-format", "text", "ログ形式（text, json）")
	fs.BoolVar(&config.Headless, "headless", false, "ヘッドレスモード")
	fs.BoolVar(&config.AutoAdvance, "auto-advance", false, "台詞を自動で進める")
	fs.StringVar(&block, "block", "", "開始ブロック（Flowchart/Block）")
	fs.StringVar(&config.Message, "message", "", "開始時にブロードキャストするメッセージ")
	fs.IntVar(&tickMs, "tick", 16, "ティック間隔（ミリ秒）")
	fs.IntVar(&config.Budget, "budget", 1000, "1ティックあたりのコマンド実行上限")
	fs.StringVar(&config.Encoding, "encoding", "utf-8", "文書の文字コード")
	fs.StringVar(&config.SoundFont, "soundfont", "", "SoundFontファイルのパス")
	fs.StringVar(&config.MetricsAddr, "metrics", "", "メトリクスの待ち受けアドレス")
	fs.BoolVar(&config.ShowHelp, "help", false, "ヘルプを表示")
	fs.BoolVar(&config.ShowHelp, "h", false, "ヘルプを表示（短縮形）")

	if err := fs.Parse(reorderedArgs); err != nil {
		return nil, err
	}
	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	// 環境変数からの設定（コマンドラインフラグが優先）
	if !config.Headless {
		if headlessEnv := os.Getenv("HEADLESS"); headlessEnv != "" {
			config.Headless = headlessEnv == "1" || strings.ToLower(headlessEnv) == "true"
		}
	}
	if !set["timeout"] && !set["t"] {
		if timeoutEnv := os.Getenv("TIMEOUT"); timeoutEnv != "" {
			if t, err := strconv.Atoi(timeoutEnv); err == nil && t > 0 {
				timeoutSec = t
			}
		}
	}
	if !set["log-level"] && !set["l"] {
		if logLevelEnv := os.Getenv("LOG_LEVEL"); logLevelEnv != "" {
			config.LogLevel = strings.ToLower(logLevelEnv)
		}
	}
	if !set["log-format"] {
		if formatEnv := os.Getenv("LOG_FORMAT"); formatEnv != "" {
			config.LogFormat = strings.ToLower(formatEnv)
		}
	}
	if config.SoundFont == "" {
		config.SoundFont = os.Getenv("SOUNDFONT")
	}
	if config.MetricsAddr == "" {
		config.MetricsAddr = os.Getenv("METRICS_ADDR")
	}

	// タイムアウトの検証
	if timeoutSec < 0 {
		return nil, fmt.Errorf("timeout must be non-negative, got %d", timeoutSec)
	}
	config.Timeout = time.Duration(timeoutSec) * time.Second

	// ログレベルの検証
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[config.LogLevel] {
		return nil, fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", config.LogLevel)
	}
	if config.LogFormat != "text" && config.LogFormat != "json" {
		return nil, fmt.Errorf("invalid log format: %s (must be text or json)", config.LogFormat)
	}

	if tickMs <= 0 {
		return nil, fmt.Errorf("tick must be positive, got %d", tickMs)
	}
	config.Tick = time.Duration(tickMs) * time.Millisecond
	if config.Budget <= 0 {
		return nil, fmt.Errorf("budget must be positive, got %d", config.Budget)
	}

	// 開始ブロック "Flowchart/Block" または "Block"
	if block != "" {
		if fc, b, ok := strings.Cut(block, "/"); ok {
			config.StartFlowchart, config.StartBlock = fc, b
		} else {
			config.StartBlock = block
		}
		if config.StartBlock == "" {
			return nil, fmt.Errorf("invalid start block: %q", block)
		}
	}

	// 位置引数（フローチャート文書のパス）
	config.Paths = append([]string{}, fs.Args()...)

	return config, nil
}

// reorderArgs 引数を並べ替えて、フラグを前に、位置引数を後ろに配置する
func reorderArgs(args []string) []string {
	var flags []string
	var positional []string

	for i := 0; i < len(args); i++ {
		arg := args[i]

		if arg == "--" {
			positional = append(positional, args[i+1:]...)
			break
		}

		// フラグかどうかを判定（-または--で始まる）
		if len(arg) > 1 && arg[0] == '-' {
			flags = append(flags, arg)

			// --name=value の形式は次の引数を取らない
			if strings.Contains(arg, "=") || boolFlags[arg] {
				continue
			}
			// 次の引数が値である可能性をチェック（-t 5 のような場合）
			if i+1 < len(args) && len(args[i+1]) > 0 && args[i+1][0] != '-' {
				i++
				flags = append(flags, args[i])
			}
		} else {
			// 位置引数
			positional = append(positional, arg)
		}
	}

	// フラグを前に、位置引数を後ろに配置
	if len(positional) == 0 {
		return flags
	}
	return append(append(flags, "--"), positional...)
}

// PrintHelp ヘルプメッセージを表示
func PrintHelp() {
	fmt.Fprint(os.Stdout, helpText)
}

const helpText = `flowrun - flowchart runner

Usage:
  flowrun [options] <document-or-directory>...

Arguments:
  document-or-directory   フローチャート文書（.toml / .json）またはそれを含むディレクトリ
                          ディレクトリを指定した場合、配下の文書をすべて読み込む

Options:
  -t, --timeout <seconds>     指定秒数後にプログラムを終了（デフォルト: 無制限）
  -l, --log-level <level>     ログレベル: debug, info, warn, error（デフォルト: info）
  --log-format <format>       ログ形式: text, json（デフォルト: text）
  --headless                  ヘッドレスモード（GUIなし、台詞は標準出力）
  --auto-advance              ヘッドレス時に入力を待たず台詞を進める
  --block <Flowchart/Block>   開始時に実行するブロック
  --message <name>            開始時にブロードキャストするメッセージ
  --tick <ms>                 ティック間隔（デフォルト: 16）
  --budget <n>                1ティックあたりのコマンド実行上限（デフォルト: 1000）
  --encoding <name>           文書の文字コード（例: shift_jis、デフォルト: utf-8）
  --soundfont <path>          SoundFontファイル（.sf2）
  --metrics <addr>            Prometheusメトリクスを公開（例: :9090）
  -h, --help                  このヘルプを表示

Environment Variables:
  HEADLESS=1                  ヘッドレスモードを有効化
  TIMEOUT=<seconds>           タイムアウト時間（秒）
  LOG_LEVEL=<level>           ログレベル
  LOG_FORMAT=<format>         ログ形式
  SOUNDFONT=<path>            SoundFontファイル
  METRICS_ADDR=<addr>         メトリクスの待ち受けアドレス

Examples:
  flowrun flows/                      ディレクトリ内の文書をすべて実行
  flowrun intro.toml --headless       ヘッドレスモードで実行
  flowrun flows --block Intro/Start   Intro の Start ブロックから開始
  flowrun flows --message begin       開始時に begin を送信
  flowrun --encoding shift_jis old/   Shift_JIS の文書を読み込む
`
