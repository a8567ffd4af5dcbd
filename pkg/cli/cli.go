package cli

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/zurustar/midikit/pkg/stream"
)

// サブコマンド
const (
	CommandDump    = "dump"
	CommandInfo    = "info"
	CommandRewrite = "rewrite"
	CommandDecode  = "decode"
)

// Config はコマンドライン引数から解析された設定を保持する
type Config struct {
	Command   string             // サブコマンド（dump, info, rewrite, decode）
	Input     string             // 入力ファイル（decodeでは"-"で標準入力）
	Output    string             // rewriteの出力ファイル
	LogLevel  string             // ログレベル（debug, info, warn, error）
	Absolute  bool               // 絶対ティックで表示
	Charset   string             // テキストメタイベントの文字コード
	Ignore    stream.IgnoreFlags // decodeで無視するメッセージ
	QueueSize int                // decodeのキュー容量
	ChunkSize int                // decodeで一度に投入するバイト数
	ShowHelp  bool               // ヘルプ表示フラグ
}

// ParseArgs コマンドライン引数を解析してConfigを返す
func ParseArgs(args []string) (*Config, error) {
	// 引数を並べ替え：フラグを前に、位置引数を後ろに
	reorderedArgs := reorderArgs(args)

	fs := flag.NewFlagSet("smftool", flag.ContinueOnError)

	config := &Config{}

	var ignore string
	fs.StringVar(&config.Output, "output", "", "出力ファイル")
	fs.StringVar(&config.Output, "o", "", "出力ファイル（短縮形）")
	fs.StringVar(&config.LogLevel, "log-level", "info", "ログレベル（debug, info, warn, error）")
	fs.StringVar(&config.LogLevel, "l", "info", "ログレベル（短縮形）")
	fs.BoolVar(&config.Absolute, "absolute", false, "絶対ティックで表示")
	fs.BoolVar(&config.Absolute, "a", false, "絶対ティックで表示（短縮形）")
	fs.StringVar(&config.Charset, "charset", "", "テキストの文字コード")
	fs.StringVar(&config.Charset, "c", "", "テキストの文字コード（短縮形）")
	fs.StringVar(&ignore, "ignore", "", "無視するメッセージ（sysex,time,sense,all,none）")
	fs.IntVar(&config.QueueSize, "queue", stream.DefaultQueueSize, "キュー容量")
	fs.IntVar(&config.ChunkSize, "chunk", 64, "一度に投入するバイト数")
	fs.BoolVar(&config.ShowHelp, "help", false, "ヘルプを表示")
	fs.BoolVar(&config.ShowHelp, "h", false, "ヘルプを表示（短縮形）")

	if err := fs.Parse(reorderedArgs); err != nil {
		return nil, err
	}

	// 環境変数からログレベルを取得（コマンドラインフラグが優先）
	if config.LogLevel == "info" {
		if logLevelEnv := os.Getenv("LOG_LEVEL"); logLevelEnv != "" {
			config.LogLevel = strings.ToLower(logLevelEnv)
		}
	}

	// 環境変数から文字コードを取得（コマンドラインフラグが優先）
	if config.Charset == "" {
		config.Charset = os.Getenv("SMFTOOL_CHARSET")
	}

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

	flags, err := ParseIgnore(ignore)
	if err != nil {
		return nil, err
	}
	config.Ignore = flags

	if config.QueueSize <= 0 {
		return nil, fmt.Errorf("queue size must be positive, got %d", config.QueueSize)
	}
	if config.ChunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", config.ChunkSize)
	}

	if config.ShowHelp {
		return config, nil
	}

	// 位置引数（サブコマンドと入力ファイル）
	if fs.NArg() == 0 {
		return nil, fmt.Errorf("missing command")
	}
	config.Command = fs.Arg(0)
	switch config.Command {
	case CommandDump, CommandInfo, CommandRewrite, CommandDecode:
	default:
		return nil, fmt.Errorf("unknown command: %s", config.Command)
	}
	if fs.NArg() < 2 {
		return nil, fmt.Errorf("%s: missing input file", config.Command)
	}
	config.Input = fs.Arg(1)
	if config.Input == "-" && config.Command != CommandDecode {
		return nil, fmt.Errorf("%s: standard input is only supported by decode", config.Command)
	}
	if config.Command == CommandRewrite && config.Output == "" {
		return nil, fmt.Errorf("rewrite: missing -o output file")
	}

	return config, nil
}

// ParseIgnore カンマ区切りの名前をIgnoreFlagsに変換する
func ParseIgnore(s string) (stream.IgnoreFlags, error) {
	flags := stream.IgnoreNone
	if strings.TrimSpace(s) == "" {
		return flags, nil
	}
	for _, name := range strings.Split(s, ",") {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "sysex":
			flags |= stream.IgnoreSysEx
		case "time":
			flags |= stream.IgnoreTime
		case "sense":
			flags |= stream.IgnoreActiveSensing
		case "all":
			flags |= stream.IgnoreAll
		case "none":
		default:
			return 0, fmt.Errorf("invalid ignore value: %s (must be sysex, time, sense, all, or none)", name)
		}
	}
	return flags, nil
}

// reorderArgs 引数を並べ替えて、フラグを前に、位置引数を後ろに配置する
func reorderArgs(args []string) []string {
	var flags []string
	var positional []string

	boolFlags := map[string]bool{
		"-h": true, "--help": true, "-help": true,
		"-a": true, "--absolute": true, "-absolute": true,
	}

	for i := 0; i < len(args); i++ {
		arg := args[i]

		// "-"単体は標準入力を表す位置引数
		if len(arg) > 1 && arg[0] == '-' {
			flags = append(flags, arg)

			// 次の引数が値である可能性をチェック（-o out.mid のような場合）
			if !boolFlags[arg] && !strings.Contains(arg, "=") && i+1 < len(args) && args[i+1] != "" && (args[i+1][0] != '-' || args[i+1] == "-") {
				i++
				flags = append(flags, args[i])
			}
		} else {
			// 位置引数
			positional = append(positional, arg)
		}
	}

	// フラグを前に、位置引数を後ろに配置
	return append(flags, positional...)
}

// PrintHelp ヘルプメッセージを表示
func PrintHelp() {
	fmt.Fprintf(os.Stdout, `smftool - Standard MIDI File / MIDI byte stream tool

Usage:
  smftool [options] <command> <file>

Commands:
  dump <file>              全イベントを表示
  info <file>              フォーマット、分解能、トラック数、演奏時間を表示
  rewrite -o <out> <file>  読み込んだファイルを書き出し直す
  decode <file|->          生のMIDIバイト列をストリームデコーダで解析

Options:
  -o, --output <file>      rewriteの出力ファイル
  -a, --absolute           絶対ティックで表示（dump）
  -c, --charset <name>     テキストの文字コード: utf-8, shift_jis, euc-jp, latin1
  --ignore <list>          decodeで無視: sysex, time, sense, all, none
  --queue <n>              decodeのキュー容量（デフォルト: 1024）
  --chunk <n>              decodeで一度に投入するバイト数（デフォルト: 64）
  -l, --log-level <level>  ログレベル: debug, info, warn, error（デフォルト: info）
  -h, --help               このヘルプを表示

Environment Variables:
  LOG_LEVEL=<level>        ログレベル
  SMFTOOL_CHARSET=<name>   テキストの文字コード

Examples:
  smftool dump song.mid                  イベントを表示
  smftool dump -c shift_jis song.mid     Shift_JISのテキストを表示
  smftool info song.mid                  概要を表示
  smftool rewrite -o out.mid song.mid    書き出し直す
  smftool decode --ignore sense dump.syx  生バイト列を解析
`)
}
