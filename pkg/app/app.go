package app

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/sinshu/go-meltysynth/meltysynth"
	"golang.org/x/text/encoding"

	"github.com/zurustar/midikit/pkg/cli"
	"github.com/zurustar/midikit/pkg/logger"
	"github.com/zurustar/midikit/pkg/midi"
	"github.com/zurustar/midikit/pkg/port"
	"github.com/zurustar/midikit/pkg/smf"
	"github.com/zurustar/midikit/pkg/stream"
)

// Application はsmftoolのメインロジックを管理する
type Application struct {
	config *cli.Config
	log    *slog.Logger
	out    io.Writer
	in     io.Reader
	styles styles
}

// styles 出力の装飾
type styles struct {
	header lipgloss.Style
	track  lipgloss.Style
	tick   lipgloss.Style
	text   lipgloss.Style
	warn   lipgloss.Style
}

func newStyles(out io.Writer) styles {
	r := lipgloss.NewRenderer(out)
	return styles{
		header: r.NewStyle().Bold(true).Foreground(lipgloss.Color("12")),
		track:  r.NewStyle().Bold(true).Foreground(lipgloss.Color("10")),
		tick:   r.NewStyle().Foreground(lipgloss.Color("8")).Width(10).Align(lipgloss.Right),
		text:   r.NewStyle().Foreground(lipgloss.Color("11")),
		warn:   r.NewStyle().Foreground(lipgloss.Color("9")),
	}
}

// New Applicationを作成（outに結果を出力、inはdecodeの標準入力）
func New(out io.Writer, in io.Reader) *Application {
	return &Application{
		out:    out,
		in:     in,
		styles: newStyles(out),
	}
}

// Run アプリケーションを実行
func (app *Application) Run(args []string) error {
	// 1. コマンドライン引数の解析
	if err := app.parseArgs(args); err != nil {
		return fmt.Errorf("failed to parse args: %w", err)
	}

	if app.config.ShowHelp {
		cli.PrintHelp()
		return nil
	}

	// 2. ロガーの初期化
	if err := app.initLogger(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	app.log.Debug("Command started", "command", app.config.Command, "input", app.config.Input)

	// 3. サブコマンドの実行
	var err error
	switch app.config.Command {
	case cli.CommandDump:
		err = app.dump()
	case cli.CommandInfo:
		err = app.info()
	case cli.CommandRewrite:
		err = app.rewrite()
	case cli.CommandDecode:
		err = app.decode()
	}
	if err != nil {
		return fmt.Errorf("%s failed: %w", app.config.Command, err)
	}

	app.log.Debug("Command finished", "command", app.config.Command)
	return nil
}

// parseArgs コマンドライン引数を解析
func (app *Application) parseArgs(args []string) error {
	config, err := cli.ParseArgs(args)
	if err != nil {
		return err
	}
	app.config = config
	return nil
}

// initLogger ロガーを初期化
func (app *Application) initLogger() error {
	if err := logger.InitLogger(app.config.LogLevel); err != nil {
		return err
	}
	app.log = logger.GetLogger()
	return nil
}

// readInput 入力ファイルを読み込む（"-"は標準入力）
func (app *Application) readInput() ([]byte, error) {
	if app.config.Input == "-" {
		data, err := io.ReadAll(app.in)
		if err != nil {
			return nil, fmt.Errorf("failed to read standard input: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(app.config.Input)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", app.config.Input, err)
	}
	return data, nil
}

// parseFile SMFを読み込んで解析する（invalidはエラー）
func (app *Application) parseFile(absolute bool) (*smf.Reader, []byte, error) {
	data, err := app.readInput()
	if err != nil {
		return nil, nil, err
	}
	r := smf.NewReader(absolute)
	result := r.Parse(data)
	if result == smf.Invalid {
		return nil, nil, fmt.Errorf("%s is not a Standard MIDI File: %w", app.config.Input, r.Err())
	}
	if result < smf.Validated {
		app.log.Warn("File does not conform to SMF", "file", app.config.Input, "result", result.String(), "reason", r.Err())
	}
	return r, data, nil
}

// dump 全イベントを表示
func (app *Application) dump() error {
	enc, err := midi.LookupCharset(app.config.Charset)
	if err != nil {
		return err
	}
	r, _, err := app.parseFile(app.config.Absolute)
	if err != nil {
		return err
	}

	fmt.Fprintln(app.out, app.styles.header.Render(fmt.Sprintf("format %d, %d tracks, %s, %s",
		r.Format(), r.DeclaredTracks(), r.Division(), r.Result())))

	for i, track := range r.Tracks() {
		fmt.Fprintln(app.out, app.styles.track.Render(fmt.Sprintf("Track %d (%d events, end %d)", i, track.Len(), track.EndTick)))
		for _, ev := range track.Events {
			fmt.Fprintf(app.out, "%s  %s\n", app.styles.tick.Render(fmt.Sprint(ev.Tick)), app.describe(ev.Message, enc))
		}
	}
	if err := r.Err(); err != nil {
		fmt.Fprintln(app.out, app.styles.warn.Render(err.Error()))
	}
	return nil
}

// describe メッセージの表示文字列（テキストメタは文字コードを変換）
func (app *Application) describe(msg midi.Message, enc encoding.Encoding) string {
	if !msg.MetaType().IsText() {
		return msg.String()
	}
	text, err := msg.Text(enc)
	if err != nil {
		app.log.Debug("Failed to decode meta text", "message", msg.Bytes, "error", err)
		return msg.String()
	}
	return fmt.Sprintf("Text[%02X] %s", int(msg.MetaType()), app.styles.text.Render(fmt.Sprintf("%q", text)))
}

// info ファイルの概要を表示
func (app *Application) info() error {
	r, data, err := app.parseFile(false)
	if err != nil {
		return err
	}

	events := 0
	for _, t := range r.Tracks() {
		events += t.Len()
	}
	timing := smf.NewTiming(r.Division(), r.Tracks(), false)

	rows := [][2]string{
		{"file", app.config.Input},
		{"result", r.Result().String()},
		{"format", fmt.Sprint(r.Format())},
		{"tracks", fmt.Sprintf("%d (declared %d)", len(r.Tracks()), r.DeclaredTracks())},
		{"division", r.Division().String()},
		{"events", fmt.Sprint(events)},
		{"tempo changes", fmt.Sprint(len(timing.TempoMap()))},
		{"duration", timing.Duration(r.Tracks()).String()},
		{"reference", referenceLength(data)},
	}
	if err := r.Err(); err != nil {
		rows = append(rows, [2]string{"reason", err.Error()})
	}
	for _, row := range rows {
		fmt.Fprintf(app.out, "%s %s\n", app.styles.header.Render(fmt.Sprintf("%-14s", row[0])), row[1])
	}
	return nil
}

// referenceLength go-meltysynthで計算した演奏時間（比較用）
func referenceLength(data []byte) string {
	mf, err := meltysynth.NewMidiFile(bytes.NewReader(data))
	if err != nil {
		logger.GetLogger().Debug("Reference decoder rejected file", "error", err)
		return "n/a"
	}
	return mf.GetLength().String()
}

// rewrite 読み込んだファイルをWriterで書き出し直す
func (app *Application) rewrite() error {
	r, _, err := app.parseFile(false)
	if err != nil {
		return err
	}

	w := smf.NewWriter(r.TicksPerBeat())
	if r.Division().IsSMPTE() {
		if err := w.SetDivision(r.Division()); err != nil {
			return err
		}
	}
	for _, t := range r.Tracks() {
		events := append([]smf.TrackEvent(nil), t.Events...)
		var last int64
		for _, ev := range events {
			last += ev.Tick
		}
		// End-Of-Trackの位置を保つ
		events = append(events, smf.TrackEvent{Tick: t.EndTick - last, Message: midi.EndOfTrack()})
		if _, err := w.AddTrack(events); err != nil {
			return err
		}
	}

	out := w.Bytes()
	if err := os.WriteFile(app.config.Output, out, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", app.config.Output, err)
	}
	app.log.Info("File rewritten", "input", app.config.Input, "output", app.config.Output, "tracks", w.NumTracks(), "bytes", len(out))
	return nil
}

// decode 生のバイト列をチャンクに分けて投入し、キューから取り出して表示
func (app *Application) decode() error {
	data, err := app.readInput()
	if err != nil {
		return err
	}

	counter := midi.NewCountingReporter()
	reporter := midi.ReporterFunc(func(w midi.Warning) {
		counter.Warn(w)
		midi.DefaultReporter.Warn(w)
	})
	// キャプチャをループバックポートに流し、ドライバと同じ経路でデコードする
	lb := port.NewLoopback(stream.Config{
		Ignore:    app.config.Ignore,
		QueueSize: app.config.QueueSize,
		Reporter:  reporter,
	})
	if err := lb.Open(); err != nil {
		return err
	}
	defer lb.Close()
	d := lb.Decoder()

	messages := 0
	for offset := 0; offset < len(data); offset += app.config.ChunkSize {
		end := min(offset+app.config.ChunkSize, len(data))
		if err := lb.SendRaw(data[offset:end]); err != nil {
			return err
		}
		for {
			msg, ok := lb.Poll()
			if !ok {
				break
			}
			messages++
			fmt.Fprintf(app.out, "%s  %s\n", app.styles.tick.Render(fmt.Sprintf("%.6f", msg.Timestamp)), msg)
		}
	}

	summary := fmt.Sprintf("%d bytes, %d messages, %d dropped, %d warnings", len(data), messages, d.Dropped(), len(counter.Warnings()))
	if d.Dropped() > 0 || len(counter.Warnings()) > 0 {
		fmt.Fprintln(app.out, app.styles.warn.Render(summary))
	} else {
		fmt.Fprintln(app.out, app.styles.header.Render(summary))
	}
	if warnings := counter.Warnings(); len(warnings) > 0 {
		app.log.Debug("Decoder warnings", "kinds", formatWarnings(warnings))
	}
	if d.Pending() {
		app.log.Warn("Input ended inside a message", "input", app.config.Input)
	}
	return nil
}

// formatWarnings 警告の種類ごとの件数（デバッグ用）
func formatWarnings(warnings []midi.Warning) string {
	counts := map[midi.WarningKind]int{}
	var order []midi.WarningKind
	for _, w := range warnings {
		if counts[w.Kind] == 0 {
			order = append(order, w.Kind)
		}
		counts[w.Kind]++
	}
	parts := make([]string, 0, len(order))
	for _, k := range order {
		parts = append(parts, fmt.Sprintf("%s=%d", k, counts[k]))
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
