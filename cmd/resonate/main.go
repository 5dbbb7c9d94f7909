package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/term"

	"github.com/hiway/resonate/pkg/config"
	"github.com/hiway/resonate/pkg/engine"
	"github.com/hiway/resonate/pkg/player"
	"github.com/hiway/resonate/pkg/server"
)

const usage = `usage: resonate [-config file] [-debug] <command> [flags]

commands:
  list                                   list presets
  info <preset>                          show one preset
  render -preset id -minutes m -out f    render a session to a WAV file
  sweep -start hz -end hz -seconds s -out f
                                         render a linear frequency sweep
  play -preset id -minutes m             render and play a session
  analyze [-seconds s] <file>            report the dominant frequency of a WAV file
  batch                                  render the [[jobs]] from the config
  serve [-addr host:port]                run the HTTP render service
`

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("resonate", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { fmt.Fprint(stderr, usage) }
	configPath := fs.String("config", "", "config file (default: search standard locations)")
	debug := fs.Bool("debug", false, "debug logging")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return errors.New("missing command")
	}

	log := newLogger(stderr, zerolog.InfoLevel)
	cfg, err := config.Load(*configPath, log)
	if err != nil {
		return err
	}
	level, _ := zerolog.ParseLevel(cfg.LogLevel)
	if *debug {
		level = zerolog.DebugLevel
	}
	log = log.Level(level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd, cmdArgs := fs.Arg(0), fs.Args()[1:]
	if cmd == "play" {
		return runPlay(ctx, cfg, cmdArgs, stdout, log)
	}

	e, err := engine.New(cfg, nil, log)
	if err != nil {
		return err
	}
	defer e.Close()

	switch cmd {
	case "list":
		return runList(e, stdout)
	case "info":
		return runInfo(e, cmdArgs, stdout)
	case "render":
		return runRender(ctx, e, cmdArgs, stdout)
	case "sweep":
		return runSweep(ctx, e, cmdArgs, stdout)
	case "analyze":
		return runAnalyze(e, cmdArgs, stdout)
	case "batch":
		return runBatch(ctx, e, stdout)
	case "serve":
		return runServe(ctx, e, cmdArgs, log)
	default:
		fs.Usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

// newLogger writes human-readable output to terminals and JSON elsewhere.
func newLogger(w io.Writer, level zerolog.Level) zerolog.Logger {
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		w = zerolog.ConsoleWriter{Out: f, TimeFormat: time.Kitchen}
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

func runList(e *engine.Engine, stdout io.Writer) error {
	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tFREQUENCY\tMINUTES\tNAME\tTITLE")
	for _, p := range e.Presets().All() {
		fmt.Fprintf(tw, "%s\t%.2f Hz\t%g\t%s\t%s\n", p.ID, p.FrequencyHz, p.SessionMinutes, p.Name, p.Title)
	}
	return tw.Flush()
}

func runInfo(e *engine.Engine, args []string, stdout io.Writer) error {
	if len(args) != 1 {
		return errors.New("info takes exactly one preset id")
	}
	p, err := e.Presets().Lookup(args[0])
	if err != nil {
		return err
	}
	return printJSON(stdout, p)
}

func runRender(ctx context.Context, e *engine.Engine, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("render", flag.ContinueOnError)
	id := fs.String("preset", "", "preset id")
	minutes := fs.Float64("minutes", 0, "session length in minutes (default: preset length)")
	out := fs.String("out", "", "output WAV file (default: <preset>.wav)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id == "" {
		return errors.New("render requires -preset")
	}
	if *minutes == 0 {
		p, err := e.Presets().Lookup(*id)
		if err != nil {
			return err
		}
		*minutes = p.SessionMinutes
	}
	if *out == "" {
		*out = *id + ".wav"
	}

	info, path, err := e.RenderSession(ctx, *id, *minutes, *out)
	if err != nil {
		return err
	}
	return printJSON(stdout, map[string]any{"session": info, "output": path})
}

func runSweep(ctx context.Context, e *engine.Engine, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("sweep", flag.ContinueOnError)
	start := fs.Float64("start", 20, "start frequency in Hz")
	end := fs.Float64("end", 2000, "end frequency in Hz")
	seconds := fs.Float64("seconds", 10, "sweep length in seconds")
	out := fs.String("out", "sweep.wav", "output WAV file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	n, path, err := e.RenderSweep(ctx, *start, *end, *seconds, *out)
	if err != nil {
		return err
	}
	return printJSON(stdout, map[string]any{"sample_count": n, "sample_rate": e.SampleRate(), "output": path})
}

func runPlay(ctx context.Context, cfg *config.Config, args []string, stdout io.Writer, log zerolog.Logger) error {
	fs := flag.NewFlagSet("play", flag.ContinueOnError)
	id := fs.String("preset", "", "preset id")
	minutes := fs.Float64("minutes", 1, "session length in minutes")
	stub := fs.Bool("stub", false, "simulate playback without an audio device")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id == "" {
		return errors.New("play requires -preset")
	}

	var p player.Player
	if *stub {
		p = player.NewStubPlayer(cfg.SampleRate, log)
	} else {
		op, err := player.NewOtoPlayer(cfg.SampleRate, log)
		if err != nil {
			return err
		}
		p = op
	}

	e, err := engine.New(cfg, p, log)
	if err != nil {
		return err
	}
	defer e.Close()

	info, err := e.Play(ctx, *id, *minutes)
	if err != nil {
		return err
	}
	return printJSON(stdout, info)
}

func runAnalyze(e *engine.Engine, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("analyze", flag.ContinueOnError)
	seconds := fs.Float64("seconds", 1, "seconds of audio to analyze (0 = whole file)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("analyze takes exactly one WAV file")
	}

	a, err := e.Analyze(fs.Arg(0), *seconds)
	if err != nil {
		return err
	}
	return printJSON(stdout, a)
}

func runBatch(ctx context.Context, e *engine.Engine, stdout io.Writer) error {
	jobs := e.Config().Jobs
	if len(jobs) == 0 {
		return errors.New("no [[jobs]] in configuration")
	}

	results := e.Batch(ctx, jobs)
	type row struct {
		ID          string `json:"id"`
		Output      string `json:"output,omitempty"`
		SampleCount int    `json:"sample_count"`
		Elapsed     string `json:"elapsed"`
		Error       string `json:"error,omitempty"`
	}
	rows := make([]row, len(results))
	failed := 0
	for i, res := range results {
		rows[i] = row{ID: jobs[i].ID, Output: res.Output, SampleCount: res.SampleCount, Elapsed: res.Elapsed.String()}
		if res.Err != nil {
			rows[i].Error = res.Err.Error()
			failed++
		}
	}
	if err := printJSON(stdout, rows); err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d jobs failed", failed, len(jobs))
	}
	return nil
}

func runServe(ctx context.Context, e *engine.Engine, args []string, log zerolog.Logger) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	addr := fs.String("addr", e.Config().ListenAddr, "listen address")
	if err := fs.Parse(args); err != nil {
		return err
	}
	return server.New(e, log).ListenAndServe(ctx, *addr)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
