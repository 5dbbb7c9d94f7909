// Package engine ties presets, synthesis, WAV output, playback and the render
// queue together behind the operations used by the CLI and the HTTP server.
package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hiway/resonate/pkg/config"
	"github.com/hiway/resonate/pkg/metrics"
	"github.com/hiway/resonate/pkg/player"
	"github.com/hiway/resonate/pkg/preset"
	"github.com/hiway/resonate/pkg/queue"
	"github.com/hiway/resonate/pkg/spectrum"
	"github.com/hiway/resonate/pkg/synth"
	"github.com/hiway/resonate/pkg/wav"
)

// ErrNoPlayer is returned by Play when the engine was built without a player.
var ErrNoPlayer = errors.New("no audio player configured")

// Engine renders sessions and sweeps for one configuration.
type Engine struct {
	cfg    *config.Config
	synth  *synth.Synthesizer
	player player.Player
	log    zerolog.Logger
}

// Analysis is the spectral summary of a WAV file.
type Analysis struct {
	Path          string        `json:"path"`
	SampleRate    int           `json:"sample_rate"`
	SampleCount   int           `json:"sample_count"`
	AnalyzedCount int           `json:"analyzed_count"`
	Peak          spectrum.Peak `json:"peak"`
}

// New creates an engine. p may be nil when playback is not needed.
func New(cfg *config.Config, p player.Player, log zerolog.Logger) (*Engine, error) {
	log = log.With().Str("component", "engine").Logger()

	if cfg.Table == nil {
		if err := cfg.Finalize(); err != nil {
			return nil, fmt.Errorf("invalid configuration: %w", err)
		}
	}
	s, err := synth.New(cfg.Table, cfg.SampleRate)
	if err != nil {
		return nil, fmt.Errorf("failed to create synthesizer: %w", err)
	}

	log.Debug().Int("sample_rate", s.SampleRate()).Int("presets", cfg.Table.Len()).Msg("Engine ready")
	return &Engine{cfg: cfg, synth: s, player: p, log: log}, nil
}

// Config returns the engine configuration.
func (e *Engine) Config() *config.Config {
	return e.cfg
}

// Presets returns the preset table.
func (e *Engine) Presets() *preset.Table {
	return e.cfg.Table
}

// SampleRate returns the render sample rate.
func (e *Engine) SampleRate() int {
	return e.synth.SampleRate()
}

// Session renders a preset session into memory.
func (e *Engine) Session(ctx context.Context, presetID string, minutes float64) (synth.SessionInfo, []int16, error) {
	if err := ctx.Err(); err != nil {
		return synth.SessionInfo{}, nil, err
	}
	start := time.Now()
	info, pcm, err := e.synth.Session(presetID, minutes)
	observe(config.KindSession, start, len(pcm), err)
	if err != nil {
		return synth.SessionInfo{}, nil, err
	}

	e.log.Debug().
		Str("preset", info.PresetID).
		Float64("frequency_hz", info.FrequencyHz).
		Float64("minutes", info.SessionMinutes).
		Int("samples", info.SampleCount).
		Dur("elapsed", time.Since(start)).
		Msg("Rendered session")
	return info, pcm, nil
}

// RenderSession renders a session and writes it to path, resolved against output_dir.
func (e *Engine) RenderSession(ctx context.Context, presetID string, minutes float64, path string) (synth.SessionInfo, string, error) {
	info, pcm, err := e.Session(ctx, presetID, minutes)
	if err != nil {
		return synth.SessionInfo{}, "", err
	}
	out, err := e.write(path, pcm)
	if err != nil {
		return synth.SessionInfo{}, "", err
	}
	return info, out, nil
}

// Sweep renders a linear frequency sweep into memory.
func (e *Engine) Sweep(ctx context.Context, startHz, endHz, seconds float64) ([]int16, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()
	pcm, err := e.synth.Sweep(startHz, endHz, seconds)
	observe(config.KindSweep, start, len(pcm), err)
	if err != nil {
		return nil, err
	}

	e.log.Debug().
		Float64("start_hz", startHz).
		Float64("end_hz", endHz).
		Float64("seconds", seconds).
		Int("samples", len(pcm)).
		Msg("Rendered sweep")
	return pcm, nil
}

// RenderSweep renders a sweep and writes it to path, resolved against output_dir.
func (e *Engine) RenderSweep(ctx context.Context, startHz, endHz, seconds float64, path string) (int, string, error) {
	pcm, err := e.Sweep(ctx, startHz, endHz, seconds)
	if err != nil {
		return 0, "", err
	}
	out, err := e.write(path, pcm)
	if err != nil {
		return 0, "", err
	}
	return len(pcm), out, nil
}

// Play renders a session and plays it through the configured player.
func (e *Engine) Play(ctx context.Context, presetID string, minutes float64) (synth.SessionInfo, error) {
	if e.player == nil {
		return synth.SessionInfo{}, ErrNoPlayer
	}
	info, pcm, err := e.Session(ctx, presetID, minutes)
	if err != nil {
		return synth.SessionInfo{}, err
	}
	e.log.Info().Str("preset", info.PresetID).Float64("minutes", info.SessionMinutes).Msg("Playing session")
	if err := e.player.Play(ctx, pcm); err != nil {
		return info, err
	}
	return info, nil
}

// Batch renders jobs on the configured number of workers. Results keep job order.
func (e *Engine) Batch(ctx context.Context, jobs []*config.Job) []queue.Result {
	batchID := uuid.NewString()
	log := e.log.With().Str("batch", batchID).Logger()
	log.Info().Int("jobs", len(jobs)).Int("workers", e.cfg.Workers).Msg("Starting batch")

	results := queue.RenderAll(ctx, e.RenderJob, e.cfg.Workers, jobs, log)

	failed := 0
	for _, res := range results {
		if res.Err != nil {
			failed++
		}
	}
	log.Info().Int("jobs", len(jobs)).Int("failed", failed).Msg("Batch finished")
	return results
}

// RenderJob renders one job to its output file. A session job with zero
// minutes uses the preset's session length.
func (e *Engine) RenderJob(ctx context.Context, job *config.Job) queue.Result {
	switch job.Kind {
	case config.KindSweep:
		n, out, err := e.RenderSweep(ctx, job.StartHz, job.EndHz, job.Seconds, job.Output)
		return queue.Result{Output: out, SampleCount: n, Err: err}
	case config.KindSession, "":
		minutes := job.Minutes
		if minutes == 0 {
			p, err := e.cfg.Table.Lookup(job.Preset)
			if err != nil {
				return queue.Result{Err: err}
			}
			minutes = p.SessionMinutes
		}
		info, out, err := e.RenderSession(ctx, job.Preset, minutes, job.Output)
		return queue.Result{Output: out, SampleCount: info.SampleCount, Err: err}
	default:
		return queue.Result{Err: fmt.Errorf("unknown job kind %q", job.Kind)}
	}
}

// Analyze decodes a WAV file and estimates its dominant frequency over the
// first seconds of audio. seconds <= 0 analyzes the whole file, up to
// spectrum.MaxSamples samples.
func (e *Engine) Analyze(path string, seconds float64) (Analysis, error) {
	pcm, rate, err := wav.ReadFile(path)
	if err != nil {
		return Analysis{}, fmt.Errorf("failed to read '%s': %w", path, err)
	}
	window := pcm
	if seconds > 0 {
		if n := synth.SampleCount(seconds, rate); n < len(window) {
			window = window[:n]
		}
	}
	if len(window) > spectrum.MaxSamples {
		window = window[:spectrum.MaxSamples]
	}
	peak, err := spectrum.DominantFrequency(synth.Dequantize(window), rate)
	if err != nil {
		return Analysis{}, fmt.Errorf("failed to analyze '%s': %w", path, err)
	}
	return Analysis{
		Path:          path,
		SampleRate:    rate,
		SampleCount:   len(pcm),
		AnalyzedCount: len(window),
		Peak:          peak,
	}, nil
}

// Close releases the player.
func (e *Engine) Close() error {
	if e.player == nil {
		return nil
	}
	return e.player.Close()
}

func (e *Engine) write(path string, pcm []int16) (string, error) {
	out := e.cfg.OutputPath(path)
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := wav.WriteFile(out, pcm, e.synth.SampleRate()); err != nil {
		e.log.Error().Err(err).Str("path", out).Msg("Failed to write WAV file")
		return "", err
	}
	e.log.Debug().Str("path", out).Int("samples", len(pcm)).Msg("Wrote WAV file")
	return out, nil
}

// Outcome classifies a render error for metrics and status mapping.
func Outcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeOK
	case errors.Is(err, preset.ErrUnknownPreset):
		return metrics.OutcomeUnknownPreset
	case errors.Is(err, synth.ErrInvalidParameter), errors.Is(err, synth.ErrSilentWaveform):
		return metrics.OutcomeInvalid
	default:
		return metrics.OutcomeError
	}
}

func observe(kind string, start time.Time, samples int, err error) {
	metrics.RendersTotal.WithLabelValues(kind, Outcome(err)).Inc()
	if err != nil {
		return
	}
	metrics.RenderDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	metrics.SamplesRenderedTotal.Add(float64(samples))
}
