package player

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
	"github.com/rs/zerolog"

	"github.com/hiway/resonate/pkg/wav"
)

// Player is the interface for playing rendered PCM buffers.
type Player interface {
	Play(ctx context.Context, samples []int16) error
	Close() error
}

var (
	otoCtx  *oto.Context
	otoRate int
	once    sync.Once
	ctxErr  error
)

// initOtoContext initializes the oto context singleton. Oto allows a single
// context per process, so every later caller must ask for the same rate.
func initOtoContext(sampleRate int) (*oto.Context, error) {
	once.Do(func() {
		op := &oto.NewContextOptions{}
		op.SampleRate = sampleRate
		op.ChannelCount = wav.ChannelCount
		op.Format = oto.FormatSignedInt16LE

		var readyChan chan struct{}
		otoCtx, readyChan, ctxErr = oto.NewContext(op)
		if ctxErr == nil {
			<-readyChan
			otoRate = sampleRate
		}
	})
	if ctxErr != nil {
		return nil, ctxErr
	}
	if otoRate != sampleRate {
		return nil, fmt.Errorf("audio context already running at %d Hz, requested %d Hz", otoRate, sampleRate)
	}
	return otoCtx, nil
}

// OtoPlayer uses the ebitengine/oto/v3 library to play buffers.
type OtoPlayer struct {
	log        zerolog.Logger
	ctx        *oto.Context
	sampleRate int
	mu         sync.Mutex // One buffer plays at a time
}

// NewOtoPlayer creates a new player using the Oto library.
func NewOtoPlayer(sampleRate int, log zerolog.Logger) (*OtoPlayer, error) {
	ctx, err := initOtoContext(sampleRate)
	if err != nil {
		log.Error().Err(err).Msg("Failed to initialize Oto audio context")
		return nil, fmt.Errorf("failed to initialize audio context: %w", err)
	}
	log.Debug().Int("sample_rate", sampleRate).Msg("Oto audio context initialized successfully")

	return &OtoPlayer{
		log:        log.With().Str("player_type", "oto").Logger(),
		ctx:        ctx,
		sampleRate: sampleRate,
	}, nil
}

// Play blocks until the buffer has played or ctx is done.
func (p *OtoPlayer) Play(ctx context.Context, samples []int16) error {
	if len(samples) == 0 {
		p.log.Debug().Msg("Skipping playback for empty buffer")
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	p.log.Debug().
		Int("samples", len(samples)).
		Dur("duration", Duration(len(samples), p.sampleRate)).
		Msg("Playing buffer")

	if err := p.playSound(ctx, bytes.NewReader(wav.PCMBytes(samples))); err != nil {
		p.log.Error().Err(err).Msg("Failed to play sound")
		return fmt.Errorf("failed to play buffer: %w", err)
	}

	p.log.Trace().Msg("Finished playing buffer")
	return nil
}

// playSound plays raw PCM from an io.Reader.
func (p *OtoPlayer) playSound(ctx context.Context, reader io.Reader) error {
	player := p.ctx.NewPlayer(reader)
	defer player.Close()

	player.Play()

	ticker := time.NewTicker(time.Millisecond)
	defer ticker.Stop()
	for player.IsPlaying() {
		select {
		case <-ctx.Done():
			player.Pause()
			return ctx.Err()
		case <-ticker.C:
		}
	}

	if err := player.Err(); err != nil {
		return fmt.Errorf("oto player error: %w", err)
	}
	return nil
}

// Close cleans up the OtoPlayer resources.
func (p *OtoPlayer) Close() error {
	p.log.Debug().Msg("Closing OtoPlayer")
	// The Oto context is global and shared, so it stays open.
	return nil
}

// StubPlayer logs playback and waits for the buffer duration.
type StubPlayer struct {
	log        zerolog.Logger
	sampleRate int

	mu     sync.Mutex
	played int
}

// NewStubPlayer creates a new StubPlayer.
func NewStubPlayer(sampleRate int, log zerolog.Logger) *StubPlayer {
	return &StubPlayer{
		log:        log.With().Str("player_type", "stub").Logger(),
		sampleRate: sampleRate,
	}
}

// Play simulates playing a buffer by logging and sleeping.
func (p *StubPlayer) Play(ctx context.Context, samples []int16) error {
	d := Duration(len(samples), p.sampleRate)
	p.log.Debug().Int("samples", len(samples)).Dur("duration", d).Msg("Simulating playback")

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
	}

	p.mu.Lock()
	p.played += len(samples)
	p.mu.Unlock()
	return nil
}

// Played returns the number of samples played so far.
func (p *StubPlayer) Played() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.played
}

// Close cleans up the StubPlayer resources.
func (p *StubPlayer) Close() error {
	p.log.Debug().Msg("Closing StubPlayer")
	return nil
}

// Duration is the playback time of n samples.
func Duration(n, sampleRate int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	return time.Duration(n) * time.Second / time.Duration(sampleRate)
}
