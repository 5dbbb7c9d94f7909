package player

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestDuration(t *testing.T) {
	if d := Duration(44100, 44100); d != time.Second {
		t.Errorf("expected 1s, got %v", d)
	}
	if d := Duration(441, 44100); d != 10*time.Millisecond {
		t.Errorf("expected 10ms, got %v", d)
	}
	if d := Duration(10, 0); d != 0 {
		t.Errorf("expected 0 for zero rate, got %v", d)
	}
}

func TestStubPlayer(t *testing.T) {
	p := NewStubPlayer(8000, zerolog.Nop())
	if err := p.Play(context.Background(), make([]int16, 80)); err != nil {
		t.Fatalf("Play error: %v", err)
	}
	if p.Played() != 80 {
		t.Errorf("expected 80 samples played, got %d", p.Played())
	}
	if err := p.Close(); err != nil {
		t.Errorf("Close error: %v", err)
	}
}

func TestStubPlayerCanceled(t *testing.T) {
	p := NewStubPlayer(8000, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := p.Play(ctx, make([]int16, 8000*60))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if p.Played() != 0 {
		t.Errorf("canceled playback counted: %d", p.Played())
	}
}
