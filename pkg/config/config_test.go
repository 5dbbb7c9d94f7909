package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/hiway/resonate/pkg/preset"
)

const sampleTOML = `
sample_rate = 22050
workers = 2
output_dir = "/tmp/out"

[presets.vision]
frequency = 600.5

[presets.calm]
name = "Calm"
frequency = 432
session_minutes = 5
success_rate = 0.5

[[jobs]]
preset = "calm"
minutes = 1
output = "calm.wav"

[[jobs]]
id = "rise"
kind = "sweep"
start_hz = 100
end_hz = 800
seconds = 2
output = "rise.wav"
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "resonate.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadFile(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleTOML), zerolog.Nop())
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.SampleRate != 22050 || cfg.Workers != 2 {
		t.Errorf("unexpected settings: %+v", cfg.Settings)
	}
	if cfg.ListenAddr != ":8080" {
		t.Errorf("expected default listen addr, got %q", cfg.ListenAddr)
	}
	if cfg.Table.Len() != 8 {
		t.Fatalf("expected 8 presets, got %d", cfg.Table.Len())
	}
	v, _ := cfg.Table.Lookup("vision")
	if v.FrequencyHz != 600.5 || v.SessionMinutes != preset.DefaultSessionMinutes {
		t.Errorf("unexpected vision override: %+v", v)
	}
	calm, err := cfg.Table.Lookup("calm")
	if err != nil || calm.Name != "Calm" {
		t.Errorf("unexpected calm preset: %+v %v", calm, err)
	}
	if len(cfg.Jobs) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(cfg.Jobs))
	}
	if cfg.Jobs[0].ID != "job-1" || cfg.Jobs[0].Kind != KindSession {
		t.Errorf("unexpected first job: %+v", cfg.Jobs[0])
	}
	if cfg.Jobs[1].ID != "rise" || cfg.Jobs[1].Kind != KindSweep {
		t.Errorf("unexpected second job: %+v", cfg.Jobs[1])
	}
	if got := cfg.OutputPath("calm.wav"); got != "/tmp/out/calm.wav" {
		t.Errorf("unexpected output path %q", got)
	}
	if got := cfg.OutputPath("/abs/x.wav"); got != "/abs/x.wav" {
		t.Errorf("absolute path rewritten: %q", got)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("RESONATE_WORKERS", "7")
	t.Setenv("RESONATE_LISTEN_ADDR", "127.0.0.1:9000")
	cfg, err := Load(writeConfig(t, sampleTOML), zerolog.Nop())
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Workers != 7 {
		t.Errorf("expected workers from env, got %d", cfg.Workers)
	}
	if cfg.ListenAddr != "127.0.0.1:9000" {
		t.Errorf("expected listen addr from env, got %q", cfg.ListenAddr)
	}
	if cfg.SampleRate != 22050 {
		t.Errorf("file value lost: %d", cfg.SampleRate)
	}
}

func TestLoadErrors(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"bad toml", "sample_rate = ="},
		{"bad rate", "sample_rate = -1"},
		{"bad preset", "[presets.x]\nfrequency = -5"},
		{"nan preset frequency", "[presets.x]\nfrequency = nan"},
		{"nan preset success rate", "[presets.x]\nfrequency = 440.0\nsuccess_rate = nan"},
		{"nan sweep start", "[[jobs]]\nkind = \"sweep\"\nstart_hz = nan\nend_hz = 2.0\nseconds = 1.0\noutput = \"a.wav\""},
		{"inf job minutes", "[[jobs]]\npreset = \"vision\"\nminutes = inf\noutput = \"a.wav\""},
		{"bad level", "log_level = \"loud\""},
		{"job unknown preset", "[[jobs]]\npreset = \"nope\"\noutput = \"a.wav\""},
		{"job no output", "[[jobs]]\npreset = \"vision\""},
		{"job bad kind", "[[jobs]]\nkind = \"noise\"\noutput = \"a.wav\""},
		{"sweep no seconds", "[[jobs]]\nkind = \"sweep\"\nstart_hz = 1\nend_hz = 2\noutput = \"a.wav\""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tc.body), zerolog.Nop()); err == nil {
				t.Fatal("expected error")
			}
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"), zerolog.Nop())
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected os.ErrNotExist, got %v", err)
	}
}

func TestJobUnknownPresetIsTyped(t *testing.T) {
	_, err := Load(writeConfig(t, "[[jobs]]\npreset = \"nope\"\noutput = \"a.wav\""), zerolog.Nop())
	if !errors.Is(err, preset.ErrUnknownPreset) {
		t.Fatalf("expected ErrUnknownPreset, got %v", err)
	}
}
