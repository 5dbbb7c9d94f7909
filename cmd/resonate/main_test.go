package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hiway/resonate/pkg/preset"
)

func testConfig(t *testing.T, extra string) (string, string) {
	t.Helper()
	dir := t.TempDir()
	body := "sample_rate = 8000\noutput_dir = \"" + dir + "\"\n" + extra
	path := filepath.Join(dir, "resonate.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path, dir
}

func TestList(t *testing.T) {
	cfg, _ := testConfig(t, "")
	var out, errOut bytes.Buffer
	if err := run([]string{"-config", cfg, "list"}, &out, &errOut); err != nil {
		t.Fatalf("run error: %v (%s)", err, errOut.String())
	}
	for _, id := range []string{"vision", "jinn", "540.78 Hz"} {
		if !strings.Contains(out.String(), id) {
			t.Errorf("list output missing %q:\n%s", id, out.String())
		}
	}
}

func TestInfo(t *testing.T) {
	cfg, _ := testConfig(t, "")
	var out, errOut bytes.Buffer
	if err := run([]string{"-config", cfg, "info", "hearing"}, &out, &errOut); err != nil {
		t.Fatalf("run error: %v", err)
	}
	var p preset.Preset
	if err := json.Unmarshal(out.Bytes(), &p); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if p.ID != "hearing" || p.FrequencyHz != 579.41 {
		t.Errorf("unexpected preset: %+v", p)
	}

	err := run([]string{"-config", cfg, "info", "nope"}, &out, &errOut)
	if !errors.Is(err, preset.ErrUnknownPreset) {
		t.Errorf("expected ErrUnknownPreset, got %v", err)
	}
}

func TestRenderAndAnalyze(t *testing.T) {
	cfg, dir := testConfig(t, "")
	var out, errOut bytes.Buffer
	if err := run([]string{"-config", cfg, "render", "-preset", "vision", "-minutes", "0.02", "-out", "v.wav"}, &out, &errOut); err != nil {
		t.Fatalf("render error: %v (%s)", err, errOut.String())
	}
	wavPath := filepath.Join(dir, "v.wav")
	if _, err := os.Stat(wavPath); err != nil {
		t.Fatalf("expected output file: %v", err)
	}

	out.Reset()
	if err := run([]string{"-config", cfg, "analyze", "-seconds", "1", wavPath}, &out, &errOut); err != nil {
		t.Fatalf("analyze error: %v", err)
	}
	var a struct {
		SampleCount int `json:"sample_count"`
		Peak        struct {
			FrequencyHz float64 `json:"frequency_hz"`
		} `json:"peak"`
	}
	if err := json.Unmarshal(out.Bytes(), &a); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if a.SampleCount != 9600 {
		t.Errorf("expected 9600 samples, got %d", a.SampleCount)
	}
	if d := a.Peak.FrequencyHz - 540.78; d > 0.1 || d < -0.1 {
		t.Errorf("expected 540.78 Hz, got %.4f", a.Peak.FrequencyHz)
	}
}

func TestSweep(t *testing.T) {
	cfg, dir := testConfig(t, "")
	var out, errOut bytes.Buffer
	if err := run([]string{"-config", cfg, "sweep", "-start", "100", "-end", "300", "-seconds", "0.5", "-out", "s.wav"}, &out, &errOut); err != nil {
		t.Fatalf("sweep error: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "s.wav")); err != nil {
		t.Fatalf("expected output file: %v", err)
	}
	if !strings.Contains(out.String(), `"sample_count": 4000`) {
		t.Errorf("unexpected output: %s", out.String())
	}
}

func TestBatch(t *testing.T) {
	cfg, dir := testConfig(t, `
[[jobs]]
preset = "diabetes"
minutes = 0.01
output = "d.wav"

[[jobs]]
kind = "sweep"
start_hz = 50
end_hz = 500
seconds = 0.2
output = "s.wav"
`)
	var out, errOut bytes.Buffer
	if err := run([]string{"-config", cfg, "batch"}, &out, &errOut); err != nil {
		t.Fatalf("batch error: %v (%s)", err, errOut.String())
	}
	for _, name := range []string{"d.wav", "s.wav"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("expected %s: %v", name, err)
		}
	}

	empty, _ := testConfig(t, "")
	if err := run([]string{"-config", empty, "batch"}, &out, &errOut); err == nil {
		t.Error("expected error for batch without jobs")
	}
}

func TestPlayStub(t *testing.T) {
	cfg, _ := testConfig(t, "")
	var out, errOut bytes.Buffer
	if err := run([]string{"-config", cfg, "play", "-stub", "-preset", "vision", "-minutes", "0.001"}, &out, &errOut); err != nil {
		t.Fatalf("play error: %v", err)
	}
	if !strings.Contains(out.String(), `"preset_id": "vision"`) {
		t.Errorf("unexpected output: %s", out.String())
	}
}

func TestUsageErrors(t *testing.T) {
	cfg, _ := testConfig(t, "")
	var out, errOut bytes.Buffer
	if err := run(nil, &out, &errOut); err == nil {
		t.Error("expected error without command")
	}
	if err := run([]string{"-config", cfg, "bogus"}, &out, &errOut); err == nil {
		t.Error("expected error for unknown command")
	}
	if err := run([]string{"-config", cfg, "render"}, &out, &errOut); err == nil {
		t.Error("expected error for render without preset")
	}
	if !strings.Contains(errOut.String(), "usage: resonate") {
		t.Errorf("expected usage text, got %q", errOut.String())
	}
}
