// Package synth renders sine tones, multi-harmonic preset sessions and linear
// frequency sweeps as float waveforms and 16-bit PCM.
package synth

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/hiway/resonate/pkg/preset"
)

const (
	// DefaultSampleRate is the number of samples per second
	DefaultSampleRate = 44100
	// Headroom is the peak level a session is normalized to
	Headroom = 0.9
	// FullScale is the int16 value of a +1.0 sample
	FullScale = 32767
	// SweepAmplitude is the fixed level of a frequency sweep
	SweepAmplitude = 0.5
)

var (
	// ErrInvalidParameter is returned for non-positive frequency, duration, amplitude or sample rate.
	ErrInvalidParameter = errors.New("invalid parameter")
	// ErrSilentWaveform is returned when a waveform has no energy to normalize.
	ErrSilentWaveform = errors.New("silent waveform")
)

// Harmonic is one partial of a session: a multiple of the fundamental at a fixed amplitude.
type Harmonic struct {
	Multiple  float64
	Amplitude float64
}

// SessionHarmonics are mixed for every preset session.
var SessionHarmonics = []Harmonic{
	{Multiple: 1, Amplitude: 0.4},
	{Multiple: 2, Amplitude: 0.2},
	{Multiple: 3, Amplitude: 0.1},
}

// SessionInfo describes a rendered session.
type SessionInfo struct {
	PresetID       string  `json:"preset_id"`
	Name           string  `json:"name,omitempty"`
	Title          string  `json:"title,omitempty"`
	FrequencyHz    float64 `json:"frequency_hz"`
	SessionMinutes float64 `json:"session_minutes"`
	SampleCount    int     `json:"sample_count"`
	SampleRate     int     `json:"sample_rate"`
	SuccessRate    float64 `json:"success_rate_hint"`
}

// Lookup resolves a preset id. *preset.Table satisfies it.
type Lookup interface {
	Lookup(id string) (preset.Preset, error)
}

// Synthesizer renders sessions for presets from a lookup table at a fixed sample rate.
type Synthesizer struct {
	presets    Lookup
	sampleRate int
}

// New creates a synthesizer. A zero sample rate selects DefaultSampleRate.
func New(presets Lookup, sampleRate int) (*Synthesizer, error) {
	if sampleRate == 0 {
		sampleRate = DefaultSampleRate
	}
	if sampleRate < 0 {
		return nil, fmt.Errorf("%w: sample rate must be positive, got %d", ErrInvalidParameter, sampleRate)
	}
	if presets == nil {
		presets = preset.Default()
	}
	return &Synthesizer{presets: presets, sampleRate: sampleRate}, nil
}

// SampleRate returns the rate every buffer is rendered at.
func (s *Synthesizer) SampleRate() int {
	return s.sampleRate
}

// SampleCount is the number of samples for a duration at a sample rate.
func SampleCount(durationSeconds float64, sampleRate int) int {
	return int(math.Round(durationSeconds * float64(sampleRate)))
}

// Tone generates amplitude*sin(2*pi*f*i/sampleRate) for round(duration*sampleRate) samples.
func Tone(frequencyHz, durationSeconds, amplitude float64, sampleRate int) ([]float64, error) {
	if err := checkFrequency("frequency", frequencyHz); err != nil {
		return nil, err
	}
	if err := checkDuration(durationSeconds, sampleRate); err != nil {
		return nil, err
	}
	if amplitude <= 0 || amplitude > 1 || math.IsNaN(amplitude) {
		return nil, fmt.Errorf("%w: amplitude must be in (0, 1], got %v", ErrInvalidParameter, amplitude)
	}

	n := SampleCount(durationSeconds, sampleRate)
	out := make([]float64, n)
	omega := 2 * math.Pi * frequencyHz / float64(sampleRate)
	for i := range out {
		out[i] = amplitude * math.Sin(omega*float64(i))
	}
	return out, nil
}

// Sweep generates a linear chirp from startHz to endHz. The phase is the running sum
// of the instantaneous frequency, so the output stays continuous.
func Sweep(startHz, endHz, durationSeconds float64, sampleRate int) ([]float64, error) {
	if err := checkFrequency("start frequency", startHz); err != nil {
		return nil, err
	}
	if err := checkFrequency("end frequency", endHz); err != nil {
		return nil, err
	}
	if err := checkDuration(durationSeconds, sampleRate); err != nil {
		return nil, err
	}

	n := SampleCount(durationSeconds, sampleRate)
	switch n {
	case 0:
		return []float64{}, nil
	case 1:
		return []float64{SweepAmplitude * math.Sin(2*math.Pi*startHz/float64(sampleRate))}, nil
	}

	freqs := floats.Span(make([]float64, n), startHz, endHz)
	phase := floats.CumSum(make([]float64, n), freqs)
	floats.Scale(2*math.Pi/float64(sampleRate), phase)
	for i, p := range phase {
		phase[i] = SweepAmplitude * math.Sin(p)
	}
	return phase, nil
}

// Mix sums harmonics of the fundamental elementwise.
func Mix(fundamentalHz, durationSeconds float64, sampleRate int, harmonics []Harmonic) ([]float64, error) {
	var sum []float64
	for _, h := range harmonics {
		tone, err := Tone(fundamentalHz*h.Multiple, durationSeconds, h.Amplitude, sampleRate)
		if err != nil {
			return nil, err
		}
		if sum == nil {
			sum = tone
			continue
		}
		floats.Add(sum, tone)
	}
	return sum, nil
}

// Peak returns the largest absolute sample value.
func Peak(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	return math.Max(math.Abs(floats.Max(samples)), math.Abs(floats.Min(samples)))
}

// Normalize scales samples in place so the peak magnitude equals level.
func Normalize(samples []float64, level float64) error {
	peak := Peak(samples)
	if peak == 0 {
		return ErrSilentWaveform
	}
	floats.Scale(level/peak, samples)
	return nil
}

// Quantize converts samples to int16 as round(clamp(s, -1, 1) * FullScale).
// NaN maps to 0.
func Quantize(samples []float64) []int16 {
	out := make([]int16, len(samples))
	for i, s := range samples {
		if math.IsNaN(s) {
			continue
		}
		s = math.Max(-1, math.Min(1, s))
		out[i] = int16(math.Round(s * FullScale))
	}
	return out
}

// Dequantize maps int16 samples back to [-1, 1].
func Dequantize(samples []int16) []float64 {
	out := make([]float64, len(samples))
	for i, s := range samples {
		out[i] = float64(s) / FullScale
	}
	return out
}

// Tone renders a tone at the synthesizer's sample rate.
func (s *Synthesizer) Tone(frequencyHz, durationSeconds, amplitude float64) ([]float64, error) {
	return Tone(frequencyHz, durationSeconds, amplitude, s.sampleRate)
}

// Sweep renders a chirp at the synthesizer's sample rate and quantizes it.
func (s *Synthesizer) Sweep(startHz, endHz, durationSeconds float64) ([]int16, error) {
	wave, err := Sweep(startHz, endHz, durationSeconds, s.sampleRate)
	if err != nil {
		return nil, err
	}
	return Quantize(wave), nil
}

// Session renders the harmonic session for a preset. The mix is normalized to Headroom
// and quantized to 16-bit PCM.
func (s *Synthesizer) Session(presetID string, sessionMinutes float64) (SessionInfo, []int16, error) {
	p, err := s.presets.Lookup(presetID)
	if err != nil {
		return SessionInfo{}, nil, err
	}
	if sessionMinutes <= 0 || math.IsNaN(sessionMinutes) || math.IsInf(sessionMinutes, 0) {
		return SessionInfo{}, nil, fmt.Errorf("%w: session minutes must be positive, got %v", ErrInvalidParameter, sessionMinutes)
	}

	wave, err := Mix(p.FrequencyHz, sessionMinutes*60, s.sampleRate, SessionHarmonics)
	if err != nil {
		return SessionInfo{}, nil, err
	}
	if err := Normalize(wave, Headroom); err != nil {
		return SessionInfo{}, nil, fmt.Errorf("preset '%s': %w", presetID, err)
	}
	pcm := Quantize(wave)

	info := SessionInfo{
		PresetID:       p.ID,
		Name:           p.Name,
		Title:          p.Title,
		FrequencyHz:    p.FrequencyHz,
		SessionMinutes: sessionMinutes,
		SampleCount:    len(pcm),
		SampleRate:     s.sampleRate,
		SuccessRate:    p.SuccessRate,
	}
	return info, pcm, nil
}

func checkFrequency(name string, hz float64) error {
	if hz <= 0 || math.IsNaN(hz) || math.IsInf(hz, 0) {
		return fmt.Errorf("%w: %s must be positive and finite, got %v", ErrInvalidParameter, name, hz)
	}
	return nil
}

func checkDuration(durationSeconds float64, sampleRate int) error {
	if durationSeconds <= 0 || math.IsNaN(durationSeconds) || math.IsInf(durationSeconds, 0) {
		return fmt.Errorf("%w: duration must be positive, got %v", ErrInvalidParameter, durationSeconds)
	}
	if sampleRate <= 0 {
		return fmt.Errorf("%w: sample rate must be positive, got %d", ErrInvalidParameter, sampleRate)
	}
	return nil
}
