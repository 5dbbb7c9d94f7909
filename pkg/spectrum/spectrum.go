// Package spectrum estimates the dominant frequency of a waveform.
package spectrum

import (
	"errors"
	"fmt"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
	"gonum.org/v1/gonum/floats"
)

const (
	// PadFactor is the minimum zero-padding ratio applied before the FFT.
	PadFactor = 8
	// MaxFFTSize bounds the transform length.
	MaxFFTSize = 1 << 21
	// MaxSamples is the longest input analyzed; later samples are ignored.
	MaxSamples = MaxFFTSize / PadFactor
)

// ErrInvalidInput is returned for empty input or a non-positive sample rate.
var ErrInvalidInput = errors.New("invalid spectrum input")

// Peak is the strongest spectral component.
type Peak struct {
	FrequencyHz  float64 `json:"frequency_hz"`
	Magnitude    float64 `json:"magnitude"`
	ResolutionHz float64 `json:"resolution_hz"`
}

// DominantFrequency zero-pads the samples, takes a real FFT and refines the
// strongest bin with parabolic interpolation. DC is ignored. Only the first
// MaxSamples samples are analyzed.
func DominantFrequency(samples []float64, sampleRate int) (Peak, error) {
	if len(samples) < 2 {
		return Peak{}, fmt.Errorf("%w: need at least 2 samples, got %d", ErrInvalidInput, len(samples))
	}
	if sampleRate <= 0 {
		return Peak{}, fmt.Errorf("%w: sample rate must be positive, got %d", ErrInvalidInput, sampleRate)
	}

	if len(samples) > MaxSamples {
		samples = samples[:MaxSamples]
	}

	size := nextPow2(len(samples) * PadFactor)
	padded := make([]float64, size)
	copy(padded, samples)

	spectrum := fft.FFTReal(padded)
	mags := make([]float64, size/2)
	for i := range mags {
		mags[i] = cmplx.Abs(spectrum[i])
	}
	mags[0] = 0

	k := floats.MaxIdx(mags)
	if mags[k] == 0 {
		return Peak{}, fmt.Errorf("%w: waveform has no energy", ErrInvalidInput)
	}

	offset := 0.0
	if k > 0 && k < len(mags)-1 {
		a, b, c := mags[k-1], mags[k], mags[k+1]
		if den := a - 2*b + c; den != 0 {
			offset = 0.5 * (a - c) / den
		}
	}

	resolution := float64(sampleRate) / float64(size)
	return Peak{
		FrequencyHz:  (float64(k) + offset) * resolution,
		Magnitude:    mags[k],
		ResolutionHz: resolution,
	}, nil
}

func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}
