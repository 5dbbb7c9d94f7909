// Package wav reads and writes mono 16-bit PCM RIFF/WAVE files.
package wav

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-audio/audio"
	gowav "github.com/go-audio/wav"
)

const (
	// ChannelCount represents mono audio
	ChannelCount = 1
	// BitDepthInBytes represents 16-bit audio
	BitDepthInBytes = 2
	// HeaderSize is the size of the canonical header written by Encode
	HeaderSize = 44

	formatPCM = 1
	bitDepth  = BitDepthInBytes * 8

	// frameBlock is the number of samples moved per encoder write or decoder read.
	frameBlock = 4096
)

var (
	// ErrNotWAVE is returned when the input is not a RIFF/WAVE stream.
	ErrNotWAVE = errors.New("not a RIFF/WAVE stream")
	// ErrUnsupportedFormat is returned for anything other than mono 16-bit PCM.
	ErrUnsupportedFormat = errors.New("unsupported wave format")
)

// PCMBytes returns the little-endian payload for samples, as fed to the audio device.
func PCMBytes(samples []int16) []byte {
	buf := make([]byte, len(samples)*BitDepthInBytes)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[i*BitDepthInBytes:], uint16(s))
	}
	return buf
}

// Encode writes samples as a WAVE stream. The header sizes are patched on
// completion, so w must be seekable.
func Encode(w io.WriteSeeker, samples []int16, sampleRate int) error {
	if sampleRate <= 0 {
		return fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}
	enc := gowav.NewEncoder(w, sampleRate, bitDepth, ChannelCount, formatPCM)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: ChannelCount, SampleRate: sampleRate},
		Data:           make([]int, 0, min(len(samples), frameBlock)),
		SourceBitDepth: bitDepth,
	}
	for off := 0; off < len(samples) || off == 0; off += frameBlock {
		end := min(off+frameBlock, len(samples))
		buf.Data = buf.Data[:0]
		for _, s := range samples[off:end] {
			buf.Data = append(buf.Data, int(s))
		}
		if err := enc.Write(buf); err != nil {
			return err
		}
	}
	return enc.Close()
}

// Bytes encodes samples into an in-memory WAVE buffer.
func Bytes(samples []int16, sampleRate int) ([]byte, error) {
	m := &memFile{buf: make([]byte, 0, HeaderSize+len(samples)*BitDepthInBytes)}
	if err := Encode(m, samples, sampleRate); err != nil {
		return nil, err
	}
	return m.buf, nil
}

// Decode reads a mono 16-bit PCM WAVE stream. Chunks other than "fmt " and
// "data" are skipped. A data chunk shorter than its declared size fails with
// io.ErrUnexpectedEOF.
func Decode(r io.ReadSeeker) ([]int16, int, error) {
	d := gowav.NewDecoder(r)
	d.ReadInfo()
	if err := d.Err(); err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrNotWAVE, err)
	}
	if d.NumChans == 0 {
		return nil, 0, fmt.Errorf("%w: no fmt chunk", ErrNotWAVE)
	}
	if d.WavAudioFormat != formatPCM || d.NumChans != ChannelCount || d.BitDepth != bitDepth || d.SampleRate == 0 {
		return nil, 0, fmt.Errorf("%w: format=%d channels=%d bits=%d rate=%d",
			ErrUnsupportedFormat, d.WavAudioFormat, d.NumChans, d.BitDepth, d.SampleRate)
	}
	if err := d.FwdToPCM(); err != nil {
		return nil, 0, fmt.Errorf("no data chunk: %w", io.ErrUnexpectedEOF)
	}

	// The declared size only bounds the read; memory grows with the data present.
	want := int(d.PCMLen()) / BitDepthInBytes
	samples := make([]int16, 0, min(want, frameBlock))
	buf := &audio.IntBuffer{Data: make([]int, frameBlock)}
	for len(samples) < want {
		n, err := d.PCMBuffer(buf)
		if err != nil {
			return nil, 0, err
		}
		if n == 0 {
			break
		}
		for _, v := range buf.Data[:min(n, want-len(samples))] {
			samples = append(samples, int16(v))
		}
	}
	if len(samples) < want {
		return nil, 0, fmt.Errorf("data chunk holds %d of %d samples: %w", len(samples), want, io.ErrUnexpectedEOF)
	}
	return samples, int(d.SampleRate), nil
}

// WriteFile creates or truncates path and writes samples as WAVE. I/O errors
// are returned as-is.
func WriteFile(path string, samples []int16, sampleRate int) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return Encode(f, samples, sampleRate)
}

// ReadFile decodes the WAVE file at path.
func ReadFile(path string) ([]int16, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()
	return Decode(f)
}

// memFile is an in-memory io.WriteSeeker.
type memFile struct {
	buf []byte
	pos int
}

func (m *memFile) Write(p []byte) (int, error) {
	if grow := m.pos + len(p) - len(m.buf); grow > 0 {
		m.buf = append(m.buf, make([]byte, grow)...)
	}
	copy(m.buf[m.pos:], p)
	m.pos += len(p)
	return len(p), nil
}

func (m *memFile) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = int64(m.pos) + offset
	case io.SeekEnd:
		abs = int64(len(m.buf)) + offset
	default:
		return 0, fmt.Errorf("invalid whence %d", whence)
	}
	if abs < 0 {
		return 0, errors.New("negative position")
	}
	m.pos = int(abs)
	return abs, nil
}
