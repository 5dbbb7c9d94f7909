package wav

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestEncodeHeader(t *testing.T) {
	data, err := Bytes([]int16{1, -1, 32767}, 44100)
	if err != nil {
		t.Fatalf("Bytes error: %v", err)
	}
	if len(data) != HeaderSize+6 {
		t.Fatalf("expected %d bytes, got %d", HeaderSize+6, len(data))
	}
	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" || string(data[36:40]) != "data" {
		t.Fatalf("unexpected chunk ids: %q", data[:40])
	}
	if rate := binary.LittleEndian.Uint32(data[24:28]); rate != 44100 {
		t.Errorf("expected sample rate 44100, got %d", rate)
	}
	if bits := binary.LittleEndian.Uint16(data[34:36]); bits != 16 {
		t.Errorf("expected 16 bits, got %d", bits)
	}
	if ch := binary.LittleEndian.Uint16(data[22:24]); ch != 1 {
		t.Errorf("expected mono, got %d channels", ch)
	}
	if size := binary.LittleEndian.Uint32(data[40:44]); size != 6 {
		t.Errorf("expected data size 6, got %d", size)
	}
	if !bytes.Equal(data[44:], []byte{0x01, 0x00, 0xff, 0xff, 0xff, 0x7f}) {
		t.Errorf("unexpected payload: % x", data[44:])
	}
}

func TestRoundTrip(t *testing.T) {
	in := make([]int16, 1000)
	for i := range in {
		in[i] = int16(i*60 - 30000)
	}
	data, err := Bytes(in, 22050)
	if err != nil {
		t.Fatalf("Bytes error: %v", err)
	}
	out, rate, err := Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	if rate != 22050 {
		t.Errorf("expected rate 22050, got %d", rate)
	}
	if len(out) != len(in) {
		t.Fatalf("expected %d samples, got %d", len(in), len(out))
	}
	for i := range in {
		if out[i] != in[i] {
			t.Fatalf("sample %d: got %d want %d", i, out[i], in[i])
		}
	}
}

func TestDecodeSkipsUnknownChunks(t *testing.T) {
	data, _ := Bytes([]int16{7, 8}, 8000)
	// insert an odd-sized chunk (with pad byte) between fmt and data
	extra := []byte{'j', 'u', 'n', 'k', 3, 0, 0, 0, 'a', 'b', 'c', 0}
	patched := append(append(append([]byte{}, data[:36]...), extra...), data[36:]...)

	out, rate, err := Decode(bytes.NewReader(patched))
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	if rate != 8000 || len(out) != 2 || out[0] != 7 || out[1] != 8 {
		t.Fatalf("unexpected decode: rate=%d samples=%v", rate, out)
	}
}

func TestDecodeErrors(t *testing.T) {
	if _, _, err := Decode(bytes.NewReader([]byte("RIFX\x00\x00\x00\x00WAVE"))); !errors.Is(err, ErrNotWAVE) {
		t.Errorf("expected ErrNotWAVE, got %v", err)
	}

	data, _ := Bytes([]int16{1, 2, 3}, 8000)
	if _, _, err := Decode(bytes.NewReader(data[:len(data)-1])); !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("expected io.ErrUnexpectedEOF, got %v", err)
	}

	if _, _, err := Decode(bytes.NewReader(data[:36])); !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("expected io.ErrUnexpectedEOF without data chunk, got %v", err)
	}

	if _, _, err := Decode(bytes.NewReader(nil)); !errors.Is(err, ErrNotWAVE) {
		t.Errorf("expected ErrNotWAVE for empty input, got %v", err)
	}

	stereo := append([]byte{}, data...)
	binary.LittleEndian.PutUint16(stereo[22:24], 2)
	if _, _, err := Decode(bytes.NewReader(stereo)); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestDecodeOversizedDataChunk(t *testing.T) {
	data, _ := Bytes([]int16{1, 2}, 8000)
	binary.LittleEndian.PutUint32(data[40:44], 0x7fffffff)

	var before, after runtime.MemStats
	runtime.ReadMemStats(&before)
	_, _, err := Decode(bytes.NewReader(data))
	runtime.ReadMemStats(&after)

	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("expected io.ErrUnexpectedEOF, got %v", err)
	}
	if grown := after.TotalAlloc - before.TotalAlloc; grown > 16<<20 {
		t.Errorf("decoding %d bytes allocated %d MiB", len(data), grown>>20)
	}
}

func TestBytesMatchesWriteFile(t *testing.T) {
	in := make([]int16, 3*frameBlock+5)
	for i := range in {
		in[i] = int16(i % 2000)
	}
	mem, err := Bytes(in, 16000)
	if err != nil {
		t.Fatalf("Bytes error: %v", err)
	}
	path := filepath.Join(t.TempDir(), "block.wav")
	if err := WriteFile(path, in, 16000); err != nil {
		t.Fatalf("WriteFile error: %v", err)
	}
	disk, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read error: %v", err)
	}
	if !bytes.Equal(mem, disk) {
		t.Fatalf("in-memory and file encodings differ (%d vs %d bytes)", len(mem), len(disk))
	}
	if len(mem) != HeaderSize+len(in)*BitDepthInBytes {
		t.Errorf("expected %d bytes, got %d", HeaderSize+len(in)*BitDepthInBytes, len(mem))
	}
}

func TestEncodeEmpty(t *testing.T) {
	data, err := Bytes(nil, 8000)
	if err != nil {
		t.Fatalf("Bytes error: %v", err)
	}
	if len(data) != HeaderSize {
		t.Fatalf("expected %d bytes, got %d", HeaderSize, len(data))
	}
	out, rate, err := Decode(bytes.NewReader(data))
	if err != nil || rate != 8000 || len(out) != 0 {
		t.Fatalf("unexpected decode: rate=%d samples=%d err=%v", rate, len(out), err)
	}
}

func TestWriteFileReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tone.wav")
	in := []int16{0, 100, -100, 29490, -29490}
	if err := WriteFile(path, in, 44100); err != nil {
		t.Fatalf("WriteFile error: %v", err)
	}
	// a second write truncates
	if err := WriteFile(path, in[:2], 44100); err != nil {
		t.Fatalf("WriteFile error: %v", err)
	}
	out, rate, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile error: %v", err)
	}
	if rate != 44100 || len(out) != 2 || out[1] != 100 {
		t.Fatalf("unexpected read: rate=%d samples=%v", rate, out)
	}
}

func TestWriteFilePropagatesIOError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "tone.wav")
	err := WriteFile(path, []int16{1}, 44100)
	var pathErr *os.PathError
	if !errors.As(err, &pathErr) {
		t.Fatalf("expected *os.PathError, got %T %v", err, err)
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected os.ErrNotExist, got %v", err)
	}
}
