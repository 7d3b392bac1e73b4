package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	gaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// DecodeFile loads an audio file and normalizes it to the engine format.
// WAV files decode natively; anything else goes through ffmpeg. A WAV that
// the native path cannot handle (exotic encoding) also falls back to ffmpeg
// before the error is surfaced.
func DecodeFile(path string) (*Track, error) {
	if strings.EqualFold(filepath.Ext(path), ".wav") {
		t, err := decodeWAV(path)
		if err == nil {
			return t, nil
		}
		log.Printf("[decode] native WAV decode of %s failed (%v), trying ffmpeg", path, err)
	}
	return decodeFFmpeg(path)
}

// decodeWAV reads a PCM WAV file, downmixes or duplicates to stereo, and
// resamples to SampleRate.
func decodeWAV(path string) (*Track, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	d := wav.NewDecoder(f)
	d.ReadInfo()
	if !d.IsValidFile() {
		return nil, errors.New("not a valid WAV file")
	}
	if d.BitDepth != 16 && d.BitDepth != 24 && d.BitDepth != 32 {
		return nil, fmt.Errorf("unsupported bit depth %d", d.BitDepth)
	}
	if d.NumChans != 1 && d.NumChans != 2 {
		return nil, fmt.Errorf("unsupported channel count %d", d.NumChans)
	}

	srcRate := int(d.SampleRate)
	srcChans := int(d.NumChans)
	scale := float64(int64(1) << (d.BitDepth - 1))

	buf := &gaudio.IntBuffer{
		Data:   make([]int, 8192*srcChans),
		Format: &gaudio.Format{SampleRate: srcRate, NumChannels: srcChans},
	}

	var left, right []float64
	for {
		n, err := d.PCMBuffer(buf)
		if err != nil {
			return nil, fmt.Errorf("read PCM: %w", err)
		}
		if n == 0 {
			break
		}
		for i := 0; i+srcChans <= n; i += srcChans {
			l := float64(buf.Data[i]) / scale
			r := l
			if srcChans == 2 {
				r = float64(buf.Data[i+1]) / scale
			}
			left = append(left, l)
			right = append(right, r)
		}
	}
	if len(left) == 0 {
		return nil, errors.New("no audio data")
	}

	left = Resample(left, srcRate, SampleRate)
	right = Resample(right, srcRate, SampleRate)

	samples := make([]int16, Channels*len(left))
	for i := range left {
		samples[Channels*i] = Clip(left[i] * 32767)
		samples[Channels*i+1] = Clip(right[i] * 32767)
	}

	return &Track{Path: path, Samples: samples}, nil
}

// decodeFFmpeg runs ffmpeg to decode any audio format to raw PCM in the
// engine format.
func decodeFFmpeg(path string) (*Track, error) {
	cmd := exec.Command("ffmpeg",
		"-i", path,
		"-f", "s16le",
		"-acodec", "pcm_s16le",
		"-ar", strconv.Itoa(SampleRate),
		"-ac", strconv.Itoa(Channels),
		"-loglevel", "error",
		"pipe:1",
	)

	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg decode %s: %w", path, err)
	}

	// Ensure even byte count for int16 alignment
	if len(out)%2 != 0 {
		out = out[:len(out)-1]
	}

	samples := make([]int16, len(out)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(out[i*2 : i*2+2]))
	}
	if len(samples) == 0 {
		return nil, fmt.Errorf("ffmpeg produced no audio for %s", path)
	}

	return &Track{Path: path, Samples: samples}, nil
}

// SamplesToBytes converts int16 samples to little-endian bytes.
func SamplesToBytes(samples []int16) []byte {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}
	return buf
}
