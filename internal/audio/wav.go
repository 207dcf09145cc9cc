// Package audio provides WAV encoding/decoding, silence generation, and the
// episode assembler.
package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Errors for the assembly side of the pipeline.
var (
	// ErrNotWAV indicates data that is not a PCM RIFF/WAVE stream.
	ErrNotWAV = errors.New("not a PCM WAV stream")

	// ErrConversionFailed indicates an audio format conversion failed.
	ErrConversionFailed = errors.New("audio conversion failed")

	// ErrAssemblyFailed indicates the episode audio could not be assembled.
	// It is always fatal: the run cannot produce a usable artifact.
	ErrAssemblyFailed = errors.New("audio assembly failed")
)

const (
	riffHeaderSize = 44
	bytesPerSample = 2 // 16-bit PCM
)

// EncodeWAV wraps 16-bit mono little-endian PCM in a RIFF/WAVE header.
func EncodeWAV(pcm []byte, sampleRate int) []byte {
	return encodeWAV(pcm, sampleRate, 1)
}

func encodeWAV(pcm []byte, sampleRate, channels int) []byte {
	buf := make([]byte, riffHeaderSize+len(pcm))
	byteRate := sampleRate * channels * bytesPerSample

	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+len(pcm)))
	copy(buf[8:12], "WAVE")
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16) // PCM fmt chunk size
	binary.LittleEndian.PutUint16(buf[20:22], 1)  // PCM
	binary.LittleEndian.PutUint16(buf[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(buf[32:34], uint16(channels*bytesPerSample))
	binary.LittleEndian.PutUint16(buf[34:36], 16) // bits per sample
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(len(pcm)))
	copy(buf[44:], pcm)
	return buf
}

// DecodeWAV extracts 16-bit PCM samples from a RIFF/WAVE stream, walking the
// chunk list so streams with extra chunks (LIST, fact) still parse.
func DecodeWAV(data []byte) (pcm []byte, sampleRate, channels int, err error) {
	if len(data) < riffHeaderSize || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, 0, 0, ErrNotWAV
	}

	pos := 12
	var haveFmt bool
	for pos+8 <= len(data) {
		id := string(data[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(data[pos+4 : pos+8]))
		body := pos + 8
		if body+size > len(data) {
			size = len(data) - body // tolerate truncated final chunk
		}

		switch id {
		case "fmt ":
			if size < 16 {
				return nil, 0, 0, fmt.Errorf("%w: short fmt chunk", ErrNotWAV)
			}
			format := binary.LittleEndian.Uint16(data[body : body+2])
			bits := binary.LittleEndian.Uint16(data[body+14 : body+16])
			if format != 1 || bits != 16 {
				return nil, 0, 0, fmt.Errorf("%w: format=%d bits=%d", ErrNotWAV, format, bits)
			}
			channels = int(binary.LittleEndian.Uint16(data[body+2 : body+4]))
			sampleRate = int(binary.LittleEndian.Uint32(data[body+4 : body+8]))
			haveFmt = true
		case "data":
			if !haveFmt {
				return nil, 0, 0, fmt.Errorf("%w: data before fmt", ErrNotWAV)
			}
			return data[body : body+size], sampleRate, channels, nil
		}

		// Chunks are word-aligned.
		pos = body + size + size%2
	}
	return nil, 0, 0, fmt.Errorf("%w: no data chunk", ErrNotWAV)
}

// Silence returns 16-bit mono PCM silence of the given duration.
func Silence(d time.Duration, sampleRate int) []byte {
	if d <= 0 {
		return nil
	}
	samples := int(d.Seconds() * float64(sampleRate))
	return make([]byte, samples*bytesPerSample)
}

// PCMDuration converts a mono 16-bit PCM byte count to a duration.
func PCMDuration(n, sampleRate int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	samples := n / bytesPerSample
	return time.Duration(float64(samples) / float64(sampleRate) * float64(time.Second))
}

// DownmixStereo averages interleaved stereo 16-bit PCM to mono.
func DownmixStereo(pcm []byte) []byte {
	frames := len(pcm) / 4
	out := make([]byte, frames*2)
	for i := 0; i < frames; i++ {
		l := int16(binary.LittleEndian.Uint16(pcm[i*4 : i*4+2]))
		r := int16(binary.LittleEndian.Uint16(pcm[i*4+2 : i*4+4]))
		m := int16((int32(l) + int32(r)) / 2)
		binary.LittleEndian.PutUint16(out[i*2:i*2+2], uint16(m))
	}
	return out
}

// Resample converts mono 16-bit PCM between sample rates using
// nearest-neighbor sampling. Quality is adequate for speech normalization;
// external tools are preferred when available.
func Resample(pcm []byte, from, to int) []byte {
	if from == to || from <= 0 || to <= 0 {
		return pcm
	}
	inSamples := len(pcm) / bytesPerSample
	outSamples := int(float64(inSamples) * float64(to) / float64(from))
	out := make([]byte, outSamples*bytesPerSample)
	for i := 0; i < outSamples; i++ {
		src := int(float64(i) * float64(from) / float64(to))
		if src >= inSamples {
			src = inSamples - 1
		}
		copy(out[i*2:i*2+2], pcm[src*2:src*2+2])
	}
	return out
}

// EstimateSpokenDuration estimates speaking time for text at a 150 words per
// minute base rate. Used where the native audio container does not expose a
// duration cheaply.
func EstimateSpokenDuration(text string) time.Duration {
	words := len(strings.Fields(text))
	if words == 0 {
		words = 1
	}
	seconds := float64(words) * 60.0 / 150.0
	return time.Duration(seconds * float64(time.Second))
}
