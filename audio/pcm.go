package audio

import (
	"encoding/binary"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// Format is the sample encoding of interleaved PCM bytes.
type Format int

// Supported sample formats.
const (
	FormatFloat32LE Format = iota
	FormatS16LE
)

// BytesPerSample is the width of one sample of one channel.
func (f Format) BytesPerSample() int {
	switch f {
	case FormatS16LE:
		return 2
	default:
		return 4
	}
}

func (f Format) String() string {
	switch f {
	case FormatFloat32LE:
		return "float32le"
	case FormatS16LE:
		return "s16le"
	}
	return fmt.Sprintf("Format(%d)", int(f))
}

// ParseFormat parses the names returned by Format.String.
func ParseFormat(s string) (Format, error) {
	switch s {
	case "float32le", "f32le", "":
		return FormatFloat32LE, nil
	case "s16le":
		return FormatS16LE, nil
	}
	return 0, fmt.Errorf("unknown sample format %q", s)
}

// BytesPerFrame is the size of one interleaved frame of the given channel count.
func (f Format) BytesPerFrame(channels int) int {
	return f.BytesPerSample() * channels
}

// Demux splits interleaved PCM bytes into one slice per channel with samples
// normalized to [-1, 1]. A trailing partial frame is ignored.
func Demux(raw []byte, channels int, format Format) [][]float64 {
	if channels <= 0 {
		return nil
	}
	out := make([][]float64, channels)
	bps := format.BytesPerSample()
	stride := bps * channels
	frames := len(raw) / stride
	for c := range out {
		out[c] = make([]float64, frames)
	}

	for i := 0; i < frames; i++ {
		off := i * stride
		for c := 0; c < channels; c++ {
			b := raw[off+c*bps:]
			switch format {
			case FormatS16LE:
				out[c][i] = float64(int16(binary.LittleEndian.Uint16(b))) / 32768
			default:
				v := float64(math.Float32frombits(binary.LittleEndian.Uint32(b)))
				if math.IsNaN(v) {
					v = 0
				}
				out[c][i] = v
			}
		}
	}
	return out
}

// Interleave is the inverse of Demux. Samples outside [-1, 1] are clipped for
// integer formats.
func Interleave(channels [][]float64, format Format) []byte {
	if len(channels) == 0 {
		return nil
	}
	frames := len(channels[0])
	for _, ch := range channels[1:] {
		if len(ch) < frames {
			frames = len(ch)
		}
	}
	bps := format.BytesPerSample()
	stride := bps * len(channels)
	raw := make([]byte, frames*stride)

	for i := 0; i < frames; i++ {
		for c, ch := range channels {
			b := raw[i*stride+c*bps:]
			switch format {
			case FormatS16LE:
				v := ch[i] * 32768
				if v > math.MaxInt16 {
					v = math.MaxInt16
				} else if v < math.MinInt16 {
					v = math.MinInt16
				}
				binary.LittleEndian.PutUint16(b, uint16(int16(v)))
			default:
				binary.LittleEndian.PutUint32(b, math.Float32bits(float32(ch[i])))
			}
		}
	}
	return raw
}

// interleaveFloat32 encodes an already interleaved float32 block as produced by
// portaudio.
func interleaveFloat32(dst []byte, in []float32, format Format) []byte {
	bps := format.BytesPerSample()
	if cap(dst) < len(in)*bps {
		dst = make([]byte, len(in)*bps)
	}
	dst = dst[:len(in)*bps]
	for i, x := range in {
		switch format {
		case FormatS16LE:
			v := float64(x) * 32768
			if v > math.MaxInt16 {
				v = math.MaxInt16
			} else if v < math.MinInt16 {
				v = math.MinInt16
			}
			binary.LittleEndian.PutUint16(dst[i*2:], uint16(int16(v)))
		default:
			binary.LittleEndian.PutUint32(dst[i*4:], math.Float32bits(x))
		}
	}
	return dst
}

// Mix averages all channels into one.
func Mix(channels [][]float64) []float64 {
	if len(channels) == 0 {
		return nil
	}
	if len(channels) == 1 {
		return channels[0]
	}
	n := len(channels[0])
	for _, ch := range channels[1:] {
		if len(ch) < n {
			n = len(ch)
		}
	}
	out := make([]float64, n)
	scale := 1 / float64(len(channels))
	for _, ch := range channels {
		floats.AddScaled(out, scale, ch[:n])
	}
	return out
}
