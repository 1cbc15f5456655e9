package audio

import (
	"errors"
	"fmt"
)

var (
	// ErrNoDevice is returned when no capture device matches the configured name.
	ErrNoDevice = errors.New("no matching capture device")
	// ErrBufferAttr is returned when buffer negotiation parameters are inconsistent.
	ErrBufferAttr = errors.New("invalid buffer attributes")
	// ErrSourceClosed is returned by RequestFragment after Close.
	ErrSourceClosed = errors.New("source closed")
)

// BufferAttr holds the buffer negotiation knobs handed to the capture device.
// All values are in sample frames.
type BufferAttr struct {
	MaxLength    int `yaml:"max_length"`
	TargetLength int `yaml:"target_length"`
	MinRequest   int `yaml:"min_request"`
	FragmentSize int `yaml:"fragment_size"`
}

// DefaultBufferAttr are the values the visualizer negotiates unless told otherwise.
var DefaultBufferAttr = BufferAttr{
	MaxLength:    2048,
	TargetLength: 512,
	MinRequest:   128,
	FragmentSize: 512,
}

// Validate checks that the attributes describe a consistent request.
func (b BufferAttr) Validate() error {
	switch {
	case b.MinRequest <= 0:
		return fmt.Errorf("%w: min request %d must be positive", ErrBufferAttr, b.MinRequest)
	case b.MaxLength < b.MinRequest:
		return fmt.Errorf("%w: max length %d below min request %d", ErrBufferAttr, b.MaxLength, b.MinRequest)
	case b.FragmentSize < b.MinRequest || b.FragmentSize > b.MaxLength:
		return fmt.Errorf("%w: fragment size %d outside [%d, %d]",
			ErrBufferAttr, b.FragmentSize, b.MinRequest, b.MaxLength)
	case b.TargetLength < b.MinRequest || b.TargetLength > b.MaxLength:
		return fmt.Errorf("%w: target length %d outside [%d, %d]",
			ErrBufferAttr, b.TargetLength, b.MinRequest, b.MaxLength)
	}
	return nil
}

// Clamp bounds a fragment size hint to what the attributes allow.
func (b BufferAttr) Clamp(hint int) int {
	if hint <= 0 {
		return b.FragmentSize
	}
	if hint < b.MinRequest {
		return b.MinRequest
	}
	if hint > b.MaxLength {
		return b.MaxLength
	}
	return hint
}

// Config represents a config that is used to open a new capture Source.
type Config struct {
	// SampleRate is the sample rate (Fs).
	SampleRate float64
	// Channels is the number of input channels.
	Channels int
	// Device names the capture device or monitor. It is passed through untouched;
	// an empty string selects the host default.
	Device string
	// Format is the encoding of the bytes returned by RequestFragment.
	Format Format
	// Buffer is the negotiated buffer sizing.
	Buffer BufferAttr
}

// Validate checks that the config can be used to open a source.
func (c *Config) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("sample rate %v must be positive", c.SampleRate)
	}
	if c.Channels <= 0 {
		return fmt.Errorf("channel count %d must be positive", c.Channels)
	}
	return c.Buffer.Validate()
}

// Source is a capture collaborator that supplies interleaved PCM fragments.
type Source interface {
	// Start begins capture. It must be called before RequestFragment.
	Start() error
	// RequestFragment blocks until about sizeHint frames are available and returns
	// them as interleaved bytes in Format().
	RequestFragment(sizeHint int) ([]byte, error)
	// Close stops capture and releases the device.
	Close() error

	Format() Format
	Channels() int
	SampleRate() float64
}
