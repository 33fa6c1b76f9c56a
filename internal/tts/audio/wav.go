// Package audio builds and inspects canonical PCM WAV containers.
package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// Default neural engine output format: 22050 Hz, 16-bit, mono.
const (
	DefaultSampleRate = 22050
	DefaultBitDepth   = 16
	DefaultChannels   = 1
)

// HeaderSize is the length of a canonical PCM WAV header.
const HeaderSize = 44

// Validation limits.
const (
	maxSampleRate = 192000
	maxChannels   = 8
	bitsPerByte   = 8
	fmtChunkSize  = 16
	pcmFormatTag  = 1
	riffOverhead  = HeaderSize - 8
)

// Chunk identifiers.
var (
	idRIFF = []byte("RIFF")
	idWAVE = []byte("WAVE")
	idFmt  = []byte("fmt ")
	idData = []byte("data")
)

// Error messages and formats.
const (
	errFmtSampleRateRange = "%w: sample rate must be between 1 and %d Hz"
	errFmtBitDepthValues  = "%w: bit depth must be 8, 16, 24, or 32"
	errFmtChannelsRange   = "%w: channels must be between 1 and %d"
	errFmtPayloadTooLarge = "%w: payload of %d bytes does not fit a RIFF container"
	errFmtSizeMismatch    = "%w: header declares %d data bytes, container holds %d"
)

// Common errors for the audio package.
var (
	ErrInvalidFormat    = errors.New("invalid audio format")
	ErrInvalidContainer = errors.New("invalid wav container")
)

// Format describes interleaved little-endian PCM samples.
type Format struct {
	SampleRate int `json:"sampleRate"`
	BitDepth   int `json:"bitDepth"`
	Channels   int `json:"channels"`
}

// DefaultFormat is the raw output format of the neural engine.
func DefaultFormat() Format {
	return Format{
		SampleRate: DefaultSampleRate,
		BitDepth:   DefaultBitDepth,
		Channels:   DefaultChannels,
	}
}

// Validate checks that the format can be expressed in a PCM WAV header.
func (f Format) Validate() error {
	if f.SampleRate <= 0 || f.SampleRate > maxSampleRate {
		return fmt.Errorf(errFmtSampleRateRange, ErrInvalidFormat, maxSampleRate)
	}

	switch f.BitDepth {
	case 8, 16, 24, 32:
	default:
		return fmt.Errorf(errFmtBitDepthValues, ErrInvalidFormat)
	}

	if f.Channels <= 0 || f.Channels > maxChannels {
		return fmt.Errorf(errFmtChannelsRange, ErrInvalidFormat, maxChannels)
	}

	return nil
}

// BlockAlign is the size of one frame in bytes.
func (f Format) BlockAlign() int {
	return f.Channels * f.BitDepth / bitsPerByte
}

// ByteRate is the number of payload bytes per second.
func (f Format) ByteRate() int {
	return f.SampleRate * f.BlockAlign()
}

// Header returns the 44-byte canonical header for dataSize bytes of PCM.
func Header(format Format, dataSize int) ([]byte, error) {
	err := format.Validate()
	if err != nil {
		return nil, err
	}

	if dataSize < 0 || uint64(dataSize) > math.MaxUint32-riffOverhead {
		return nil, fmt.Errorf(errFmtPayloadTooLarge, ErrInvalidContainer, dataSize)
	}

	header := make([]byte, 0, HeaderSize)
	header = append(header, idRIFF...)
	header = binary.LittleEndian.AppendUint32(header, uint32(dataSize+riffOverhead))
	header = append(header, idWAVE...)

	header = append(header, idFmt...)
	header = binary.LittleEndian.AppendUint32(header, fmtChunkSize)
	header = binary.LittleEndian.AppendUint16(header, pcmFormatTag)
	header = binary.LittleEndian.AppendUint16(header, uint16(format.Channels))
	header = binary.LittleEndian.AppendUint32(header, uint32(format.SampleRate))
	header = binary.LittleEndian.AppendUint32(header, uint32(format.ByteRate()))
	header = binary.LittleEndian.AppendUint16(header, uint16(format.BlockAlign()))
	header = binary.LittleEndian.AppendUint16(header, uint16(format.BitDepth))

	header = append(header, idData...)
	header = binary.LittleEndian.AppendUint32(header, uint32(dataSize))

	return header, nil
}

// Wrap prepends a canonical header sized to pcm.
func Wrap(format Format, pcm []byte) ([]byte, error) {
	header, err := Header(format, len(pcm))
	if err != nil {
		return nil, err
	}

	wav := make([]byte, 0, len(header)+len(pcm))
	wav = append(wav, header...)
	wav = append(wav, pcm...)

	return wav, nil
}

// IsWAV reports whether data starts with RIFF/WAVE magic.
func IsWAV(data []byte) bool {
	return len(data) >= 12 && bytes.Equal(data[0:4], idRIFF) && bytes.Equal(data[8:12], idWAVE)
}

// Parse reads a canonical container and returns its format and PCM payload.
// The declared RIFF and data sizes must match the payload exactly.
func Parse(wav []byte) (Format, []byte, error) {
	if len(wav) < HeaderSize || !IsWAV(wav) ||
		!bytes.Equal(wav[12:16], idFmt) || !bytes.Equal(wav[36:40], idData) {
		return Format{}, nil, fmt.Errorf("%w: missing canonical header", ErrInvalidContainer)
	}

	if binary.LittleEndian.Uint16(wav[20:22]) != pcmFormatTag {
		return Format{}, nil, fmt.Errorf("%w: not pcm", ErrInvalidContainer)
	}

	format := Format{
		Channels:   int(binary.LittleEndian.Uint16(wav[22:24])),
		SampleRate: int(binary.LittleEndian.Uint32(wav[24:28])),
		BitDepth:   int(binary.LittleEndian.Uint16(wav[34:36])),
	}

	payload := wav[HeaderSize:]
	dataSize := binary.LittleEndian.Uint32(wav[40:44])
	riffSize := binary.LittleEndian.Uint32(wav[4:8])

	if uint64(dataSize) != uint64(len(payload)) || uint64(riffSize) != uint64(len(payload))+riffOverhead {
		return Format{}, nil, fmt.Errorf(errFmtSizeMismatch, ErrInvalidContainer, dataSize, len(payload))
	}

	return format, payload, nil
}
