package speech

import (
	"encoding/binary"
	"errors"
)

// The TTS model returns raw PCM: 16-bit little-endian mono at 24 kHz.
const (
	SampleRate    = 24000
	BitsPerSample = 16
	Channels      = 1

	wavHeaderSize = 44
)

// EncodeWAV wraps raw PCM bytes in a 44-byte RIFF/WAVE header.
func EncodeWAV(pcm []byte) []byte {
	blockAlign := Channels * (BitsPerSample / 8)
	byteRate := SampleRate * blockAlign
	dataSize := len(pcm)
	fileSize := wavHeaderSize + dataSize - 8

	out := make([]byte, wavHeaderSize+dataSize)
	copy(out[0:4], "RIFF")
	binary.LittleEndian.PutUint32(out[4:8], uint32(fileSize))
	copy(out[8:12], "WAVE")

	copy(out[12:16], "fmt ")
	binary.LittleEndian.PutUint32(out[16:20], 16)
	binary.LittleEndian.PutUint16(out[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(out[22:24], uint16(Channels))
	binary.LittleEndian.PutUint32(out[24:28], uint32(SampleRate))
	binary.LittleEndian.PutUint32(out[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(out[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(out[34:36], uint16(BitsPerSample))

	copy(out[36:40], "data")
	binary.LittleEndian.PutUint32(out[40:44], uint32(dataSize))

	copy(out[wavHeaderSize:], pcm)
	return out
}

// ConcatWAV merges same-format WAV files into one: the data sections are
// concatenated under the first file's header with recalculated sizes. A
// single input is returned unchanged.
func ConcatWAV(files [][]byte) ([]byte, error) {
	if len(files) == 0 {
		return nil, errors.New("no audio to concatenate")
	}
	if len(files) == 1 {
		return files[0], nil
	}

	total := 0
	for _, f := range files {
		if len(f) < wavHeaderSize {
			return nil, errors.New("audio chunk shorter than wav header")
		}
		total += len(f) - wavHeaderSize
	}

	out := make([]byte, 0, wavHeaderSize+total)
	out = append(out, files[0][:wavHeaderSize]...)
	for _, f := range files {
		out = append(out, f[wavHeaderSize:]...)
	}

	binary.LittleEndian.PutUint32(out[4:8], uint32(wavHeaderSize+total-8))
	binary.LittleEndian.PutUint32(out[40:44], uint32(total))
	return out, nil
}
