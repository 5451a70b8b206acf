package recordings

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"

	"murmur/internal/services"
)

// AudioDuration reads a WAV file's header and returns its length rounded to
// whole seconds. Only canonical RIFF/WAVE PCM containers are supported, which
// is what the recorder worker writes.
func AudioDuration(path string) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, services.Wrap(services.ErrValidation, "recordings", "audio duration", path, err)
	}
	defer f.Close()
	return wavDuration(f)
}

func wavDuration(r io.ReadSeeker) (int64, error) {
	var header [12]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return 0, fmt.Errorf("read riff header: %w", err)
	}
	if string(header[0:4]) != "RIFF" || string(header[8:12]) != "WAVE" {
		return 0, fmt.Errorf("not a RIFF/WAVE file")
	}

	var byteRate uint32
	var dataSize uint32

	for {
		var chunk [8]byte
		if _, err := io.ReadFull(r, chunk[:]); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				break
			}
			return 0, fmt.Errorf("read chunk header: %w", err)
		}
		id := string(chunk[0:4])
		size := binary.LittleEndian.Uint32(chunk[4:8])

		switch id {
		case "fmt ":
			var fmtChunk [16]byte
			if size < 16 {
				return 0, fmt.Errorf("fmt chunk too small: %d bytes", size)
			}
			if _, err := io.ReadFull(r, fmtChunk[:]); err != nil {
				return 0, fmt.Errorf("read fmt chunk: %w", err)
			}
			byteRate = binary.LittleEndian.Uint32(fmtChunk[8:12])
			if size > 16 {
				if _, err := r.Seek(int64(size-16), io.SeekCurrent); err != nil {
					return 0, fmt.Errorf("skip fmt extension: %w", err)
				}
			}
		case "data":
			dataSize = size
			// Header fields are enough; no need to read the samples.
			if _, err := r.Seek(int64(size), io.SeekCurrent); err != nil {
				return 0, fmt.Errorf("skip data chunk: %w", err)
			}
		default:
			if _, err := r.Seek(int64(size), io.SeekCurrent); err != nil {
				return 0, fmt.Errorf("skip chunk %q: %w", id, err)
			}
		}
		// Chunks are word-aligned.
		if size%2 == 1 {
			if _, err := r.Seek(1, io.SeekCurrent); err != nil {
				break
			}
		}
	}

	if byteRate == 0 {
		return 0, fmt.Errorf("missing or invalid fmt chunk")
	}
	return int64(math.Round(float64(dataSize) / float64(byteRate))), nil
}
