package media

import (
	"bytes"
	"fmt"
	"io"

	"github.com/tcolgate/mp3"

	"github.com/tellatale/engine/internal/fault"
)

// MinAudioBytes is the smallest payload accepted as a narration chunk;
// anything shorter is treated as a provider content fault.
const MinAudioBytes = 100

// Duration sums the frame durations of an MP3 stream and returns seconds.
func Duration(data []byte) (float64, error) {
	const op = "media.mp3_duration"

	dec := mp3.NewDecoder(bytes.NewReader(data))
	var (
		frame   mp3.Frame
		skipped int
		total   float64
	)
	for {
		if err := dec.Decode(&frame, &skipped); err != nil {
			if err == io.EOF {
				break
			}
			// Trailing garbage after valid frames is tolerated.
			if total > 0 {
				break
			}
			return 0, fault.New(fault.ContentFault, op, fmt.Errorf("decode mp3: %w", err))
		}
		total += frame.Duration().Seconds()
	}
	if total == 0 {
		return 0, fault.Errorf(fault.ContentFault, op, "no mp3 frames found")
	}
	return total, nil
}

// CombineChunks concatenates per-page MP3 chunks in order. MP3 frames are
// self-delimiting, so byte concatenation yields a playable stream.
func CombineChunks(chunks [][]byte) []byte {
	var size int
	for _, c := range chunks {
		size += len(c)
	}
	out := make([]byte, 0, size)
	for _, c := range chunks {
		out = append(out, c...)
	}
	return out
}
