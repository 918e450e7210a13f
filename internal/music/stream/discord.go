package stream

import (
	"errors"
	"fmt"
	"io"

	"layeh.com/gopus"

	"github.com/keshon/lapis-music/internal/music/audio"
)

// StreamToDiscord encodes PCM from stream into opus frames on out until the
// stream ends or stop is closed. volume is read once per frame.
func StreamToDiscord(stop <-chan struct{}, stream io.Reader, out chan<- []byte, volume func() float64) error {
	encoder, err := gopus.NewEncoder(audio.SampleRate, audio.Channels, gopus.Audio)
	if err != nil {
		return fmt.Errorf("encoder error: %w", err)
	}

	pcmBuf := make([]byte, audio.FrameBytes)
	intBuf := make([]int16, audio.FrameSize*audio.Channels)

	for {
		select {
		case <-stop:
			return nil
		default:
		}

		if _, err := io.ReadFull(stream, pcmBuf); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return nil
			}
			return fmt.Errorf("read error: %w", err)
		}

		audio.Decode(intBuf, pcmBuf)
		audio.ApplyGain(intBuf, volume())

		opus, err := encoder.Encode(intBuf, audio.FrameSize, len(pcmBuf))
		if err != nil {
			return fmt.Errorf("encode error: %w", err)
		}

		select {
		case out <- opus:
		case <-stop:
			return nil
		}
	}
}
