package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"sync"

	"github.com/keshon/lapis-music/internal/music/session"
)

const (
	Channels   = 2
	SampleRate = 48000
	FrameSize  = 960 // 20ms at 48kHz

	// FrameBytes is one s16le stereo frame.
	FrameBytes = FrameSize * Channels * 2
)

var ErrEmptyLocator = errors.New("empty stream locator")

// Binary is the decoder executable, overridable for tests and odd installs.
var Binary = "ffmpeg"

// Args builds the decoder command line turning input into raw PCM on stdout.
func Args(input string, reconnect, audioOnly bool) []string {
	var args []string
	if reconnect {
		args = append(args,
			"-reconnect", "1",
			"-reconnect_streamed", "1",
			"-reconnect_delay_max", "5",
		)
	}
	args = append(args, "-i", input)
	if audioOnly {
		args = append(args, "-vn")
	}
	return append(args,
		"-f", "s16le",
		"-ar", strconv.Itoa(SampleRate),
		"-ac", strconv.Itoa(Channels),
		"-loglevel", "warning",
		"pipe:1",
	)
}

// Stream is a running decoder. Closing it kills the process.
type Stream struct {
	io.ReadCloser
	cmd  *exec.Cmd
	once sync.Once
}

func (s *Stream) Close() error {
	s.once.Do(func() {
		if s.cmd.Process != nil {
			_ = s.cmd.Process.Kill()
		}
		_ = s.cmd.Wait()
	})
	return nil
}

// Open starts the decoder for locator. The process dies with ctx.
func Open(ctx context.Context, locator string, opts session.PlayOptions) (io.ReadCloser, error) {
	if locator == "" {
		return nil, ErrEmptyLocator
	}
	cmd := exec.CommandContext(ctx, Binary, Args(locator, opts.Reconnect, opts.AudioOnly)...)

	reader, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe error: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("command start error: %w", err)
	}
	return &Stream{ReadCloser: reader, cmd: cmd}, nil
}
