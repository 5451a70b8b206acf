// Package logs reads the daemon's log file for CLI tailing over IPC.
package logs

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"time"
)

const defaultLimit = 200

// TailOptions selects which lines to return.
type TailOptions struct {
	// Offset is the byte position to resume from. Negative means "start from
	// the end": return the last Limit lines.
	Offset int64
	// Limit caps the number of lines per call.
	Limit int
	// Follow polls for new lines for up to Wait before returning empty.
	Follow bool
	Wait   time.Duration
}

// TailResult carries the lines read and the offset to resume from.
type TailResult struct {
	Lines  []string
	Offset int64
}

// Tail reads log lines starting at the requested offset. A missing file is not
// an error; it returns no lines so a follower can keep polling.
func Tail(ctx context.Context, path string, opts TailOptions) (TailResult, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = defaultLimit
	}

	result, err := readLines(path, opts.Offset, limit)
	if err != nil {
		return result, err
	}
	if len(result.Lines) > 0 || !opts.Follow {
		return result, nil
	}

	wait := opts.Wait
	if wait <= 0 {
		wait = time.Second
	}
	deadline := time.NewTimer(wait)
	defer deadline.Stop()
	poll := time.NewTicker(200 * time.Millisecond)
	defer poll.Stop()

	for {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		case <-deadline.C:
			return result, nil
		case <-poll.C:
			next, err := readLines(path, result.Offset, limit)
			if err != nil {
				return next, err
			}
			if len(next.Lines) > 0 {
				return next, nil
			}
			result = next
		}
	}
}

func readLines(path string, offset int64, limit int) (TailResult, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return TailResult{Offset: maxInt64(offset, 0)}, nil
		}
		return TailResult{}, fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	if offset < 0 {
		return readLastLines(f, limit)
	}

	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return TailResult{}, fmt.Errorf("seek log file: %w", err)
	}

	result := TailResult{Offset: offset}
	reader := bufio.NewReader(f)
	for len(result.Lines) < limit {
		line, err := reader.ReadString('\n')
		if err != nil {
			// A partial line without a newline is left for the next call.
			break
		}
		result.Lines = append(result.Lines, trimNewline(line))
		result.Offset += int64(len(line))
	}
	return result, nil
}

func readLastLines(f *os.File, limit int) (TailResult, error) {
	result := TailResult{}
	reader := bufio.NewReader(f)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			break
		}
		result.Lines = append(result.Lines, trimNewline(line))
		result.Offset += int64(len(line))
	}
	if len(result.Lines) > limit {
		result.Lines = result.Lines[len(result.Lines)-limit:]
	}
	return result, nil
}

func trimNewline(line string) string {
	for len(line) > 0 && (line[len(line)-1] == '\n' || line[len(line)-1] == '\r') {
		line = line[:len(line)-1]
	}
	return line
}

func maxInt64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
