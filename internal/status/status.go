package status

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/dafidxcode/tehsainesia/internal/logging"
)

// tailWindow bounds how much of the log is read to find the last line.
const tailWindow = 64 * 1024

type FingerprintCounter interface {
	Count(ctx context.Context) (int, error)
}

// Report is a point-in-time liveness summary of the bot.
type Report struct {
	LogFound     bool
	LastLine     string
	LastActivity time.Time
	Idle         time.Duration
	Stale        bool
	LogErr       error

	Fingerprints    int
	FingerprintsErr error
}

// Active reports whether the last log entry is recent enough.
func (r Report) Active() bool {
	return r.LogFound && r.LogErr == nil && !r.Stale
}

// Inspect reads the tail of the event log and counts stored fingerprints.
func Inspect(ctx context.Context, logPath string, store FingerprintCounter, staleAfter time.Duration, now time.Time) Report {
	var r Report

	line, err := LastLine(logPath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		r.LogFound = true
		r.LogErr = err
	default:
		r.LogFound = true
		r.LastLine = line
		if line == "" {
			r.LogErr = errors.New("log is empty")
			break
		}
		r.LastActivity, r.LogErr = ParseTimestamp(line)
		if r.LogErr == nil {
			r.Idle = now.Sub(r.LastActivity)
			r.Stale = r.Idle > staleAfter
		}
	}

	if store != nil {
		r.Fingerprints, r.FingerprintsErr = store.Count(ctx)
	}

	return r
}

// LastLine returns the last non-empty line of the file at path.
func LastLine(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", err
	}

	offset := info.Size() - tailWindow
	if offset < 0 {
		offset = 0
	}
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return "", err
	}

	data, err := io.ReadAll(f)
	if err != nil {
		return "", err
	}

	lines := strings.Split(strings.TrimRight(string(data), "\r\n"), "\n")
	return strings.TrimSpace(lines[len(lines)-1]), nil
}

// ParseTimestamp extracts the local timestamp leading a log line.
func ParseTimestamp(line string) (time.Time, error) {
	stamp, _, ok := strings.Cut(line, logging.Separator)
	if !ok {
		return time.Time{}, fmt.Errorf("no timestamp in %q", line)
	}
	t, err := time.ParseInLocation(logging.TimeLayout, stamp, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse log timestamp: %w", err)
	}
	return t, nil
}
