package tail

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ErrNoLogFile means the requested stream has no file yet. Following a
// stream that never existed fails immediately instead of blocking.
var ErrNoLogFile = errors.New("no log file")

// tailChunk bounds how far back the initial context reaches.
const tailChunk = 64 * 1024

// Follow streams path to w until ctx is cancelled: the last lastN existing
// lines first, then every appended line as it arrives. File writes are
// detected via fsnotify with a slow poll as a safety net for missed events.
func Follow(ctx context.Context, path string, w io.Writer, lastN int) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrNoLogFile, path)
		}
		return err
	}
	defer func() { _ = f.Close() }()

	offset, err := writeLastLines(f, w, lastN)
	if err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()
	if err := watcher.Add(path); err != nil {
		return err
	}

	poll := time.NewTicker(time.Second)
	defer poll.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Op.Has(fsnotify.Remove) || ev.Op.Has(fsnotify.Rename) {
				// Rotated away; nothing more to stream from this file.
				return nil
			}
			if ev.Op.Has(fsnotify.Write) {
				if offset, err = drain(f, w, offset); err != nil {
					return err
				}
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return err
		case <-poll.C:
			if offset, err = drain(f, w, offset); err != nil {
				return err
			}
		}
	}
}

// drain copies everything past offset to w and returns the new offset.
func drain(f *os.File, w io.Writer, offset int64) (int64, error) {
	fi, err := f.Stat()
	if err != nil {
		return offset, err
	}
	if fi.Size() <= offset {
		return offset, nil
	}
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return offset, err
	}
	n, err := io.Copy(w, f)
	return offset + n, err
}

// writeLastLines emits up to lastN trailing lines of f and returns the file
// size as the follow offset.
func writeLastLines(f *os.File, w io.Writer, lastN int) (int64, error) {
	fi, err := f.Stat()
	if err != nil {
		return 0, err
	}
	size := fi.Size()
	if lastN <= 0 || size == 0 {
		return size, nil
	}
	start := size - tailChunk
	if start < 0 {
		start = 0
	}
	buf := make([]byte, size-start)
	if _, err := f.ReadAt(buf, start); err != nil && err != io.EOF {
		return size, err
	}
	lines := strings.Split(strings.TrimRight(string(buf), "\n"), "\n")
	if len(lines) > lastN {
		lines = lines[len(lines)-lastN:]
	}
	for _, ln := range lines {
		if _, err := fmt.Fprintln(w, ln); err != nil {
			return size, err
		}
	}
	return size, nil
}
