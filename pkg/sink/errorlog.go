package sink

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/newtron-network/bulkcfg/pkg/classify"
)

// ErrClosed is returned by Append after Close.
var ErrClosed = errors.New("error log closed")

type errorEntry struct {
	line string
	ack  chan error
}

// ErrorLog is the shared config error log. A single goroutine owns the
// file; workers hand it complete lines over a channel so entries from
// different devices never interleave.
type ErrorLog struct {
	path    string
	now     func() time.Time
	file    *os.File
	entries chan errorEntry
	quit    chan struct{}
	done    chan struct{}
	once    sync.Once
}

// OpenErrorLog opens path for append and starts the writer.
func OpenErrorLog(path string, now func() time.Time) (*ErrorLog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating error log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("opening error log: %w", err)
	}
	if now == nil {
		now = time.Now
	}
	l := &ErrorLog{
		path:    path,
		now:     now,
		file:    f,
		entries: make(chan errorEntry),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go l.run()
	return l, nil
}

// Path returns the log file path.
func (l *ErrorLog) Path() string {
	return l.path
}

// Append writes one line for a rejected config line and waits until it
// is on disk.
func (l *ErrorLog) Append(address string, r classify.Result) error {
	line := fmt.Sprintf("%s %s %s Invalid command: %s\n",
		l.now().Format(TimestampFormat), address, r.Context, r.OffendingLine)
	e := errorEntry{line: line, ack: make(chan error, 1)}
	select {
	case l.entries <- e:
	case <-l.quit:
		return ErrClosed
	}
	return <-e.ack
}

// Close stops the writer and closes the file.
func (l *ErrorLog) Close() error {
	l.once.Do(func() { close(l.quit) })
	<-l.done
	return l.file.Close()
}

func (l *ErrorLog) run() {
	defer close(l.done)
	for {
		select {
		case e := <-l.entries:
			_, err := l.file.WriteString(e.line)
			e.ack <- err
		case <-l.quit:
			return
		}
	}
}
