package sink

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// ReadLog appends show output to <Dir>/<address>.txt.
type ReadLog struct {
	dir string
	now func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewReadLog creates dir if needed. now supplies entry timestamps; nil
// means time.Now.
func NewReadLog(dir string, now func() time.Time) (*ReadLog, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating read log directory: %w", err)
	}
	if now == nil {
		now = time.Now
	}
	return &ReadLog{dir: dir, now: now, locks: make(map[string]*sync.Mutex)}, nil
}

// Path returns the log file for address.
func (l *ReadLog) Path(address string) string {
	return filepath.Join(l.dir, address+".txt")
}

// Append writes a timestamp line followed by output.
func (l *ReadLog) Append(address, output string) error {
	lock := l.lockFor(address)
	lock.Lock()
	defer lock.Unlock()

	f, err := os.OpenFile(l.Path(address), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("opening read log for %s: %w", address, err)
	}
	_, err = fmt.Fprintf(f, "%s\n%s\n", l.now().Format(TimestampFormat), output)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("writing read log for %s: %w", address, err)
	}
	return nil
}

func (l *ReadLog) lockFor(address string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.locks[address]
	if !ok {
		m = &sync.Mutex{}
		l.locks[address] = m
	}
	return m
}
