package camera

import (
	"context"
	"fmt"
	"sync"
)

// Leased wraps a Source so each device is held by at most one handle at a time.
type Leased struct {
	source Source

	mu   sync.Mutex
	held map[int]bool
}

// NewLeased returns a Source that refuses to open a device that is already open.
func NewLeased(source Source) *Leased {
	return &Leased{source: source, held: make(map[int]bool)}
}

// Open reserves the device then opens it. The reservation is dropped when
// the open fails or when the returned handle is closed.
func (l *Leased) Open(device int) (Handle, error) {
	l.mu.Lock()
	if l.held[device] {
		l.mu.Unlock()
		return nil, fmt.Errorf("device %d: %w", device, ErrDeviceBusy)
	}
	l.held[device] = true
	l.mu.Unlock()

	h, err := l.source.Open(device)
	if err != nil {
		l.release(device)
		return nil, err
	}
	return &leasedHandle{Handle: h, release: func() { l.release(device) }}, nil
}

// InUse reports whether the device is currently leased.
func (l *Leased) InUse(device int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.held[device]
}

func (l *Leased) release(device int) {
	l.mu.Lock()
	delete(l.held, device)
	l.mu.Unlock()
}

type leasedHandle struct {
	Handle
	once    sync.Once
	release func()
	err     error
}

func (h *leasedHandle) ReadFrame(ctx context.Context) ([]byte, bool, error) {
	return h.Handle.ReadFrame(ctx)
}

func (h *leasedHandle) Close() error {
	h.once.Do(func() {
		h.err = h.Handle.Close()
		h.release()
	})
	return h.err
}
