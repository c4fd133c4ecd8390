package camera

import (
	"context"
	"errors"
	"testing"
)

type fakeHandle struct {
	closes int
}

func (h *fakeHandle) ReadFrame(ctx context.Context) ([]byte, bool, error) {
	return []byte{0xFF, 0xD8}, true, nil
}

func (h *fakeHandle) Close() error {
	h.closes++
	return nil
}

func TestLeased_SecondOpenIsBusy(t *testing.T) {
	opened := map[int]*fakeHandle{}
	leased := NewLeased(SourceFunc(func(device int) (Handle, error) {
		h := &fakeHandle{}
		opened[device] = h
		return h, nil
	}))

	first, err := leased.Open(0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := leased.Open(0); !errors.Is(err, ErrDeviceBusy) {
		t.Fatalf("expected ErrDeviceBusy, got %v", err)
	}

	other, err := leased.Open(1)
	if err != nil {
		t.Fatalf("expected a different device to open, got %v", err)
	}
	defer other.Close()

	if err := first.Close(); err != nil {
		t.Fatalf("unexpected close error: %v", err)
	}
	if leased.InUse(0) {
		t.Error("expected device 0 to be released after close")
	}

	again, err := leased.Open(0)
	if err != nil {
		t.Fatalf("expected reopen after release, got %v", err)
	}
	again.Close()
}

func TestLeased_CloseIsIdempotent(t *testing.T) {
	h := &fakeHandle{}
	leased := NewLeased(SourceFunc(func(int) (Handle, error) { return h, nil }))

	handle, err := leased.Open(3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	handle.Close()
	handle.Close()

	if h.closes != 1 {
		t.Errorf("expected underlying handle closed once, got %d", h.closes)
	}
}

func TestLeased_FailedOpenReleases(t *testing.T) {
	leased := NewLeased(SourceFunc(func(int) (Handle, error) {
		return nil, ErrUnavailable
	}))

	if _, err := leased.Open(0); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if leased.InUse(0) {
		t.Error("expected failed open to drop the lease")
	}
}
