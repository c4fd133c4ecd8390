package attendance

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/Enigma-Deez/Roll-Call/internal/camera"
	"github.com/Enigma-Deez/Roll-Call/internal/database"
	"github.com/Enigma-Deez/Roll-Call/internal/database/mock"
	"github.com/Enigma-Deez/Roll-Call/internal/faceclient"
)

var t0 = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

var (
	adaEnc   = []float32{0, 0}
	bobEnc   = []float32{3, 0}
	graceEnc = []float32{0, 3}
	alanEnc  = []float32{3, 3}
	farEnc   = []float32{10, 10}
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

// step is one scripted frame: the clock moves to t0+at when the oracle sees it.
type step struct {
	at    time.Duration
	faces [][]float32
	err   error
}

// scriptedOracle answers by frame content; frames are "0", "1", ...
type scriptedOracle struct {
	clock *fakeClock
	steps []step
}

func (o *scriptedOracle) DetectAndEncode(ctx context.Context, image []byte) ([]faceclient.Face, error) {
	idx, err := strconv.Atoi(string(image))
	if err != nil || idx >= len(o.steps) {
		return nil, nil
	}
	s := o.steps[idx]
	if o.clock != nil {
		o.clock.Set(t0.Add(s.at))
	}
	if s.err != nil {
		return nil, s.err
	}
	faces := make([]faceclient.Face, len(s.faces))
	for i, enc := range s.faces {
		faces[i] = faceclient.Face{Encoding: enc, Score: 0.99}
	}
	return faces, nil
}

// scriptedHandle plays frames once and then reports no frame until closed.
type scriptedHandle struct {
	mu        sync.Mutex
	frames    int
	next      int
	closes    int
	exhausted chan struct{}
	once      sync.Once
}

func newScriptedHandle(frames int) *scriptedHandle {
	return &scriptedHandle{frames: frames, exhausted: make(chan struct{})}
}

func (h *scriptedHandle) ReadFrame(ctx context.Context) ([]byte, bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.next >= h.frames {
		h.once.Do(func() { close(h.exhausted) })
		return nil, false, nil
	}
	frame := []byte(strconv.Itoa(h.next))
	h.next++
	return frame, true, nil
}

func (h *scriptedHandle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closes++
	return nil
}

func (h *scriptedHandle) Closes() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closes
}

type eventRecorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *eventRecorder) Publish(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *eventRecorder) Count(t EventType) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Type == t {
			n++
		}
	}
	return n
}

type harness struct {
	engine *Engine
	store  *mock.Store
	clock  *fakeClock
	events *eventRecorder

	mu      sync.Mutex
	handles map[int]*scriptedHandle
	openErr error
}

func (h *harness) handle(device int) *scriptedHandle {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.handles[device]
}

func testConfig() Config {
	return Config{
		Threshold:       0.5,
		Cooldown:        30 * time.Second,
		FrameRetryDelay: time.Millisecond,
	}
}

// newHarness builds an engine whose camera plays len(steps) frames on every device.
func newHarness(t *testing.T, steps []step) *harness {
	t.Helper()

	store := mock.NewStore()
	for _, id := range []database.Identity{
		{ID: "ada", Kind: database.KindStudent, Name: "Ada", Encoding: adaEnc},
		{ID: "bob", Kind: database.KindStudent, Name: "Bob", Encoding: bobEnc},
		{ID: "grace", Kind: database.KindLecturer, Name: "Grace", Encoding: graceEnc},
		{ID: "alan", Kind: database.KindLecturer, Name: "Alan", Encoding: alanEnc},
	} {
		store.AddIdentity(id)
	}

	h := &harness{
		store:   store,
		clock:   &fakeClock{t: t0},
		events:  &eventRecorder{},
		handles: make(map[int]*scriptedHandle),
	}
	source := camera.SourceFunc(func(device int) (camera.Handle, error) {
		h.mu.Lock()
		defer h.mu.Unlock()
		if h.openErr != nil {
			return nil, h.openErr
		}
		handle := newScriptedHandle(len(steps))
		h.handles[device] = handle
		return handle, nil
	})
	oracle := &scriptedOracle{clock: h.clock, steps: steps}

	h.engine = NewEngine(store, oracle, source, NewRegistry(h.clock.Now), testConfig(),
		WithClock(h.clock.Now),
		WithEvents(h.events),
	)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = h.engine.Shutdown(ctx)
	})
	return h
}

// runToEnd starts a session on device 0, lets the script play out, stops it and
// waits for the loop to finish.
func (h *harness) runToEnd(t *testing.T) string {
	t.Helper()

	id, err := h.engine.Start(context.Background(), 0)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	h.waitExhausted(t, 0)
	h.engine.Stop(id)
	h.wait(t, id)
	return id
}

func (h *harness) waitExhausted(t *testing.T, device int) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		if handle := h.handle(device); handle != nil {
			select {
			case <-handle.exhausted:
				return
			case <-deadline:
				t.Fatal("timed out waiting for the camera script to finish")
			}
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for the camera to open")
		case <-time.After(time.Millisecond):
		}
	}
}

func (h *harness) wait(t *testing.T, id string) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := h.engine.Wait(ctx, id); err != nil {
		t.Fatalf("Wait(%s) failed: %v", id, err)
	}
}

func (h *harness) attendance(t *testing.T, id string) []database.AttendanceRecord {
	t.Helper()
	records, err := h.store.ListAttendance(context.Background(), id)
	if err != nil {
		t.Fatalf("ListAttendance failed: %v", err)
	}
	return records
}

func (h *harness) session(t *testing.T, id string) *database.Session {
	t.Helper()
	s, err := h.store.GetSession(context.Background(), id)
	if err != nil || s == nil {
		t.Fatalf("GetSession(%s) = %v, %v", id, s, err)
	}
	return s
}

var errBoom = errors.New("boom")
