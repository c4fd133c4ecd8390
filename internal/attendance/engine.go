// Package attendance runs live identification sessions: one loop per session that
// reads camera frames, asks the face oracle for encodings, matches them against a
// gallery snapshot and writes attendance with a per-identity cool-down.
package attendance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/Enigma-Deez/Roll-Call/internal/camera"
	"github.com/Enigma-Deez/Roll-Call/internal/config"
	"github.com/Enigma-Deez/Roll-Call/internal/database"
	"github.com/Enigma-Deez/Roll-Call/internal/facematch"
	"github.com/google/uuid"
)

// finishTimeout bounds the store writes made after a loop exits.
const finishTimeout = 10 * time.Second

// Config holds the engine tunables.
type Config struct {
	Device              int
	Threshold           float64
	Cooldown            time.Duration
	FrameRetryDelay     time.Duration
	PacingInterval      time.Duration
	CollaboratorTimeout time.Duration
	LastSeenFlush       time.Duration
	Retention           time.Duration
	PruneInterval       time.Duration
}

// ConfigFrom copies the engine settings out of the application config.
func ConfigFrom(cfg *config.Config) Config {
	return Config{
		Device:              cfg.Camera.Device,
		Threshold:           cfg.Matching.Tolerance,
		Cooldown:            cfg.Matching.Cooldown,
		FrameRetryDelay:     cfg.Loop.FrameRetryDelay,
		PacingInterval:      cfg.Loop.PacingInterval,
		CollaboratorTimeout: cfg.Loop.CollaboratorTimeout,
		LastSeenFlush:       cfg.Loop.LastSeenFlush,
		Retention:           cfg.Registry.Retention,
		PruneInterval:       cfg.Registry.PruneInterval,
	}
}

// Engine starts, stops and supervises session loops.
type Engine struct {
	store    database.Store
	oracle   Oracle
	cameras  camera.Source
	registry *Registry
	cfg      Config
	events   EventSink
	logger   *slog.Logger
	now      func() time.Time

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	closing bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithEvents sets the sink that receives session events.
func WithEvents(sink EventSink) Option {
	return func(e *Engine) {
		if sink != nil {
			e.events = sink
		}
	}
}

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithClock replaces time.Now for sighting and session timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// NewEngine creates an engine. Camera devices are leased exclusively, so cameras is
// wrapped in a camera.Leased unless it already is one.
func NewEngine(store database.Store, oracle Oracle, cameras camera.Source, registry *Registry, cfg Config, opts ...Option) *Engine {
	if _, ok := cameras.(*camera.Leased); !ok {
		cameras = camera.NewLeased(cameras)
	}
	if registry == nil {
		registry = NewRegistry(nil)
	}
	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		store:    store,
		oracle:   oracle,
		cameras:  cameras,
		registry: registry,
		cfg:      cfg,
		events:   discardSink{},
		logger:   slog.Default(),
		now:      time.Now,
		ctx:      ctx,
		cancel:   cancel,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Registry returns the engine's session registry.
func (e *Engine) Registry() *Registry {
	return e.registry
}

// DefaultDevice is the camera used when a start request names none.
func (e *Engine) DefaultDevice() int {
	return e.cfg.Device
}

// Start creates the session record, registers it and launches its loop.
// Gallery and camera failures happen inside the loop and leave the session crashed.
func (e *Engine) Start(ctx context.Context, device int) (string, error) {
	e.mu.Lock()
	if e.closing {
		e.mu.Unlock()
		return "", ErrShuttingDown
	}
	e.wg.Add(1)
	e.mu.Unlock()

	id := uuid.NewString()
	started := e.now()
	session := &database.Session{ID: id, StartTime: started, Active: true}
	if err := e.store.CreateSession(ctx, session); err != nil {
		e.wg.Done()
		return "", fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	stop, err := e.registry.RegisterDevice(id, device)
	if err != nil {
		e.wg.Done()
		return "", err
	}
	// Shutdown may have taken its snapshot of running sessions while the record
	// was being created; such a session is stopped here instead.
	e.mu.Lock()
	closing := e.closing
	e.mu.Unlock()
	if closing {
		e.registry.Deactivate(id)
	}

	e.logger.Info("attendance: session started", "session", id, "device", device)
	e.events.Publish(Event{Type: EventSessionStarted, SessionID: id, Device: device, Time: started})

	go e.supervise(id, device, stop)
	return id, nil
}

// Stop asks a session to stop. It never fails: unknown and already stopped ids are ignored.
func (e *Engine) Stop(id string) {
	e.registry.Deactivate(id)
}

// Running returns the ids of sessions whose loops are running.
func (e *Engine) Running() []string {
	return e.registry.RunningIDs()
}

// Sessions returns every registry entry, including recently ended ones.
func (e *Engine) Sessions() []Entry {
	return e.registry.Entries()
}

// Wait blocks until the session's loop has exited or ctx is done.
func (e *Engine) Wait(ctx context.Context, id string) error {
	done, ok := e.registry.Done(id)
	if !ok {
		return ErrUnknownSession
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// supervise runs one session to completion and records how it ended.
func (e *Engine) supervise(id string, device int, stop <-chan struct{}) {
	defer e.wg.Done()
	defer e.registry.markDone(id)

	err := e.runSession(id, device, stop)

	finishCtx, cancel := context.WithTimeout(context.WithoutCancel(e.ctx), finishTimeout)
	defer cancel()
	ended := e.now()

	if err != nil {
		e.registry.MarkCrashed(id, err)
		switch {
		case errors.Is(err, ErrDeviceBusy):
			e.logger.Error("attendance: camera device busy", "session", id, "device", device, "error", err)
		case errors.Is(err, ErrCameraUnavailable):
			e.logger.Error("attendance: camera unavailable", "session", id, "device", device, "error", err)
		default:
			e.logger.Error("attendance: session crashed", "session", id, "error", err)
		}
		reason := EndReason(err)
		if endErr := e.store.EndSession(finishCtx, id, ended, reason); endErr != nil {
			e.logger.Error("attendance: crashed session not closed", "session", id, "error", endErr)
		}
		e.events.Publish(Event{Type: EventSessionCrashed, SessionID: id, Device: device, Reason: reason, Time: ended})
		return
	}

	e.registry.Deactivate(id)
	if endErr := e.store.EndSession(finishCtx, id, ended, database.EndReasonStopped); endErr != nil {
		e.logger.Error("attendance: session not closed", "session", id, "error", endErr)
	}
	e.logger.Info("attendance: session stopped", "session", id)
	e.events.Publish(Event{Type: EventSessionStopped, SessionID: id, Device: device, Reason: database.EndReasonStopped, Time: ended})
}

func (e *Engine) runSession(id string, device int, stop <-chan struct{}) error {
	gallery, err := facematch.Load(e.ctx, e.store)
	if err != nil {
		return fmt.Errorf("%w: load gallery: %w", ErrStoreUnavailable, err)
	}

	h, err := e.cameras.Open(device)
	if err != nil {
		if errors.Is(err, ErrDeviceBusy) || errors.Is(err, ErrCameraUnavailable) {
			return err
		}
		return fmt.Errorf("%w: device %d: %w", ErrCameraUnavailable, device, err)
	}
	defer func() {
		if err := h.Close(); err != nil {
			e.logger.Warn("attendance: camera close failed", "session", id, "error", err)
		}
	}()

	l := &loop{
		sessionID: id,
		device:    device,
		store:     e.store,
		oracle:    e.oracle,
		gallery:   gallery,
		matcher:   facematch.NewMatcher(e.cfg.Threshold),
		cooldown:  NewCooldown(e.cfg.Cooldown),
		cfg:       e.cfg,
		stop:      stop,
		now:       e.now,
		events:    e.events,
		logger:    e.logger,
		pending:   make(map[string]time.Time),
		flushedAt: e.now(),
	}
	e.logger.Debug("attendance: gallery loaded", "session", id, "identities", gallery.Len())

	if err := l.run(e.ctx, h); err != nil {
		return err
	}

	flushCtx, cancel := context.WithTimeout(context.WithoutCancel(e.ctx), finishTimeout)
	defer cancel()
	l.flushPending(flushCtx)
	return nil
}

// maxEndReason is the end_reason column width in bytes.
const maxEndReason = 255

// EndReason is the end_reason stored for a crashed session. It is cut to
// maxEndReason bytes on a rune boundary so the stored text stays valid UTF-8.
func EndReason(err error) string {
	reason := database.EndReasonCrashed + ": " + err.Error()
	if len(reason) <= maxEndReason {
		return reason
	}
	n := maxEndReason
	for n > 0 && !utf8.RuneStart(reason[n]) {
		n--
	}
	return reason[:n]
}

// CloseOrphaned ends sessions left active by a previous process.
func (e *Engine) CloseOrphaned(ctx context.Context) (int64, error) {
	n, err := e.store.CloseOrphanedSessions(ctx, e.now())
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	if n > 0 {
		e.logger.Warn("attendance: closed orphaned sessions", "count", n)
	}
	return n, nil
}

// RunJanitor prunes ended registry entries until ctx is done.
func (e *Engine) RunJanitor(ctx context.Context) {
	if e.cfg.PruneInterval <= 0 || e.cfg.Retention <= 0 {
		return
	}
	ticker := time.NewTicker(e.cfg.PruneInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := e.registry.Prune(e.cfg.Retention, e.now()); n > 0 {
				e.logger.Debug("attendance: pruned registry entries", "count", n)
			}
		}
	}
}

// Shutdown stops every running session and waits for the loops to exit. If ctx
// expires first, in-flight collaborator calls are cancelled and ctx's error is returned.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	e.closing = true
	e.mu.Unlock()

	for _, id := range e.registry.RunningIDs() {
		e.registry.Deactivate(id)
	}

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		e.cancel()
		return nil
	case <-ctx.Done():
		e.cancel()
		return ctx.Err()
	}
}
