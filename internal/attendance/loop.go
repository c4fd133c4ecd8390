package attendance

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Enigma-Deez/Roll-Call/internal/camera"
	"github.com/Enigma-Deez/Roll-Call/internal/database"
	"github.com/Enigma-Deez/Roll-Call/internal/faceclient"
	"github.com/Enigma-Deez/Roll-Call/internal/facematch"
)

// Oracle detects every face in an image and returns one encoding per face.
type Oracle interface {
	DetectAndEncode(ctx context.Context, image []byte) ([]faceclient.Face, error)
}

// loop is the per-session worker. Everything except the store and the event sink
// is owned by the loop goroutine.
type loop struct {
	sessionID string
	device    int
	store     database.Store
	oracle    Oracle
	gallery   *facematch.Gallery
	matcher   facematch.Matcher
	cooldown  *Cooldown
	cfg       Config
	stop      <-chan struct{}
	now       func() time.Time
	events    EventSink
	logger    *slog.Logger

	lecturerSet bool

	// pending holds the newest suppressed sighting per student, written every
	// LastSeenFlush and on exit.
	pending   map[string]time.Time
	flushedAt time.Time
}

// run polls the camera until the stop signal fires. A non-nil error means the
// session crashed.
func (l *loop) run(ctx context.Context, h camera.Handle) error {
	for {
		if l.stopped(ctx) {
			return nil
		}

		frame, ok, err := l.readFrame(ctx, h)
		if err != nil {
			l.logger.Warn("attendance: frame read failed", "session", l.sessionID, "error", err)
		}
		if err != nil || !ok {
			if !l.pause(ctx, l.cfg.FrameRetryDelay) {
				return nil
			}
			continue
		}

		faces := l.detect(ctx, frame)
		now := l.now()
		for _, face := range faces {
			if err := l.handleFace(ctx, face.Encoding, now); err != nil {
				return err
			}
		}
		l.maybeFlush(ctx, now)

		if !l.pause(ctx, l.cfg.PacingInterval) {
			return nil
		}
	}
}

func (l *loop) stopped(ctx context.Context) bool {
	select {
	case <-l.stop:
		return true
	case <-ctx.Done():
		return true
	default:
		return false
	}
}

// pause waits for d and reports false if the loop was asked to stop meanwhile.
func (l *loop) pause(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return !l.stopped(ctx)
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-l.stop:
		return false
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (l *loop) bounded(ctx context.Context) (context.Context, context.CancelFunc) {
	if l.cfg.CollaboratorTimeout > 0 {
		return context.WithTimeout(ctx, l.cfg.CollaboratorTimeout)
	}
	return context.WithCancel(ctx)
}

func (l *loop) readFrame(ctx context.Context, h camera.Handle) ([]byte, bool, error) {
	ctx, cancel := l.bounded(ctx)
	defer cancel()
	return h.ReadFrame(ctx)
}

// detect returns no faces when the oracle fails; the next frame is tried as usual.
func (l *loop) detect(ctx context.Context, frame []byte) []faceclient.Face {
	ctx, cancel := l.bounded(ctx)
	defer cancel()

	faces, err := l.oracle.DetectAndEncode(ctx, frame)
	if err != nil {
		l.logger.Warn("attendance: detection failed",
			"session", l.sessionID,
			"error", fmt.Errorf("%w: %w", ErrDetectionFailed, err))
		return nil
	}
	return faces
}

func (l *loop) handleFace(ctx context.Context, encoding []float32, now time.Time) error {
	m, ok := l.matcher.Match(encoding, l.gallery)
	if !ok {
		return nil
	}
	switch m.Kind {
	case database.KindStudent:
		return l.recordStudent(ctx, m, now)
	case database.KindLecturer:
		return l.assignLecturer(ctx, m, now)
	}
	return nil
}

func (l *loop) recordStudent(ctx context.Context, m facematch.Match, now time.Time) error {
	if !l.cooldown.ShouldRecord(m.IdentityID, now) {
		l.pending[m.IdentityID] = now
		return nil
	}
	if err := l.store.RecordSighting(ctx, l.sessionID, m.IdentityID, now); err != nil {
		return fmt.Errorf("%w: record sighting: %w", ErrStoreUnavailable, err)
	}
	delete(l.pending, m.IdentityID)
	l.cooldown.MarkRecorded(m.IdentityID, now)

	l.logger.Debug("attendance: student recorded",
		"session", l.sessionID,
		"student", m.IdentityID,
		"distance", m.Distance)
	l.events.Publish(Event{
		Type:       EventAttendance,
		SessionID:  l.sessionID,
		IdentityID: m.IdentityID,
		Name:       m.Name,
		Distance:   m.Distance,
		Device:     l.device,
		Time:       now,
	})
	return nil
}

func (l *loop) assignLecturer(ctx context.Context, m facematch.Match, now time.Time) error {
	if l.lecturerSet || !l.cooldown.ShouldRecord(m.IdentityID, now) {
		return nil
	}
	won, err := l.store.AssignLecturer(ctx, l.sessionID, m.IdentityID)
	if err != nil {
		return fmt.Errorf("%w: assign lecturer: %w", ErrStoreUnavailable, err)
	}
	l.lecturerSet = true
	l.cooldown.MarkRecorded(m.IdentityID, now)
	if !won {
		return nil
	}

	l.logger.Info("attendance: lecturer assigned", "session", l.sessionID, "lecturer", m.IdentityID)
	l.events.Publish(Event{
		Type:       EventLecturerAssigned,
		SessionID:  l.sessionID,
		IdentityID: m.IdentityID,
		Name:       m.Name,
		Distance:   m.Distance,
		Device:     l.device,
		Time:       now,
	})
	return nil
}

// maybeFlush writes pending sightings once LastSeenFlush has passed since the
// previous write. Zero leaves them for the exit flush.
func (l *loop) maybeFlush(ctx context.Context, now time.Time) {
	if l.cfg.LastSeenFlush <= 0 || len(l.pending) == 0 || now.Sub(l.flushedAt) < l.cfg.LastSeenFlush {
		return
	}
	ctx, cancel := l.bounded(ctx)
	defer cancel()
	l.flushPending(ctx)
	l.flushedAt = now
}

// flushPending writes the newest suppressed sighting of each student.
func (l *loop) flushPending(ctx context.Context) {
	for id, seen := range l.pending {
		if err := l.store.TouchLastSeen(ctx, l.sessionID, id, seen); err != nil {
			l.logger.Warn("attendance: last seen not written",
				"session", l.sessionID,
				"student", id,
				"error", err)
		}
	}
	clear(l.pending)
}
