package attendance

import (
	"context"
	"fmt"
	"time"

	"github.com/Enigma-Deez/Roll-Call/internal/database"
	"github.com/google/uuid"
)

// AttendeeView is one attendance row with the student's name resolved.
type AttendeeView struct {
	StudentID   string    `json:"student_id"`
	Name        string    `json:"name"`
	ExternalRef string    `json:"external_ref"`
	FirstSeen   time.Time `json:"first_seen"`
	LastSeen    time.Time `json:"last_seen"`
	Status      string    `json:"status"`
}

// SessionDetail is a stored session with its attendance list.
type SessionDetail struct {
	ID           string         `json:"id"`
	StartTime    time.Time      `json:"start_time"`
	EndTime      *time.Time     `json:"end_time,omitempty"`
	Active       bool           `json:"active"`
	LecturerID   string         `json:"lecturer_id,omitempty"`
	LecturerName string         `json:"lecturer_name,omitempty"`
	EndReason    string         `json:"end_reason,omitempty"`
	State        State          `json:"state,omitempty"` // empty when this process never ran it
	Attendance   []AttendeeView `json:"attendance"`
}

// LoadSessionDetail reads a session and its attendance from the store.
// Session ids are UUIDs; anything else is unknown without asking the store, and
// other UUID spellings are looked up in canonical form.
func LoadSessionDetail(ctx context.Context, store database.Store, id string) (*SessionDetail, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, ErrUnknownSession
	}
	id = parsed.String()
	session, err := store.GetSession(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	if session == nil {
		return nil, ErrUnknownSession
	}
	records, err := store.ListAttendance(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	detail := &SessionDetail{
		ID:         session.ID,
		StartTime:  session.StartTime,
		EndTime:    session.EndTime,
		Active:     session.Active,
		LecturerID: session.LecturerID,
		EndReason:  session.EndReason,
		Attendance: make([]AttendeeView, 0, len(records)),
	}
	if session.LecturerID != "" {
		if lecturer, err := store.GetIdentity(ctx, session.LecturerID); err == nil && lecturer != nil {
			detail.LecturerName = lecturer.Name
		}
	}
	for _, rec := range records {
		view := AttendeeView{
			StudentID: rec.StudentID,
			FirstSeen: rec.FirstSeen,
			LastSeen:  rec.LastSeen,
			Status:    rec.Status,
		}
		if student, err := store.GetIdentity(ctx, rec.StudentID); err == nil && student != nil {
			view.Name = student.Name
			view.ExternalRef = student.ExternalRef
		}
		detail.Attendance = append(detail.Attendance, view)
	}
	return detail, nil
}

// SessionDetail is LoadSessionDetail with the registry state filled in.
func (e *Engine) SessionDetail(ctx context.Context, id string) (*SessionDetail, error) {
	detail, err := LoadSessionDetail(ctx, e.store, id)
	if err != nil {
		return nil, err
	}
	if entry, ok := e.registry.Get(detail.ID); ok {
		detail.State = entry.State
	}
	return detail, nil
}
