package attendance

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Enigma-Deez/Roll-Call/internal/database"
	"github.com/google/uuid"
)

// ErrNameRequired is returned by Enroll when the display name is blank.
var ErrNameRequired = errors.New("name is required")

// Enroller stores new identities from a single uploaded photo.
type Enroller struct {
	store  database.IdentityWriter
	oracle Oracle
	now    func() time.Time
}

// NewEnroller creates an enroller.
func NewEnroller(store database.IdentityWriter, oracle Oracle) *Enroller {
	return &Enroller{store: store, oracle: oracle, now: time.Now}
}

// Enroll encodes the first face found in image and persists it as a new identity.
// Enrolling the same person twice creates two identities.
func (en *Enroller) Enroll(ctx context.Context, kind database.Kind, name, externalRef string, image []byte) (string, error) {
	if !kind.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidKind, kind)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrNameRequired
	}

	faces, err := en.oracle.DetectAndEncode(ctx, image)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrDetectionFailed, err)
	}
	if len(faces) == 0 || len(faces[0].Encoding) == 0 {
		return "", ErrNoFaceDetected
	}

	identity := &database.Identity{
		ID:          uuid.NewString(),
		Kind:        kind,
		Name:        name,
		ExternalRef: strings.TrimSpace(externalRef),
		Encoding:    faces[0].Encoding,
		CreatedAt:   en.now().UTC(),
	}
	if err := en.store.CreateIdentity(ctx, identity); err != nil {
		return "", fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	return identity.ID, nil
}
