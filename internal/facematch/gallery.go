package facematch

import (
	"context"
	"crypto/sha256"
	"fmt"
	"math"

	"github.com/Enigma-Deez/Roll-Call/internal/database"
)

// Gallery is an immutable snapshot of enrolled encodings.
// Entry order is students first then lecturers, each in store order; it decides ties.
type Gallery struct {
	entries []Entry
	kinds   map[string]database.Kind
}

// NewGallery builds a gallery from identities in the given order.
// Identities without an encoding are skipped.
func NewGallery(identities []database.Identity) *Gallery {
	g := &Gallery{
		entries: make([]Entry, 0, len(identities)),
		kinds:   make(map[string]database.Kind, len(identities)),
	}
	for _, id := range identities {
		if len(id.Encoding) == 0 {
			continue
		}
		g.entries = append(g.entries, Entry{
			IdentityID: id.ID,
			Kind:       id.Kind,
			Name:       id.Name,
			Encoding:   id.Encoding,
		})
		g.kinds[id.ID] = id.Kind
	}
	return g
}

// Load snapshots every student and then every lecturer from the store.
func Load(ctx context.Context, r database.IdentityReader) (*Gallery, error) {
	students, err := r.ListIdentities(ctx, database.KindStudent)
	if err != nil {
		return nil, fmt.Errorf("load students: %w", err)
	}
	lecturers, err := r.ListIdentities(ctx, database.KindLecturer)
	if err != nil {
		return nil, fmt.Errorf("load lecturers: %w", err)
	}

	all := make([]database.Identity, 0, len(students)+len(lecturers))
	all = append(all, students...)
	all = append(all, lecturers...)
	return NewGallery(all), nil
}

// Len returns the number of entries.
func (g *Gallery) Len() int {
	if g == nil {
		return 0
	}
	return len(g.entries)
}

// Entries returns the entries in gallery order. The slice must not be modified.
func (g *Gallery) Entries() []Entry {
	if g == nil {
		return nil
	}
	return g.entries
}

// Fingerprint identifies the set of identities in gallery order. Two galleries
// of the same size over different identities have different fingerprints.
func (g *Gallery) Fingerprint() [sha256.Size]byte {
	h := sha256.New()
	for _, e := range g.Entries() {
		h.Write([]byte(e.IdentityID))
		h.Write([]byte{0})
	}
	var sum [sha256.Size]byte
	h.Sum(sum[:0])
	return sum
}

// KindOf looks up the kind of an identity in the snapshot.
func (g *Gallery) KindOf(identityID string) (database.Kind, bool) {
	if g == nil {
		return "", false
	}
	k, ok := g.kinds[identityID]
	return k, ok
}

// Nearest returns the entry with the minimum distance to probe.
// On equal distances the entry that comes first in gallery order wins.
// Returns false for an empty gallery or when no entry has the probe's dimension.
func (g *Gallery) Nearest(probe []float32) (Match, bool) {
	best := -1
	bestDist := 0.0
	for i := range g.Entries() {
		d := EuclideanDistance(probe, g.entries[i].Encoding)
		if best == -1 || d < bestDist {
			best = i
			bestDist = d
		}
	}
	if best == -1 || math.IsInf(bestDist, 1) {
		return Match{}, false
	}

	e := g.entries[best]
	return Match{IdentityID: e.IdentityID, Kind: e.Kind, Name: e.Name, Distance: bestDist}, true
}
