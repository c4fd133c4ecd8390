package facematch

import (
	"errors"
	"testing"

	"github.com/Enigma-Deez/Roll-Call/internal/database"
)

func TestIndex_Empty(t *testing.T) {
	idx := NewIndex(NewGallery(nil))

	if idx.Count() != 0 {
		t.Errorf("expected empty index, got %d", idx.Count())
	}
	if _, err := idx.Search([]float32{0, 0}, 1, 0); !errors.Is(err, ErrIndexEmpty) {
		t.Errorf("expected ErrIndexEmpty, got %v", err)
	}
}

func TestIndex_Search(t *testing.T) {
	g := NewGallery([]database.Identity{
		identity("a", database.KindStudent, 0, 0),
		identity("b", database.KindStudent, 10, 10),
		identity("c", database.KindLecturer, 0.2, 0),
		identity("odd", database.KindStudent, 1, 1, 1),
	})
	idx := NewIndex(g)

	if idx.Count() != 3 {
		t.Fatalf("expected 3 indexed entries (mismatched dimension skipped), got %d", idx.Count())
	}

	matches, err := idx.Search([]float32{0, 0}, 2, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(matches))
	}
	if matches[0].IdentityID != "a" || matches[1].IdentityID != "c" {
		t.Errorf("expected [a c], got [%s %s]", matches[0].IdentityID, matches[1].IdentityID)
	}
	if matches[1].Kind != database.KindLecturer {
		t.Errorf("expected c to be a lecturer, got %s", matches[1].Kind)
	}
}

func TestIndex_SearchMaxDistance(t *testing.T) {
	idx := NewIndex(NewGallery([]database.Identity{
		identity("a", database.KindStudent, 0, 0),
		identity("b", database.KindStudent, 3, 4),
	}))

	matches, err := idx.Search([]float32{0, 0}, 5, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(matches) != 1 || matches[0].IdentityID != "a" {
		t.Errorf("expected only a within distance 1, got %+v", matches)
	}

	if got, _ := idx.Search([]float32{0, 0, 0}, 5, 0); len(got) != 0 {
		t.Errorf("expected no matches for wrong dimension, got %d", len(got))
	}
}
