package facematch

import (
	"errors"
	"sort"
	"sync"

	"github.com/coder/hnsw"
)

// HNSW parameters for 128/512-dim face encodings.
const (
	// HNSWMaxNeighbors (M) is the maximum number of neighbors per node.
	HNSWMaxNeighbors = 16

	// HNSWSearchMultiplier widens the candidate pool before exact re-ranking.
	HNSWSearchMultiplier = 3
)

// ErrIndexEmpty is returned when searching an index with no entries.
var ErrIndexEmpty = errors.New("index not initialized")

// Index is an approximate nearest-neighbour index over a gallery snapshot.
// The session loop matches with the exact scan in Gallery.Nearest; the index
// serves top-k candidate lookups.
type Index struct {
	graph   *hnsw.Graph[string]
	entries map[string]Entry
	dim     int
	mu      sync.RWMutex
}

// NewIndex builds an index from the gallery. Entries whose dimension differs
// from the first entry are left out since the graph needs uniform vectors.
func NewIndex(g *Gallery) *Index {
	idx := &Index{entries: make(map[string]Entry)}
	idx.Rebuild(g)
	return idx
}

// Rebuild replaces the index contents with the gallery.
func (idx *Index) Rebuild(g *Gallery) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.graph = nil
	idx.dim = 0
	idx.entries = make(map[string]Entry, g.Len())

	if g.Len() == 0 {
		return
	}

	graph := hnsw.NewGraph[string]()
	graph.M = HNSWMaxNeighbors
	graph.Ml = 1.0 / float64(HNSWMaxNeighbors) // Standard HNSW formula
	graph.Distance = hnsw.EuclideanDistance

	for _, e := range g.Entries() {
		if idx.dim == 0 {
			idx.dim = len(e.Encoding)
		}
		if len(e.Encoding) != idx.dim {
			continue
		}
		graph.Add(hnsw.MakeNode(e.IdentityID, e.Encoding))
		idx.entries[e.IdentityID] = e
	}
	idx.graph = graph
}

// Count returns the number of indexed identities.
func (idx *Index) Count() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.entries)
}

// Search returns up to k candidates ordered by exact Euclidean distance.
// Candidates farther than maxDistance are dropped; maxDistance <= 0 keeps everything.
func (idx *Index) Search(query []float32, k int, maxDistance float64) ([]Match, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if idx.graph == nil || len(idx.entries) == 0 {
		return nil, ErrIndexEmpty
	}
	if k <= 0 || len(query) != idx.dim {
		return nil, nil
	}

	neighbors := idx.graph.Search(query, k*HNSWSearchMultiplier)

	matches := make([]Match, 0, len(neighbors))
	for _, n := range neighbors {
		e, ok := idx.entries[n.Key]
		if !ok {
			continue
		}
		d := EuclideanDistance(query, n.Value)
		if maxDistance > 0 && d > maxDistance {
			continue
		}
		matches = append(matches, Match{IdentityID: e.IdentityID, Kind: e.Kind, Name: e.Name, Distance: d})
	}

	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Distance < matches[j].Distance })
	if len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}
