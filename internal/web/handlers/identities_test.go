package handlers

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Enigma-Deez/Roll-Call/internal/database"
	"github.com/Enigma-Deez/Roll-Call/internal/database/mock"
)

func identityFixture(id string, x, y float32) database.Identity {
	kind := database.KindStudent
	if id == "grace" || id == "alan" {
		kind = database.KindLecturer
	}
	return database.Identity{ID: id, Kind: kind, Name: fixtureNames[id], ExternalRef: "REF-" + id, Encoding: []float32{x, y}}
}

var fixtureNames = map[string]string{
	"ada":   "Adébáyọ̀ Okafor",
	"bob":   "Bob Smith",
	"grace": "Grace Hopper",
	"alan":  "Alan Turing",
}

// identityStore holds ada and bob (students) and grace (lecturer), grace enrolled between them.
func identityStore() *mock.Store {
	store := mock.NewStore()
	store.AddIdentity(identityFixture("ada", 0, 0))
	store.AddIdentity(identityFixture("grace", 0, 3))
	store.AddIdentity(identityFixture("bob", 3, 0))
	return store
}

func TestIdentitiesHandler_List(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		wantIDs []string
	}{
		{"all students first", "", []string{"ada", "bob", "grace"}},
		{"by kind", "?kind=lecturer", []string{"grace"}},
		{"diacritic-insensitive search", "?q=adebayo", []string{"ada"}},
		{"kind and search", "?kind=student&q=smith", []string{"bob"}},
		{"no match", "?q=zzz", []string{}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			handler := NewIdentitiesHandler(identityStore())
			req := httptest.NewRequest(http.MethodGet, "/api/v1/identities"+tc.query, nil)
			recorder := httptest.NewRecorder()

			handler.List(recorder, req)

			assertStatusCode(t, recorder, http.StatusOK)
			var got []IdentityResponse
			parseJSONResponse(t, recorder, &got)
			if len(got) != len(tc.wantIDs) {
				t.Fatalf("expected %d identities, got %d", len(tc.wantIDs), len(got))
			}
			for i, id := range tc.wantIDs {
				if got[i].ID != id {
					t.Errorf("position %d: expected %s, got %s", i, id, got[i].ID)
				}
			}
		})
	}
}

func TestIdentitiesHandler_OmitsEncoding(t *testing.T) {
	handler := NewIdentitiesHandler(identityStore())
	req := httptest.NewRequest(http.MethodGet, "/api/v1/identities?kind=lecturer", nil)
	recorder := httptest.NewRecorder()

	handler.List(recorder, req)

	var got []map[string]any
	parseJSONResponse(t, recorder, &got)
	if _, ok := got[0]["encoding"]; ok {
		t.Error("expected encoding not to be exposed")
	}
	if got[0]["dimensions"] != float64(2) {
		t.Errorf("expected dimensions 2, got %v", got[0]["dimensions"])
	}
}

func TestIdentitiesHandler_Errors(t *testing.T) {
	handler := NewIdentitiesHandler(identityStore())
	req := httptest.NewRequest(http.MethodGet, "/api/v1/identities?kind=visitor", nil)
	recorder := httptest.NewRecorder()
	handler.List(recorder, req)
	assertStatusCode(t, recorder, http.StatusBadRequest)

	store := identityStore()
	store.ListIdentitiesError = errors.New("db down")
	handler = NewIdentitiesHandler(store)
	recorder = httptest.NewRecorder()
	handler.List(recorder, httptest.NewRequest(http.MethodGet, "/api/v1/identities", nil))
	assertStatusCode(t, recorder, http.StatusServiceUnavailable)
	assertJSONError(t, recorder, "failed to list identities")
}
