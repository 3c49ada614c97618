package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/ayusman/facelab/internal/store"
)

// newTestStore creates a new Store with a temporary database for testing.
func newTestStore(t *testing.T) *store.Store {
	t.Helper()

	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() {
		s.Close()
	})

	return s
}

func serve(h http.Handler, method, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestUploadHandler_List(t *testing.T) {
	s := newTestStore(t)
	handler := NewUploadHandler(s)

	upload := &store.Upload{OriginalName: "a b.jpg", StoredName: "a_b.jpg", Path: "/data/a_b.jpg", Size: 10, Width: 4, Height: 3}
	if err := s.Uploads().Create(upload); err != nil {
		t.Fatalf("failed to create upload: %v", err)
	}

	rec := serve(handler, http.MethodGet, "/api/uploads")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected Content-Type application/json, got %s", ct)
	}

	var response listUploadsResponse
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(response.Uploads) != 1 || response.Uploads[0].StoredName != "a_b.jpg" {
		t.Errorf("unexpected uploads: %+v", response.Uploads)
	}
}

func TestUploadHandler_ListEmpty(t *testing.T) {
	rec := serve(NewUploadHandler(newTestStore(t)), http.MethodGet, "/api/uploads")

	var raw map[string]json.RawMessage
	if err := json.NewDecoder(rec.Body).Decode(&raw); err != nil {
		t.Fatal(err)
	}
	if string(raw["uploads"]) != "[]" {
		t.Errorf("empty list should encode as [], got %s", raw["uploads"])
	}
}

func TestUploadHandler_Get(t *testing.T) {
	s := newTestStore(t)
	handler := NewUploadHandler(s)

	upload := &store.Upload{OriginalName: "x.png", StoredName: "x.png", Path: "/x.png", Size: 1, Width: 1, Height: 1}
	if err := s.Uploads().Create(upload); err != nil {
		t.Fatal(err)
	}

	t.Run("existing", func(t *testing.T) {
		rec := serve(handler, http.MethodGet, "/api/uploads/"+upload.ID)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
		}
		var got uploadResponse
		json.NewDecoder(rec.Body).Decode(&got)
		if got.ID != upload.ID {
			t.Errorf("got id %q, want %q", got.ID, upload.ID)
		}
	})

	t.Run("missing", func(t *testing.T) {
		rec := serve(handler, http.MethodGet, "/api/uploads/nope")
		if rec.Code != http.StatusNotFound {
			t.Errorf("expected status %d, got %d", http.StatusNotFound, rec.Code)
		}
	})

	t.Run("read only", func(t *testing.T) {
		rec := serve(handler, http.MethodDelete, "/api/uploads/"+upload.ID)
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("expected status %d, got %d", http.StatusMethodNotAllowed, rec.Code)
		}
	})
}

func seedRuns(t *testing.T, s *store.Store) {
	t.Helper()
	for i, id := range []string{"a", "b", "a", "a"} {
		run := &store.Run{SessionID: id, Model: "haarcascade_frontalface_default.xml", SourceKind: "file", SourceValue: "test.jpg", ScaleFactor: 1.1, MinNeighbors: 5, Faces: i}
		if err := s.Runs().Create(run); err != nil {
			t.Fatalf("failed to create run: %v", err)
		}
	}
}

func TestRunHandler_List(t *testing.T) {
	s := newTestStore(t)
	seedRuns(t, s)
	handler := NewRunHandler(s)

	tests := []struct {
		target string
		want   int
	}{
		{"/api/runs", 4},
		{"/api/runs?limit=2", 2},
		{"/api/runs?session=a", 3},
		{"/api/runs?session=a&limit=1", 1},
		{"/api/runs?session=zzz", 0},
	}

	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			rec := serve(handler, http.MethodGet, tt.target)
			if rec.Code != http.StatusOK {
				t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
			}
			var response listRunsResponse
			if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
				t.Fatal(err)
			}
			if len(response.Runs) != tt.want {
				t.Errorf("got %d runs, want %d", len(response.Runs), tt.want)
			}
		})
	}

	rec := serve(handler, http.MethodGet, "/api/runs?limit=many")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("invalid limit: expected status %d, got %d", http.StatusBadRequest, rec.Code)
	}
}

func TestRunHandler_Stats(t *testing.T) {
	s := newTestStore(t)
	seedRuns(t, s)

	rec := serve(NewRunHandler(s), http.MethodGet, "/api/runs/stats")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}

	var st store.RunStats
	if err := json.NewDecoder(rec.Body).Decode(&st); err != nil {
		t.Fatal(err)
	}
	if st.Runs != 4 || st.Total != 6 || st.Max != 3 || st.Mean != 1.5 {
		t.Errorf("stats = %+v", st)
	}
}
