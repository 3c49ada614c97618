package store

import (
	"math"
	"testing"

	"github.com/ayusman/facelab/internal/session"
)

func TestRunRepository_RecordRun(t *testing.T) {
	s := newTestStore(t)
	repo := s.Runs()

	var rec session.Recorder = repo
	err := rec.RecordRun(session.Run{
		SessionID:    "tab-1",
		Model:        "haarcascade_frontalface_default.xml",
		SourceKind:   session.SourceFile,
		SourceValue:  "test.jpg",
		ScaleFactor:  1.1,
		MinNeighbors: 5,
		Faces:        2,
	})
	if err != nil {
		t.Fatalf("RecordRun() error = %v", err)
	}

	runs, err := repo.ListBySession("tab-1")
	if err != nil {
		t.Fatalf("ListBySession() error = %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("got %d runs, want 1", len(runs))
	}
	got := runs[0]
	if got.ID == "" || got.Faces != 2 || got.SourceKind != "file" || got.ScaleFactor != 1.1 || got.MinNeighbors != 5 {
		t.Errorf("stored run = %+v", got)
	}
}

func TestRunRepository_RejectsUnknownSourceKind(t *testing.T) {
	s := newTestStore(t)

	err := s.Runs().Create(&Run{SessionID: "a", Model: "m", SourceKind: "scanner", ScaleFactor: 1.1})
	if err == nil {
		t.Error("Create() with an unknown source kind should fail")
	}
}

func TestRunRepository_ListLimit(t *testing.T) {
	s := newTestStore(t)
	repo := s.Runs()

	for i := 0; i < 5; i++ {
		if err := repo.Create(&Run{SessionID: "a", Model: "m", SourceKind: "file", ScaleFactor: 1.1, Faces: i}); err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		limit int
		want  int
	}{
		{0, 5},
		{-1, 5},
		{2, 2},
		{10, 5},
	}
	for _, tt := range tests {
		runs, err := repo.List(tt.limit)
		if err != nil {
			t.Fatalf("List(%d) error = %v", tt.limit, err)
		}
		if len(runs) != tt.want {
			t.Errorf("List(%d) returned %d runs, want %d", tt.limit, len(runs), tt.want)
		}
	}

	runs, _ := repo.List(1)
	if runs[0].Faces != 4 {
		t.Errorf("newest run faces = %d, want 4", runs[0].Faces)
	}
}

func TestRunRepository_ListBySessionFilters(t *testing.T) {
	s := newTestStore(t)
	repo := s.Runs()

	for _, id := range []string{"a", "b", "a"} {
		if err := repo.Create(&Run{SessionID: id, Model: "m", SourceKind: "camera", SourceValue: "0", ScaleFactor: 1.2}); err != nil {
			t.Fatal(err)
		}
	}

	runs, err := repo.ListBySession("a")
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 {
		t.Errorf("ListBySession(a) returned %d runs, want 2", len(runs))
	}
}

func TestRunRepository_Stats(t *testing.T) {
	s := newTestStore(t)
	repo := s.Runs()

	st, err := repo.Stats()
	if err != nil {
		t.Fatalf("Stats() on empty store error = %v", err)
	}
	if st.Runs != 0 || st.Mean != 0 {
		t.Errorf("empty Stats() = %+v", st)
	}

	for _, n := range []int{0, 2, 4} {
		if err := repo.Create(&Run{SessionID: "a", Model: "m", SourceKind: "file", ScaleFactor: 1.1, Faces: n}); err != nil {
			t.Fatal(err)
		}
	}

	st, err = repo.Stats()
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if st.Runs != 3 || st.Total != 6 || st.Max != 4 {
		t.Errorf("Stats() = %+v", st)
	}
	if st.Mean != 2 {
		t.Errorf("Mean = %v, want 2", st.Mean)
	}
	// Sample standard deviation of {0, 2, 4}.
	if math.Abs(st.StdDev-2) > 1e-9 {
		t.Errorf("StdDev = %v, want 2", st.StdDev)
	}
}

func TestSummarize_SingleRun(t *testing.T) {
	st := summarize([]float64{3})
	if st.Runs != 1 || st.Mean != 3 || st.StdDev != 0 || st.Max != 3 {
		t.Errorf("summarize([3]) = %+v", st)
	}
}
