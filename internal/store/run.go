package store

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/ayusman/facelab/internal/session"
)

// Run is a stored detection run.
type Run struct {
	ID           string    `json:"id"`
	SessionID    string    `json:"session_id"`
	Model        string    `json:"model"`
	SourceKind   string    `json:"source_kind"`
	SourceValue  string    `json:"source_value"`
	ScaleFactor  float64   `json:"scale_factor"`
	MinNeighbors int       `json:"min_neighbors"`
	Faces        int       `json:"faces"`
	CreatedAt    time.Time `json:"created_at"`
}

// RunStats summarizes the face counts of stored runs.
type RunStats struct {
	Runs   int     `json:"runs"`
	Total  int     `json:"total_faces"`
	Mean   float64 `json:"mean_faces"`
	StdDev float64 `json:"stddev_faces"`
	Max    int     `json:"max_faces"`
}

// RunRepository provides access to detection runs.
type RunRepository struct {
	db *sql.DB
}

// Runs returns the run repository for this store.
func (s *Store) Runs() *RunRepository {
	return &RunRepository{db: s.db}
}

// RecordRun stores a run reported by a session.
func (r *RunRepository) RecordRun(run session.Run) error {
	return r.Create(&Run{
		SessionID:    run.SessionID,
		Model:        run.Model,
		SourceKind:   string(run.SourceKind),
		SourceValue:  run.SourceValue,
		ScaleFactor:  run.ScaleFactor,
		MinNeighbors: run.MinNeighbors,
		Faces:        run.Faces,
	})
}

// Create inserts a run. An empty ID is filled with a new uuid.
func (r *RunRepository) Create(run *Run) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	run.CreatedAt = time.Now()

	_, err := r.db.Exec(
		`INSERT INTO runs (id, session_id, model, source_kind, source_value, scale_factor, min_neighbors, faces, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.SessionID, run.Model, run.SourceKind, run.SourceValue,
		run.ScaleFactor, run.MinNeighbors, run.Faces, run.CreatedAt,
	)
	return err
}

const runColumns = `id, session_id, model, source_kind, source_value, scale_factor, min_neighbors, faces, created_at`

// List returns up to limit runs, newest first. A limit of zero or less returns every run.
func (r *RunRepository) List(limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = -1
	}
	return r.query(
		`SELECT `+runColumns+` FROM runs ORDER BY created_at DESC, rowid DESC LIMIT ?`,
		limit,
	)
}

// ListBySession returns the runs of one session, newest first.
func (r *RunRepository) ListBySession(sessionID string) ([]*Run, error) {
	return r.query(
		`SELECT `+runColumns+` FROM runs WHERE session_id = ? ORDER BY created_at DESC, rowid DESC`,
		sessionID,
	)
}

func (r *RunRepository) query(q string, args ...any) ([]*Run, error) {
	rows, err := r.db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run := &Run{}
		err := rows.Scan(&run.ID, &run.SessionID, &run.Model, &run.SourceKind, &run.SourceValue,
			&run.ScaleFactor, &run.MinNeighbors, &run.Faces, &run.CreatedAt)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return runs, nil
}

// FaceCounts returns the face count of every run in insertion order.
func (r *RunRepository) FaceCounts() ([]float64, error) {
	rows, err := r.db.Query(`SELECT faces FROM runs ORDER BY rowid`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var counts []float64
	for rows.Next() {
		var n int
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		counts = append(counts, float64(n))
	}
	return counts, rows.Err()
}

// Stats summarizes the face counts over all runs.
func (r *RunRepository) Stats() (RunStats, error) {
	counts, err := r.FaceCounts()
	if err != nil {
		return RunStats{}, err
	}
	return summarize(counts), nil
}

func summarize(counts []float64) RunStats {
	st := RunStats{Runs: len(counts)}
	if len(counts) == 0 {
		return st
	}

	st.Total = int(floats.Sum(counts))
	st.Max = int(floats.Max(counts))
	if len(counts) == 1 {
		st.Mean = counts[0]
		return st
	}
	st.Mean, st.StdDev = stat.MeanStdDev(counts, nil)
	return st
}
