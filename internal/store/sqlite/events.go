package sqlite

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"gpu_sniper/internal/model"
)

const defaultEventLimit = 100

func (s *Store) RecordEvent(ctx context.Context, e model.Event) (model.Event, error) {
	if e.RunID == "" || e.Kind == "" {
		return model.Event{}, errors.New("runId and kind are required")
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.At.IsZero() {
		e.At = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO events (id, run_id, product_id, kind, message, at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, e.ID, e.RunID, e.ProductID, string(e.Kind), e.Message, e.At.UnixMilli())
	if err != nil {
		return model.Event{}, err
	}
	e.At = time.UnixMilli(e.At.UnixMilli())
	return e, nil
}

// ListEvents returns the newest events first. An empty runID lists every run.
func (s *Store) ListEvents(ctx context.Context, runID string, limit int) ([]model.Event, error) {
	if limit <= 0 {
		limit = defaultEventLimit
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, run_id, product_id, kind, message, at
		FROM events
		WHERE (? = '' OR run_id = ?)
		ORDER BY at DESC, rowid DESC
		LIMIT ?
	`, runID, runID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Event
	for rows.Next() {
		var row struct {
			id        string
			runID     string
			productID string
			kind      string
			message   string
			at        int64
		}
		if err := rows.Scan(&row.id, &row.runID, &row.productID, &row.kind, &row.message, &row.at); err != nil {
			return nil, err
		}
		out = append(out, model.Event{
			ID:        row.id,
			RunID:     row.runID,
			ProductID: row.productID,
			Kind:      model.EventKind(row.kind),
			Message:   row.message,
			At:        time.UnixMilli(row.at),
		})
	}
	return out, rows.Err()
}
