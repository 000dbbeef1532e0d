package sqlite

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"gpu_sniper/internal/model"
)

func (s *Store) StartRun(ctx context.Context, r model.Run) (model.Run, error) {
	if r.GPU == "" || r.Locale == "" {
		return model.Run{}, errors.New("gpu and locale are required")
	}
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.StartedAt.IsZero() {
		r.StartedAt = time.Now()
	}
	if r.Outcome == "" {
		r.Outcome = model.RunOutcomeRunning
	}
	ids, err := json.Marshal(r.ProductIDs)
	if err != nil {
		return model.Run{}, err
	}
	test := 0
	if r.Test {
		test = 1
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO runs (id, gpu, locale, product_ids_json, test, outcome, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, r.ID, string(r.GPU), r.Locale, string(ids), test, r.Outcome, r.StartedAt.UnixMilli())
	if err != nil {
		return model.Run{}, err
	}
	return s.GetRun(ctx, r.ID)
}

func (s *Store) FinishRun(ctx context.Context, id string, outcome string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE runs SET outcome = ?, ended_at = ? WHERE id = ?
	`, outcome, time.Now().UnixMilli(), id)
	return err
}

func (s *Store) GetRun(ctx context.Context, id string) (model.Run, error) {
	var row struct {
		id        string
		gpu       string
		locale    string
		idsJSON   string
		test      int
		outcome   string
		startedAt int64
		endedAt   int64
	}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, gpu, locale, product_ids_json, test, outcome, started_at, ended_at
		FROM runs WHERE id = ?
	`, id).Scan(&row.id, &row.gpu, &row.locale, &row.idsJSON, &row.test, &row.outcome, &row.startedAt, &row.endedAt)
	if err != nil {
		return model.Run{}, err
	}
	out := model.Run{
		ID:        row.id,
		GPU:       model.GPUFamily(row.gpu),
		Locale:    row.locale,
		Test:      row.test == 1,
		Outcome:   row.outcome,
		StartedAt: time.UnixMilli(row.startedAt),
	}
	if err := json.Unmarshal([]byte(row.idsJSON), &out.ProductIDs); err != nil {
		return model.Run{}, err
	}
	if row.endedAt > 0 {
		ended := time.UnixMilli(row.endedAt)
		out.EndedAt = &ended
	}
	return out, nil
}
