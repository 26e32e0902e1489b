package store

import (
	"context"
	"fmt"

	"github.com/fentz26/worklog/internal/models"
)

// WritePDR writes a Process Decision Record.
func (q *queries) WritePDR(ctx context.Context, pdr *models.PDREntry) error {
	_, err := q.q.ExecContext(ctx,
		`INSERT INTO pdr (id, action, inputs_hash, outcome, subject_id, actor_id, details, timestamp) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		pdr.ID, pdr.Action, pdr.InputsHash, pdr.Outcome, nullString(pdr.SubjectID), nullString(pdr.ActorID),
		nullString(pdr.Details), pdr.Timestamp.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert pdr: %w", mapBusy(err))
	}
	return nil
}

// ListPDR returns decision records about a subject, newest first.
func (q *queries) ListPDR(ctx context.Context, subjectID string) ([]models.PDREntry, error) {
	rows, err := q.q.QueryContext(ctx,
		`SELECT id, action, inputs_hash, outcome, COALESCE(subject_id, ''), COALESCE(actor_id, ''), COALESCE(details, ''), timestamp
		 FROM pdr WHERE subject_id = ? ORDER BY timestamp DESC, id DESC`, subjectID)
	if err != nil {
		return nil, fmt.Errorf("query pdr: %w", err)
	}
	defer rows.Close()

	var entries []models.PDREntry
	for rows.Next() {
		var e models.PDREntry
		if err := rows.Scan(&e.ID, &e.Action, &e.InputsHash, &e.Outcome, &e.SubjectID, &e.ActorID, &e.Details, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan pdr: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
