// Package audit provides PDR (Process Decision Record) writing and the hash
// chain that makes time-log edit history tamper-evident.
package audit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"

	"github.com/fentz26/worklog/internal/clock"
	"github.com/fentz26/worklog/internal/models"
	"github.com/google/uuid"
)

// Outcomes recorded on decision records.
const (
	OutcomeSuccess  = "success"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

// PDRSink persists decision records. *store.Store and *store.Tx satisfy it.
type PDRSink interface {
	WritePDR(ctx context.Context, pdr *models.PDREntry) error
}

// PDRWriter writes Process Decision Records for audit trails.
type PDRWriter struct {
	sink   PDRSink
	clock  clock.Clock
	logger *slog.Logger
}

// NewPDRWriter creates a new PDR writer.
func NewPDRWriter(sink PDRSink, clk clock.Clock, logger *slog.Logger) *PDRWriter {
	if clk == nil {
		clk = clock.System{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PDRWriter{sink: sink, clock: clk, logger: logger}
}

// Record writes a PDR entry for a state-mutating action. Audit failures are
// logged, never returned: the action itself already happened.
func (w *PDRWriter) Record(ctx context.Context, action string, inputs interface{}, outcome, subjectID, actorID, details string) *models.PDREntry {
	pdr := &models.PDREntry{
		ID:         uuid.New().String(),
		Action:     action,
		InputsHash: HashInputs(inputs),
		Outcome:    outcome,
		SubjectID:  subjectID,
		ActorID:    actorID,
		Details:    details,
		Timestamp:  w.clock.Now(),
	}
	if err := w.sink.WritePDR(ctx, pdr); err != nil {
		w.logger.Warn("write decision record", "action", action, "subject", subjectID, "error", err)
		return nil
	}
	return pdr
}

// HashInputs creates a SHA256 hash of the inputs for reproducibility.
func HashInputs(inputs interface{}) string {
	data, err := json.Marshal(inputs)
	if err != nil {
		return "hash_error"
	}
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}
