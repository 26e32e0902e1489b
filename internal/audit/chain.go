package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/fentz26/worklog/internal/models"
)

// GenesisHash is the PrevHash of the first record in every chain.
const GenesisHash = "0000000000000000000000000000000000000000000000000000000000000000"

// ChainError reports the first edit record whose hash does not verify.
type ChainError struct {
	TimeLogID string
	Seq       int
	Reason    string
}

func (e *ChainError) Error() string {
	return fmt.Sprintf("edit history of %s broken at seq %d: %s", e.TimeLogID, e.Seq, e.Reason)
}

// HashEdit computes the chained hash of an edit record from its snapshot
// fields and PrevHash. The record's own Hash and ID are not inputs.
func HashEdit(rec models.EditRecord) string {
	end := ""
	if rec.EndTime != nil {
		end = rec.EndTime.UTC().Format(time.RFC3339Nano)
	}
	fields := []string{
		rec.PrevHash,
		rec.TimeLogID,
		strconv.Itoa(rec.Seq),
		rec.EditorID,
		rec.EditedAt.UTC().Format(time.RFC3339Nano),
		rec.StartTime.UTC().Format(time.RFC3339Nano),
		end,
		strconv.FormatInt(rec.Duration, 10),
		rec.Description,
	}
	sum := sha256.Sum256([]byte(strings.Join(fields, "\x1f")))
	return hex.EncodeToString(sum[:])
}

// Seal links rec to prev (nil for the first record) and fills Seq, PrevHash
// and Hash.
func Seal(rec models.EditRecord, prev *models.EditRecord) models.EditRecord {
	if prev == nil {
		rec.Seq = 1
		rec.PrevHash = GenesisHash
	} else {
		rec.Seq = prev.Seq + 1
		rec.PrevHash = prev.Hash
	}
	rec.Hash = HashEdit(rec)
	return rec
}

// VerifyChain checks sequence numbers and hash links of an edit history
// given in append order.
func VerifyChain(timeLogID string, history []models.EditRecord) error {
	prevHash := GenesisHash
	for i, rec := range history {
		want := i + 1
		if rec.Seq != want {
			return &ChainError{TimeLogID: timeLogID, Seq: rec.Seq, Reason: fmt.Sprintf("expected seq %d", want)}
		}
		if rec.PrevHash != prevHash {
			return &ChainError{TimeLogID: timeLogID, Seq: rec.Seq, Reason: "prev_hash does not match predecessor"}
		}
		if HashEdit(rec) != rec.Hash {
			return &ChainError{TimeLogID: timeLogID, Seq: rec.Seq, Reason: "hash does not match contents"}
		}
		prevHash = rec.Hash
	}
	return nil
}
