package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fentz26/worklog/internal/clock"
	"github.com/fentz26/worklog/internal/models"
)

func buildChain(n int) []models.EditRecord {
	base := time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC)
	var out []models.EditRecord
	var prev *models.EditRecord
	for i := 0; i < n; i++ {
		end := base.Add(time.Duration(i+1) * time.Hour)
		rec := Seal(models.EditRecord{
			ID:          "e",
			TimeLogID:   "log-1",
			EditorID:    "alice",
			EditedAt:    base.Add(time.Duration(i) * time.Minute),
			StartTime:   base,
			EndTime:     &end,
			Duration:    int64((i + 1) * 3600),
			Description: "work",
		}, prev)
		out = append(out, rec)
		prev = &out[len(out)-1]
	}
	return out
}

func TestSeal_LinksRecords(t *testing.T) {
	chain := buildChain(3)
	if chain[0].Seq != 1 || chain[0].PrevHash != GenesisHash {
		t.Fatalf("first record: seq=%d prev=%s", chain[0].Seq, chain[0].PrevHash)
	}
	for i := 1; i < len(chain); i++ {
		if chain[i].Seq != i+1 {
			t.Errorf("record %d: seq = %d", i, chain[i].Seq)
		}
		if chain[i].PrevHash != chain[i-1].Hash {
			t.Errorf("record %d: prev hash not linked", i)
		}
	}
	if err := VerifyChain("log-1", chain); err != nil {
		t.Fatalf("VerifyChain: %v", err)
	}
	if err := VerifyChain("log-1", nil); err != nil {
		t.Fatalf("empty history should verify: %v", err)
	}
}

func TestVerifyChain_DetectsTampering(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func([]models.EditRecord) []models.EditRecord
		wantSeq int
	}{
		{
			name: "changed description",
			mutate: func(c []models.EditRecord) []models.EditRecord {
				c[1].Description = "rewritten"
				return c
			},
			wantSeq: 2,
		},
		{
			name: "changed duration",
			mutate: func(c []models.EditRecord) []models.EditRecord {
				c[0].Duration = 1
				return c
			},
			wantSeq: 1,
		},
		{
			name: "removed record",
			mutate: func(c []models.EditRecord) []models.EditRecord {
				return append(c[:1], c[2:]...)
			},
			wantSeq: 3,
		},
		{
			name: "rehashed record breaks successor",
			mutate: func(c []models.EditRecord) []models.EditRecord {
				c[1].Description = "rewritten"
				c[1].Hash = HashEdit(c[1])
				return c
			},
			wantSeq: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := VerifyChain("log-1", tt.mutate(buildChain(3)))
			var ce *ChainError
			if !errors.As(err, &ce) {
				t.Fatalf("expected ChainError, got %v", err)
			}
			if ce.Seq != tt.wantSeq {
				t.Errorf("broken at seq %d, want %d", ce.Seq, tt.wantSeq)
			}
		})
	}
}

func TestHashEdit_IgnoresIDAndHash(t *testing.T) {
	rec := buildChain(1)[0]
	other := rec
	other.ID = "different"
	other.Hash = "x"
	if HashEdit(rec) != HashEdit(other) {
		t.Fatal("hash should not depend on ID or stored hash")
	}
}

type memSink struct {
	entries []*models.PDREntry
	err     error
}

func (m *memSink) WritePDR(_ context.Context, p *models.PDREntry) error {
	if m.err != nil {
		return m.err
	}
	m.entries = append(m.entries, p)
	return nil
}

func TestPDRWriter_Record(t *testing.T) {
	sink := &memSink{}
	at := time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC)
	w := NewPDRWriter(sink, clock.NewFake(at), nil)

	pdr := w.Record(context.Background(), "task.create", map[string]string{"title": "x"}, OutcomeSuccess, "t1", "alice", "")
	if len(sink.entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(sink.entries))
	}
	if pdr.InputsHash != HashInputs(map[string]string{"title": "x"}) {
		t.Error("inputs hash mismatch")
	}
	if !pdr.Timestamp.Equal(at) {
		t.Errorf("timestamp = %v", pdr.Timestamp)
	}

	sink.err = errors.New("disk full")
	if got := w.Record(context.Background(), "task.delete", nil, OutcomeSuccess, "t1", "alice", ""); got != nil {
		t.Error("expected nil entry when the sink fails")
	}
}
