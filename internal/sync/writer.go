package sync

import (
	"context"
	"log"
	"time"

	"github.com/paperchat/paperchat/internal/models"
	"github.com/paperchat/paperchat/internal/store/redisstore"
)

// timestampLayouts accepted for ephemeral message and session timestamps.
// RFC3339 covers the trailing-Z form; the bare layout covers ISO strings
// without a zone, read as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
}

func parseTimestamp(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

// Writer appends the ephemeral messages that are not yet durable.
//
// Deduplication is by content string within the session. This is a known weak
// invariant: two distinct ephemeral messages with identical text collapse
// into one durable row. Chat content is rarely exactly repeated, so the
// limitation is accepted rather than keyed tighter.
type Writer struct {
	repo *Repo
	rec  *Reconciler
}

func NewWriter(repo *Repo, rec *Reconciler) *Writer {
	return &Writer{repo: repo, rec: rec}
}

// SyncMessages writes the snapshot messages missing from the durable session,
// in snapshot order, and returns how many rows were inserted. Per-message
// problems (missing sender, unresolvable participant, insert failure) skip
// that message only.
func (w *Writer) SyncMessages(ctx context.Context, durableSessionID, groupID uint64, snap *redisstore.Snapshot) (int, error) {
	existing, err := w.repo.MessagesBySession(ctx, durableSessionID)
	if err != nil {
		return 0, err
	}
	seen := make(map[string]struct{}, len(existing))
	for _, m := range existing {
		seen[m.Content] = struct{}{}
	}

	inserted := 0
	for _, m := range snap.Messages {
		if m.Content == "" || m.SenderID == 0 {
			continue
		}
		if _, ok := seen[m.Content]; ok {
			continue
		}

		participantID, err := w.rec.ParticipantForTag(ctx, groupID, m.SenderID)
		if err != nil {
			log.Printf("sync: resolve participant for sender tag %d failed: %v", m.SenderID, err)
			continue
		}

		row := &models.Message{
			SessionID: durableSessionID,
			SenderID:  participantID,
			Content:   m.Content,
		}
		// on parse failure SentAt stays zero and the store fills it
		if ts, ok := parseTimestamp(m.Timestamp); ok {
			row.SentAt = ts
		}

		if err := w.repo.CreateMessage(ctx, row); err != nil {
			log.Printf("sync: insert message into session %d failed: %v", durableSessionID, err)
			continue
		}
		// catch duplicates later in the same snapshot too
		seen[m.Content] = struct{}{}
		inserted++
	}
	return inserted, nil
}
