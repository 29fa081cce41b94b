package sync

import (
	"context"
	"testing"
	"time"

	"github.com/paperchat/paperchat/internal/models"
	"github.com/paperchat/paperchat/internal/store/redisstore"
)

func TestSyncMessages_SkipsEmptyContentAndMissingSender(t *testing.T) {
	db := openTestDB(t)
	repo := NewRepo(db)
	rec := NewReconciler(repo)
	m := NewMapper(repo, rec)
	w := NewWriter(repo, rec)
	ctx := context.Background()

	snap := &redisstore.Snapshot{GroupID: 1, CreatedBy: 1, Messages: []redisstore.SnapshotMessage{
		{Content: "", SenderID: 1},
		{Content: "no sender"},
		{Content: "kept", SenderID: 1},
	}}
	sess, err := m.ResolveOrCreate(ctx, "w-1", snap)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	n, err := w.SyncMessages(ctx, sess.ID, sess.GroupID, snap)
	if err != nil {
		t.Fatalf("sync messages: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 insert, got %d", n)
	}

	var msgs []models.Message
	if err := db.Where("session_id = ?", sess.ID).Find(&msgs).Error; err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(msgs) != 1 || msgs[0].Content != "kept" {
		t.Fatalf("unexpected durable messages: %+v", msgs)
	}
}

// Identical text collapses to one durable row. This is the current contract,
// lossy on purpose; the test pins the behavior rather than an idealized one.
func TestSyncMessages_IdenticalContentCollapses(t *testing.T) {
	db := openTestDB(t)
	repo := NewRepo(db)
	rec := NewReconciler(repo)
	m := NewMapper(repo, rec)
	w := NewWriter(repo, rec)
	ctx := context.Background()

	snap := &redisstore.Snapshot{GroupID: 1, CreatedBy: 1, Messages: []redisstore.SnapshotMessage{
		{Content: "ok", SenderID: 1, Timestamp: "2024-01-01T10:00:00"},
		{Content: "ok", SenderID: 2, Timestamp: "2024-01-01T10:05:00"},
	}}
	sess, err := m.ResolveOrCreate(ctx, "w-2", snap)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	n, err := w.SyncMessages(ctx, sess.ID, sess.GroupID, snap)
	if err != nil {
		t.Fatalf("sync messages: %v", err)
	}
	if n != 1 {
		t.Fatalf("duplicate content within one snapshot must collapse, inserted %d", n)
	}
}

func TestSyncMessages_PreservesParseableTimestamps(t *testing.T) {
	db := openTestDB(t)
	repo := NewRepo(db)
	rec := NewReconciler(repo)
	m := NewMapper(repo, rec)
	w := NewWriter(repo, rec)
	ctx := context.Background()

	snap := &redisstore.Snapshot{GroupID: 1, CreatedBy: 1, Messages: []redisstore.SnapshotMessage{
		{Content: "zulu", SenderID: 1, Timestamp: "2024-06-01T12:00:00Z"},
		{Content: "bare", SenderID: 1, Timestamp: "2024-06-01T13:00:00"},
	}}
	sess, err := m.ResolveOrCreate(ctx, "w-3", snap)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if _, err := w.SyncMessages(ctx, sess.ID, sess.GroupID, snap); err != nil {
		t.Fatalf("sync messages: %v", err)
	}

	var zulu models.Message
	if err := db.Where("content = ?", "zulu").First(&zulu).Error; err != nil {
		t.Fatalf("zulu row: %v", err)
	}
	if !zulu.SentAt.Equal(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)) {
		t.Fatalf("trailing-Z timestamp not preserved: %v", zulu.SentAt)
	}

	var bare models.Message
	if err := db.Where("content = ?", "bare").First(&bare).Error; err != nil {
		t.Fatalf("bare row: %v", err)
	}
	if !bare.SentAt.Equal(time.Date(2024, 6, 1, 13, 0, 0, 0, time.UTC)) {
		t.Fatalf("zoneless timestamp not read as UTC: %v", bare.SentAt)
	}
}

func TestParseTimestamp(t *testing.T) {
	cases := []struct {
		in string
		ok bool
	}{
		{"2024-01-01T10:00:00Z", true},
		{"2024-01-01T10:00:00+02:00", true},
		{"2024-01-01T10:00:00", true},
		{"2024-01-01T10:00:00.123456", true},
		{"not-a-date", false},
		{"", false},
	}
	for _, c := range cases {
		if _, ok := parseTimestamp(c.in); ok != c.ok {
			t.Errorf("parseTimestamp(%q) ok=%v, want %v", c.in, ok, c.ok)
		}
	}
}
