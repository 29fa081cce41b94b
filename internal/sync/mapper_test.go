package sync

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/paperchat/paperchat/internal/models"
	"github.com/paperchat/paperchat/internal/store/redisstore"
)

func TestResolveOrCreate_CreatesWithMarker(t *testing.T) {
	db := openTestDB(t)
	repo := NewRepo(db)
	m := NewMapper(repo, NewReconciler(repo))

	snap := &redisstore.Snapshot{
		GroupID:   1,
		CreatedBy: 1,
		Topic:     "Quantum papers",
		CreatedAt: "2024-03-05T08:30:00Z",
	}
	sess, err := m.ResolveOrCreate(context.Background(), "eph-42", snap)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !strings.Contains(sess.Topic, "Redis:eph-42") {
		t.Fatalf("topic %q does not embed the marker", sess.Topic)
	}
	if !strings.Contains(sess.Topic, "Quantum papers") {
		t.Fatalf("topic %q dropped the ephemeral topic text", sess.Topic)
	}
	if sess.StartedAt == nil {
		t.Fatalf("started_at not set")
	}
	want := time.Date(2024, 3, 5, 8, 30, 0, 0, time.UTC)
	if !sess.StartedAt.Equal(want) {
		t.Fatalf("started_at = %v, want %v", sess.StartedAt, want)
	}
}

func TestResolveOrCreate_ReusesExistingRow(t *testing.T) {
	db := openTestDB(t)
	repo := NewRepo(db)
	m := NewMapper(repo, NewReconciler(repo))
	snap := &redisstore.Snapshot{GroupID: 1, CreatedBy: 1}

	first, err := m.ResolveOrCreate(context.Background(), "eph-7", snap)
	if err != nil {
		t.Fatalf("first resolve: %v", err)
	}
	second, err := m.ResolveOrCreate(context.Background(), "eph-7", snap)
	if err != nil {
		t.Fatalf("second resolve: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("mapper duplicated the session: %d then %d", first.ID, second.ID)
	}
}

func TestResolveOrCreate_BadCreatedAtFallsBackToNow(t *testing.T) {
	db := openTestDB(t)
	repo := NewRepo(db)
	m := NewMapper(repo, NewReconciler(repo))

	before := time.Now().Add(-time.Second)
	sess, err := m.ResolveOrCreate(context.Background(), "eph-8", &redisstore.Snapshot{
		GroupID: 1, CreatedBy: 1, CreatedAt: "never oclock",
	})
	if err != nil {
		t.Fatalf("resolve must not fail on a bad timestamp: %v", err)
	}
	if sess.StartedAt == nil || sess.StartedAt.Before(before) {
		t.Fatalf("expected current-time fallback, got %v", sess.StartedAt)
	}
}

func TestResolveOrCreate_FirstMatchWinsOnDuplicateMarkers(t *testing.T) {
	db := openTestDB(t)
	repo := NewRepo(db)
	rec := NewReconciler(repo)
	m := NewMapper(repo, rec)
	ctx := context.Background()

	owner, err := rec.EnsureUser(ctx, HumanTag)
	if err != nil {
		t.Fatalf("owner: %v", err)
	}
	group, err := rec.EnsureGroup(ctx, 1, owner.ID)
	if err != nil {
		t.Fatalf("group: %v", err)
	}

	// a data-quality anomaly: two rows sharing the marker
	mk := Marker("dup-1")
	older := models.Session{GroupID: group.ID, CreatedBy: owner.ID, Topic: "a (" + mk + ")"}
	newer := models.Session{GroupID: group.ID, CreatedBy: owner.ID, Topic: "b (" + mk + ")"}
	if err := db.Create(&older).Error; err != nil {
		t.Fatalf("seed older: %v", err)
	}
	if err := db.Create(&newer).Error; err != nil {
		t.Fatalf("seed newer: %v", err)
	}

	got, err := m.ResolveOrCreate(ctx, "dup-1", &redisstore.Snapshot{GroupID: 1, CreatedBy: 1})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got.ID != older.ID {
		t.Fatalf("tie-break must pick the first row %d, got %d", older.ID, got.ID)
	}
}

func TestResolveOrCreate_DefaultsForMissingHints(t *testing.T) {
	db := openTestDB(t)
	repo := NewRepo(db)
	m := NewMapper(repo, NewReconciler(repo))

	sess, err := m.ResolveOrCreate(context.Background(), "eph-9", &redisstore.Snapshot{})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if sess.GroupID != 1 {
		t.Fatalf("missing group hint must default to 1, got %d", sess.GroupID)
	}
	if !strings.HasPrefix(sess.Topic, "Chat Session") {
		t.Fatalf("missing topic must default, got %q", sess.Topic)
	}
}
