package sync

import (
	"context"
	"errors"
	"testing"

	"github.com/paperchat/paperchat/internal/models"
)

func TestEnsureUser_Idempotent(t *testing.T) {
	db := openTestDB(t)
	rc := NewReconciler(NewRepo(db))
	ctx := context.Background()

	first, err := rc.EnsureUser(ctx, 7)
	if err != nil {
		t.Fatalf("first ensure: %v", err)
	}
	second, err := rc.EnsureUser(ctx, 7)
	if err != nil {
		t.Fatalf("second ensure: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("ensure created two rows: %d and %d", first.ID, second.ID)
	}
	if first.Email != "user_7@temp.com" {
		t.Fatalf("unexpected synthetic email %q", first.Email)
	}

	var count int64
	if err := db.Model(&models.User{}).Count(&count).Error; err != nil {
		t.Fatalf("count users: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 user row, got %d", count)
	}
}

func TestEnsureUser_NeverOverwritesExistingRow(t *testing.T) {
	db := openTestDB(t)
	rc := NewReconciler(NewRepo(db))
	ctx := context.Background()

	seeded := models.User{Email: "user@default.com", PasswordHash: "realhash", FirstName: "Alice"}
	if err := db.Create(&seeded).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}

	got, err := rc.EnsureUser(ctx, HumanTag)
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if got.ID != seeded.ID || got.FirstName != "Alice" || got.PasswordHash != "realhash" {
		t.Fatalf("ensure touched an externally created row: %+v", got)
	}
}

func TestEnsureDefaultUsers(t *testing.T) {
	db := openTestDB(t)
	rc := NewReconciler(NewRepo(db))

	if err := rc.EnsureDefaultUsers(context.Background()); err != nil {
		t.Fatalf("ensure defaults: %v", err)
	}
	if err := rc.EnsureDefaultUsers(context.Background()); err != nil {
		t.Fatalf("ensure defaults again: %v", err)
	}

	for _, email := range []string{"user@default.com", "ai@assistant.com"} {
		var count int64
		if err := db.Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
			t.Fatalf("count %s: %v", email, err)
		}
		if count != 1 {
			t.Fatalf("expected exactly one %s row, got %d", email, count)
		}
	}
}

func TestEnsureGroup_Idempotent(t *testing.T) {
	db := openTestDB(t)
	rc := NewReconciler(NewRepo(db))
	ctx := context.Background()

	owner, err := rc.EnsureUser(ctx, HumanTag)
	if err != nil {
		t.Fatalf("owner: %v", err)
	}

	first, err := rc.EnsureGroup(ctx, 1, owner.ID)
	if err != nil {
		t.Fatalf("first ensure: %v", err)
	}
	second, err := rc.EnsureGroup(ctx, 1, owner.ID)
	if err != nil {
		t.Fatalf("second ensure: %v", err)
	}
	if first.ID != second.ID || first.ID != 1 {
		t.Fatalf("group ids diverged: %d vs %d", first.ID, second.ID)
	}

	var count int64
	if err := db.Model(&models.Group{}).Count(&count).Error; err != nil {
		t.Fatalf("count groups: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 group, got %d", count)
	}
}

func TestEnsureGroup_NoUsersAtAll(t *testing.T) {
	db := openTestDB(t)
	rc := NewReconciler(NewRepo(db))

	_, err := rc.EnsureGroup(context.Background(), 1, 0)
	if !errors.Is(err, ErrNoUsers) {
		t.Fatalf("expected ErrNoUsers, got %v", err)
	}
}

func TestEnsureParticipant_Idempotent(t *testing.T) {
	db := openTestDB(t)
	rc := NewReconciler(NewRepo(db))
	ctx := context.Background()

	owner, err := rc.EnsureUser(ctx, HumanTag)
	if err != nil {
		t.Fatalf("owner: %v", err)
	}
	group, err := rc.EnsureGroup(ctx, 1, owner.ID)
	if err != nil {
		t.Fatalf("group: %v", err)
	}

	first, err := rc.EnsureParticipant(ctx, group.ID, owner.ID)
	if err != nil {
		t.Fatalf("first ensure: %v", err)
	}
	second, err := rc.EnsureParticipant(ctx, group.ID, owner.ID)
	if err != nil {
		t.Fatalf("second ensure: %v", err)
	}
	if first != second {
		t.Fatalf("participant ids diverged: %d vs %d", first, second)
	}

	var count int64
	if err := db.Model(&models.GroupParticipant{}).Count(&count).Error; err != nil {
		t.Fatalf("count participants: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 participant row, got %d", count)
	}
}

func TestCreateUserOrGet_AdoptsConcurrentWinner(t *testing.T) {
	db := openTestDB(t)
	repo := NewRepo(db)
	ctx := context.Background()

	winner := models.User{Email: "race@temp.com", PasswordHash: "x"}
	if err := db.Create(&winner).Error; err != nil {
		t.Fatalf("seed winner: %v", err)
	}

	// a second create against the unique email index must not surface an error
	got, err := repo.CreateUserOrGet(ctx, &models.User{Email: "race@temp.com", PasswordHash: "y"})
	if err != nil {
		t.Fatalf("expected requery to absorb duplicate-key error: %v", err)
	}
	if got.ID != winner.ID {
		t.Fatalf("expected winner row %d, got %d", winner.ID, got.ID)
	}
}
