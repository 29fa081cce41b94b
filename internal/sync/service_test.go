package sync

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/paperchat/paperchat/internal/models"
	"github.com/paperchat/paperchat/internal/store/redisstore"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(
		&models.User{}, &models.Group{}, &models.GroupParticipant{},
		&models.Session{}, &models.Message{},
	); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

type fakeSource struct {
	sessions  map[string]*redisstore.Snapshot
	order     []string
	failOn    map[string]bool
	connected bool
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		sessions:  make(map[string]*redisstore.Snapshot),
		failOn:    make(map[string]bool),
		connected: true,
	}
}

func (f *fakeSource) add(id string, snap *redisstore.Snapshot) {
	snap.SessionID = id
	f.sessions[id] = snap
	f.order = append(f.order, id)
}

func (f *fakeSource) GetSession(ctx context.Context, id string) (*redisstore.Snapshot, error) {
	if f.failOn[id] {
		return nil, errors.New("redis: connection refused")
	}
	return f.sessions[id], nil
}

func (f *fakeSource) SessionIDs(ctx context.Context) ([]string, error) {
	return append([]string(nil), f.order...), nil
}

func (f *fakeSource) IsConnected(ctx context.Context) bool { return f.connected }

// fakeSubscriber replays scripted notifications, then times out forever.
type fakeSubscriber struct {
	notifications []notification
	idx           int
	closed        atomic.Bool
}

type notification struct {
	channel string
	payload string
}

func (f *fakeSubscriber) Next(ctx context.Context, timeout time.Duration) (string, string, error) {
	if f.idx < len(f.notifications) {
		n := f.notifications[f.idx]
		f.idx++
		return n.channel, n.payload, nil
	}
	return "", "", nil
}

func (f *fakeSubscriber) Close() error {
	f.closed.Store(true)
	return nil
}

func newTestService(t *testing.T, src *fakeSource) (*Service, *gorm.DB) {
	t.Helper()
	db := openTestDB(t)
	return NewService(db, src, 10*time.Millisecond), db
}

func snapshotWith(msgs ...redisstore.SnapshotMessage) *redisstore.Snapshot {
	return &redisstore.Snapshot{
		Messages:  msgs,
		GroupID:   1,
		CreatedBy: 1,
		Topic:     "Test",
		CreatedAt: "2024-01-01T10:00:00",
		UpdatedAt: "2024-01-01T10:00:00",
	}
}

func TestSyncSessionTwice_SingleDurableSession(t *testing.T) {
	src := newFakeSource()
	src.add("sess-1", snapshotWith(
		redisstore.SnapshotMessage{Content: "hi", SenderID: 1},
		redisstore.SnapshotMessage{Content: "hello", SenderID: 2},
	))
	svc, db := newTestService(t, src)

	for i := 0; i < 2; i++ {
		if err := svc.SyncSession(context.Background(), "sess-1"); err != nil {
			t.Fatalf("sync pass %d: %v", i+1, err)
		}
	}

	var sessions []models.Session
	if err := db.Where("topic LIKE ?", "%"+Marker("sess-1")+"%").Find(&sessions).Error; err != nil {
		t.Fatalf("query sessions: %v", err)
	}
	if len(sessions) != 1 {
		t.Fatalf("expected exactly 1 durable session, got %d", len(sessions))
	}

	var count int64
	if err := db.Model(&models.Message{}).Where("session_id = ?", sessions[0].ID).Count(&count).Error; err != nil {
		t.Fatalf("count messages: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 durable messages after double sync, got %d", count)
	}
}

func TestSyncSession_AppendsOnlyNewMessages(t *testing.T) {
	src := newFakeSource()
	snap := snapshotWith(
		redisstore.SnapshotMessage{Content: "hi", SenderID: 1},
		redisstore.SnapshotMessage{Content: "hello", SenderID: 2},
	)
	src.add("sess-2", snap)
	svc, db := newTestService(t, src)

	if err := svc.SyncSession(context.Background(), "sess-2"); err != nil {
		t.Fatalf("first sync: %v", err)
	}

	snap.Messages = append(snap.Messages, redisstore.SnapshotMessage{Content: "hi again", SenderID: 1})
	if err := svc.SyncSession(context.Background(), "sess-2"); err != nil {
		t.Fatalf("second sync: %v", err)
	}

	var count int64
	if err := db.Model(&models.Message{}).Count(&count).Error; err != nil {
		t.Fatalf("count messages: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected 3 durable messages total, got %d", count)
	}
}

func TestSyncSession_BadTimestampDoesNotFail(t *testing.T) {
	src := newFakeSource()
	src.add("sess-3", snapshotWith(
		redisstore.SnapshotMessage{Content: "odd clock", SenderID: 1, Timestamp: "not-a-date"},
	))
	svc, db := newTestService(t, src)

	if err := svc.SyncSession(context.Background(), "sess-3"); err != nil {
		t.Fatalf("sync with bad timestamp: %v", err)
	}

	var msg models.Message
	if err := db.Where("content = ?", "odd clock").First(&msg).Error; err != nil {
		t.Fatalf("message not synced: %v", err)
	}
	if msg.SentAt.IsZero() {
		t.Fatalf("expected store-assigned sent_at, got zero time")
	}
}

func TestManualFullSync_IsolatesPerSessionFailures(t *testing.T) {
	src := newFakeSource()
	src.add("a", snapshotWith(redisstore.SnapshotMessage{Content: "from a", SenderID: 1}))
	src.add("b", snapshotWith(redisstore.SnapshotMessage{Content: "from b", SenderID: 1}))
	src.add("c", snapshotWith(redisstore.SnapshotMessage{Content: "from c", SenderID: 1}))
	src.failOn["b"] = true
	svc, db := newTestService(t, src)

	if err := svc.ManualFullSync(context.Background()); err != nil {
		t.Fatalf("manual full sync: %v", err)
	}

	for _, content := range []string{"from a", "from c"} {
		var count int64
		if err := db.Model(&models.Message{}).Where("content = ?", content).Count(&count).Error; err != nil {
			t.Fatalf("count %q: %v", content, err)
		}
		if count != 1 {
			t.Fatalf("expected %q synced despite failure on b, got count=%d", content, count)
		}
	}
	var count int64
	if err := db.Model(&models.Message{}).Where("content = ?", "from b").Count(&count).Error; err != nil {
		t.Fatalf("count b: %v", err)
	}
	if count != 0 {
		t.Fatalf("session b should have failed, found %d messages", count)
	}
}

func TestSyncSession_SenderTagRemapsToParticipant(t *testing.T) {
	src := newFakeSource()
	src.add("sess-4", snapshotWith(
		redisstore.SnapshotMessage{Content: "assistant reply", SenderID: 2},
	))
	svc, db := newTestService(t, src)

	// an unrelated pre-existing user shifts row ids so tag and primary key
	// can no longer coincide by accident
	if err := db.Create(&models.User{Email: "someone@else.com", PasswordHash: "x"}).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}

	if err := svc.SyncSession(context.Background(), "sess-4"); err != nil {
		t.Fatalf("sync: %v", err)
	}

	var msg models.Message
	if err := db.Where("content = ?", "assistant reply").First(&msg).Error; err != nil {
		t.Fatalf("message not synced: %v", err)
	}

	var aiUser models.User
	if err := db.Where("email = ?", "ai@assistant.com").First(&aiUser).Error; err != nil {
		t.Fatalf("assistant user missing: %v", err)
	}
	if msg.SenderID == aiUser.ID {
		t.Fatalf("message sender %d must be a participant id, not the raw user id", msg.SenderID)
	}

	var p models.GroupParticipant
	if err := db.First(&p, "group_participant_id = ?", msg.SenderID).Error; err != nil {
		t.Fatalf("sender %d is not a group participant: %v", msg.SenderID, err)
	}
	if p.UserID != aiUser.ID {
		t.Fatalf("participant %d belongs to user %d, want assistant user %d", p.ID, p.UserID, aiUser.ID)
	}
}

func TestSyncSession_EndToEnd(t *testing.T) {
	src := newFakeSource()
	src.add("abc123", &redisstore.Snapshot{
		GroupID:   1,
		CreatedBy: 1,
		Topic:     "Test",
		CreatedAt: "2024-01-01T10:00:00",
		Messages: []redisstore.SnapshotMessage{
			{Content: "Hello", SenderID: 1, Timestamp: "2024-01-01T10:00:00"},
			{Content: "Hi back", SenderID: 2, Timestamp: "2024-01-01T10:01:00"},
		},
	})
	svc, db := newTestService(t, src)

	if err := svc.SyncSession(context.Background(), "abc123"); err != nil {
		t.Fatalf("sync: %v", err)
	}

	var sessions []models.Session
	if err := db.Where("topic LIKE ?", "%Redis:abc123%").Find(&sessions).Error; err != nil {
		t.Fatalf("query sessions: %v", err)
	}
	if len(sessions) != 1 {
		t.Fatalf("expected 1 durable session with marker, got %d", len(sessions))
	}
	sess := sessions[0]
	if sess.GroupID != 1 {
		t.Fatalf("expected group 1, got %d", sess.GroupID)
	}

	var msgs []models.Message
	if err := db.Where("session_id = ?", sess.ID).Order("message_id ASC").Find(&msgs).Error; err != nil {
		t.Fatalf("query messages: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].Content != "Hello" || msgs[1].Content != "Hi back" {
		t.Fatalf("order not preserved: %q then %q", msgs[0].Content, msgs[1].Content)
	}
	if !msgs[1].SentAt.After(msgs[0].SentAt) {
		t.Fatalf("timestamps not chronological: %v then %v", msgs[0].SentAt, msgs[1].SentAt)
	}

	var participants []models.GroupParticipant
	if err := db.Where("group_id = ?", sess.GroupID).Order("group_participant_id ASC").Find(&participants).Error; err != nil {
		t.Fatalf("query participants: %v", err)
	}
	if len(participants) != 2 {
		t.Fatalf("expected one participant per sender tag, got %d", len(participants))
	}
	if participants[0].UserID == participants[1].UserID {
		t.Fatalf("both participants map to user %d", participants[0].UserID)
	}
}

func TestRun_DispatchesUpdateAndStops(t *testing.T) {
	src := newFakeSource()
	src.add("live-1", snapshotWith(redisstore.SnapshotMessage{Content: "ping", SenderID: 1}))
	svc, db := newTestService(t, src)

	sub := &fakeSubscriber{notifications: []notification{
		{channel: "session_updated:live-1", payload: "live-1"},
		{channel: "session_updated:", payload: "{malformed"},
		{channel: "__keyevent@0__:expired", payload: "chat:session:live-1"},
	}}

	done := make(chan struct{})
	go func() {
		svc.Run(context.Background(), sub)
		close(done)
	}()

	deadline := time.After(5 * time.Second)
	for {
		var count int64
		if err := db.Model(&models.Message{}).Where("content = ?", "ping").Count(&count).Error; err != nil {
			t.Fatalf("count: %v", err)
		}
		if count == 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("update notification was never synced")
		case <-time.After(20 * time.Millisecond):
		}
	}

	// expiry must not touch durable rows
	var count int64
	if err := db.Model(&models.Message{}).Count(&count).Error; err != nil {
		t.Fatalf("count after expiry: %v", err)
	}
	if count != 1 {
		t.Fatalf("expiry event changed durable data, message count=%d", count)
	}

	svc.Stop()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("run loop did not observe stop flag")
	}
	if !sub.closed.Load() {
		t.Fatalf("subscription not released on stop")
	}

	st := svc.Status(context.Background())
	if st.Enabled {
		t.Fatalf("status still reports enabled after stop")
	}
	if !st.RedisConnected {
		t.Fatalf("status lost redis connectivity")
	}
}

func TestRun_RedisDownNeverStarts(t *testing.T) {
	src := newFakeSource()
	src.connected = false
	svc, _ := newTestService(t, src)

	done := make(chan struct{})
	go func() {
		svc.Run(context.Background(), &fakeSubscriber{})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("run loop should return immediately when redis is down")
	}
}
