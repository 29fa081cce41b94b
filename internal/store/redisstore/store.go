package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"time"

	"github.com/redis/go-redis/v9"
)

const sessionKeyPrefix = "chat:session:"

// SnapshotMessage is one chat message inside a session snapshot. Fields are
// validated here at the store boundary; consumers never see raw maps.
type SnapshotMessage struct {
	Content   string `json:"content"`
	SenderID  int    `json:"sender_id"`
	Timestamp string `json:"timestamp,omitempty"`
}

// Snapshot is the full working copy of one chat session as kept in Redis.
// GroupID and CreatedBy are hints for the durable schema; 1 is the sentinel
// default when the caller has no better idea.
type Snapshot struct {
	SessionID string            `json:"session_id"`
	Messages  []SnapshotMessage `json:"messages"`
	CreatedAt string            `json:"created_at"`
	UpdatedAt string            `json:"updated_at"`
	GroupID   int               `json:"group_id"`
	CreatedBy int               `json:"created_by"`
	Topic     string            `json:"topic"`
}

type Store struct {
	client *redis.Client
	ttl    time.Duration
	db     int
}

func New(addr, username, password string, db int, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Username: username,
		Password: password,
		DB:       db,
	})
	return &Store{client: client, ttl: ttl, db: db}
}

func (s *Store) Close() error { return s.client.Close() }

func (s *Store) key(sessionID string) string { return sessionKeyPrefix + sessionID }

func (s *Store) IsConnected(ctx context.Context) bool {
	return s.client.Ping(ctx).Err() == nil
}

// StoreSession writes the snapshot with the configured TTL and publishes a
// session_updated notification for the sync listener.
func (s *Store) StoreSession(ctx context.Context, sessionID string, snap *Snapshot) error {
	snap.SessionID = sessionID
	snap.UpdatedAt = time.Now().Format(time.RFC3339)
	if snap.CreatedAt == "" {
		snap.CreatedAt = snap.UpdatedAt
	}

	body, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.key(sessionID), body, s.ttl).Err(); err != nil {
		return err
	}
	return s.client.Publish(ctx, "session_updated:"+sessionID, sessionID).Err()
}

// GetSession returns nil when the session does not exist.
func (s *Store) GetSession(ctx context.Context, sessionID string) (*Snapshot, error) {
	val, err := s.client.Get(ctx, s.key(sessionID)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var snap Snapshot
	if err := json.Unmarshal([]byte(val), &snap); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", sessionID, err)
	}
	return &snap, nil
}

func (s *Store) AppendMessage(ctx context.Context, sessionID string, msg SnapshotMessage) error {
	snap, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if snap == nil {
		return fmt.Errorf("session %s not found", sessionID)
	}
	snap.Messages = append(snap.Messages, msg)
	return s.StoreSession(ctx, sessionID, snap)
}

func (s *Store) DeleteSession(ctx context.Context, sessionID string) (bool, error) {
	n, err := s.client.Del(ctx, s.key(sessionID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// SessionIDs enumerates every live session key.
func (s *Store) SessionIDs(ctx context.Context) ([]string, error) {
	var (
		ids    []string
		cursor uint64
	)
	for {
		keys, next, err := s.client.Scan(ctx, cursor, sessionKeyPrefix+"*", 100).Result()
		if err != nil {
			return nil, err
		}
		for _, k := range keys {
			ids = append(ids, k[len(sessionKeyPrefix):])
		}
		cursor = next
		if cursor == 0 {
			return ids, nil
		}
	}
}

// Subscription wraps the pub/sub stream behind a bounded-wait receive.
type Subscription struct {
	ps *redis.PubSub
}

// Subscribe opens the pub/sub stream the sync listener consumes: custom
// session_updated channels plus keyspace expiry events. Keyspace
// notifications are best-effort enabled here; managed Redis instances that
// refuse CONFIG SET still deliver the custom channel.
func (s *Store) Subscribe(ctx context.Context) *Subscription {
	if err := s.client.ConfigSet(ctx, "notify-keyspace-events", "Ex").Err(); err != nil {
		log.Printf("redis: config set notify-keyspace-events failed (expiry events disabled): %v", err)
	}
	ps := s.client.PSubscribe(ctx,
		fmt.Sprintf("__keyevent@%d__:*", s.db),
		"session_updated:*",
	)
	return &Subscription{ps: ps}
}

// Next waits at most timeout for one notification. A timeout returns
// ("", "", nil); subscription confirmations and pongs are swallowed the same
// way so the caller only ever sees real messages.
func (sub *Subscription) Next(ctx context.Context, timeout time.Duration) (string, string, error) {
	m, err := sub.ps.ReceiveTimeout(ctx, timeout)
	if err != nil {
		var nerr net.Error
		if errors.As(err, &nerr) && nerr.Timeout() {
			return "", "", nil
		}
		return "", "", err
	}
	if msg, ok := m.(*redis.Message); ok {
		return msg.Channel, msg.Payload, nil
	}
	return "", "", nil
}

func (sub *Subscription) Close() error { return sub.ps.Close() }
