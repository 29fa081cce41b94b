package sync

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync/atomic"
	"time"

	"gorm.io/gorm"

	"github.com/paperchat/paperchat/internal/store/redisstore"
)

const sessionKeyPrefix = "chat:session:"

// Source is the ephemeral-store surface the sync engine reads. Satisfied by
// *redisstore.Store; tests substitute a fake.
type Source interface {
	GetSession(ctx context.Context, sessionID string) (*redisstore.Snapshot, error)
	SessionIDs(ctx context.Context) ([]string, error)
	IsConnected(ctx context.Context) bool
}

// Subscriber yields pub/sub notifications with a bounded wait. A ("", "",
// nil) return means the timeout elapsed with nothing to process.
type Subscriber interface {
	Next(ctx context.Context, timeout time.Duration) (channel, payload string, err error)
	Close() error
}

type Status struct {
	Enabled        bool `json:"sync_enabled"`
	RedisConnected bool `json:"redis_connected"`
}

// Service drives synchronization from the ephemeral store into the durable
// one, reactively through the subscription loop and on demand through
// ManualFullSync. All durable writes happen inside SyncSession.
type Service struct {
	source Source
	repo   *Repo
	rec    *Reconciler
	mapper *Mapper
	writer *Writer

	pollTimeout time.Duration
	running     atomic.Bool
}

func NewService(db *gorm.DB, source Source, pollTimeout time.Duration) *Service {
	if pollTimeout <= 0 {
		pollTimeout = time.Second
	}
	repo := NewRepo(db)
	rec := NewReconciler(repo)
	return &Service{
		source:      source,
		repo:        repo,
		rec:         rec,
		mapper:      NewMapper(repo, rec),
		writer:      NewWriter(repo, rec),
		pollTimeout: pollTimeout,
	}
}

// Run consumes notifications until Stop is called or ctx is cancelled. Each
// iteration waits at most pollTimeout and then yields, so the loop never
// starves the rest of the process. Malformed notifications are logged and
// skipped, never fatal.
func (s *Service) Run(ctx context.Context, sub Subscriber) {
	if !s.source.IsConnected(ctx) {
		log.Printf("sync: redis not connected, listener not started")
		return
	}

	s.running.Store(true)
	defer sub.Close()
	log.Printf("sync: listener started")

	for s.running.Load() {
		if ctx.Err() != nil {
			return
		}

		channel, payload, err := sub.Next(ctx, s.pollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("sync: receive notification: %v", err)
		} else if channel != "" {
			s.dispatch(ctx, channel, payload)
		}

		// brief yield between polls, mirroring the bounded-wait loop
		select {
		case <-ctx.Done():
			return
		case <-time.After(100 * time.Millisecond):
		}
	}
	log.Printf("sync: listener stopped")
}

// Stop asks the Run loop to exit; it observes the flag within one iteration.
// An in-flight SyncSession call still runs to completion.
func (s *Service) Stop() {
	s.running.Store(false)
}

func (s *Service) Status(ctx context.Context) Status {
	return Status{
		Enabled:        s.running.Load(),
		RedisConnected: s.source.IsConnected(ctx),
	}
}

// dispatch routes one notification. Updates sync the session; deletion and
// expiry events are observed but never delete durable data, which is kept as
// history.
func (s *Service) dispatch(ctx context.Context, channel, payload string) {
	if id, ok := strings.CutPrefix(channel, "session_updated:"); ok {
		// the channel suffix carries the id; payloads vary by publisher
		if id == "" {
			log.Printf("sync: session_updated notification without session id, skipping")
			return
		}
		if err := s.SyncSession(ctx, id); err != nil {
			log.Printf("sync: session %s: %v", id, err)
		}
		return
	}

	if strings.Contains(channel, "__keyevent@") {
		key := payload
		id, ok := strings.CutPrefix(key, sessionKeyPrefix)
		if !ok {
			return // some other key, not ours
		}
		switch {
		case strings.HasSuffix(channel, ":expired"), strings.HasSuffix(channel, ":del"):
			s.handleExpiry(id)
		case strings.HasSuffix(channel, ":set"):
			if err := s.SyncSession(ctx, id); err != nil {
				log.Printf("sync: session %s: %v", id, err)
			}
		}
		return
	}

	log.Printf("sync: unrecognized notification on channel %q, skipping", channel)
}

// handleExpiry deliberately keeps the durable rows: the ephemeral copy is a
// working set with a TTL, the relational store is the history.
func (s *Service) handleExpiry(sessionID string) {
	log.Printf("sync: ephemeral session %s expired, durable history retained", sessionID)
}

// SyncSession runs one full read-reconcile-write pass for a single session.
// It re-reads the whole current snapshot, so coalesced or out-of-order
// notifications for the same session self-correct.
func (s *Service) SyncSession(ctx context.Context, sessionID string) error {
	snap, err := s.source.GetSession(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("read snapshot: %w", err)
	}
	if snap == nil {
		log.Printf("sync: session %s not found in redis, nothing to do", sessionID)
		return nil
	}

	if err := s.rec.EnsureDefaultUsers(ctx); err != nil {
		return fmt.Errorf("ensure default users: %w", err)
	}

	sess, err := s.mapper.ResolveOrCreate(ctx, sessionID, snap)
	if err != nil {
		return fmt.Errorf("resolve durable session: %w", err)
	}

	n, err := s.writer.SyncMessages(ctx, sess.ID, sess.GroupID, snap)
	if err != nil {
		return fmt.Errorf("sync messages: %w", err)
	}
	if n > 0 {
		log.Printf("sync: session %s -> durable %d, %d new messages", sessionID, sess.ID, n)
	}
	return nil
}

// ManualFullSync sweeps every live ephemeral session. A failure on one
// session is logged and does not abort the rest.
func (s *Service) ManualFullSync(ctx context.Context) error {
	ids, err := s.source.SessionIDs(ctx)
	if err != nil {
		return fmt.Errorf("list sessions: %w", err)
	}
	log.Printf("sync: manual full sync over %d sessions", len(ids))

	for _, id := range ids {
		if err := s.SyncSession(ctx, id); err != nil {
			log.Printf("sync: manual sync of session %s failed: %v", id, err)
		}
	}
	return nil
}
