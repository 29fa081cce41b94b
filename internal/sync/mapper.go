package sync

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/paperchat/paperchat/internal/models"
	"github.com/paperchat/paperchat/internal/store/redisstore"
)

// markerPrefix plus the ephemeral session id, embedded in the durable topic
// field, is the only join key between the two stores. The schema has no
// dedicated column for it, so the exact substring must be preserved or the
// mapper stops finding the row and duplicates it on the next pass.
const markerPrefix = "Redis:"

func Marker(ephemeralID string) string {
	return markerPrefix + ephemeralID
}

// Mapper resolves an ephemeral session id to exactly one durable session row,
// creating the row on first sync.
type Mapper struct {
	repo *Repo
	rec  *Reconciler
}

func NewMapper(repo *Repo, rec *Reconciler) *Mapper {
	return &Mapper{repo: repo, rec: rec}
}

func (m *Mapper) ResolveOrCreate(ctx context.Context, ephemeralID string, snap *redisstore.Snapshot) (*models.Session, error) {
	mk := Marker(ephemeralID)

	sessions, err := m.repo.SessionsByTopicMarker(ctx, mk)
	if err != nil {
		return nil, err
	}
	if len(sessions) > 0 {
		if len(sessions) > 1 {
			log.Printf("sync: %d durable sessions carry marker %q, using session_id=%d", len(sessions), mk, sessions[0].ID)
		}
		return &sessions[0], nil
	}

	groupTag := snap.GroupID
	if groupTag <= 0 {
		groupTag = 1
	}
	creatorTag := snap.CreatedBy
	if creatorTag <= 0 {
		creatorTag = HumanTag
	}

	creator, err := m.rec.EnsureUser(ctx, creatorTag)
	if err != nil {
		return nil, err
	}
	group, err := m.rec.EnsureGroup(ctx, uint64(groupTag), creator.ID)
	if err != nil {
		return nil, err
	}
	participantID, err := m.rec.EnsureParticipant(ctx, group.ID, creator.ID)
	if err != nil {
		return nil, err
	}

	startedAt := time.Now()
	if ts, ok := parseTimestamp(snap.CreatedAt); ok {
		startedAt = ts
	}

	topic := snap.Topic
	if topic == "" {
		topic = "Chat Session"
	}

	sess := &models.Session{
		GroupID:   group.ID,
		CreatedBy: participantID,
		Topic:     fmt.Sprintf("%s (%s)", topic, mk),
		StartedAt: &startedAt,
	}
	if err := m.repo.CreateSession(ctx, sess); err != nil {
		return nil, err
	}
	log.Printf("sync: created durable session %d for ephemeral session %s", sess.ID, ephemeralID)
	return sess, nil
}
