package chat

import (
	"context"
	"errors"
	"time"

	"github.com/paperchat/paperchat/internal/ai"
	"github.com/paperchat/paperchat/internal/store/redisstore"
	"github.com/paperchat/paperchat/internal/sync"
)

var ErrSessionNotFound = errors.New("chat: session not found")

// Store is the ephemeral-store surface the chat service writes through.
// Satisfied by *redisstore.Store.
type Store interface {
	StoreSession(ctx context.Context, sessionID string, snap *redisstore.Snapshot) error
	GetSession(ctx context.Context, sessionID string) (*redisstore.Snapshot, error)
	AppendMessage(ctx context.Context, sessionID string, msg redisstore.SnapshotMessage) error
	DeleteSession(ctx context.Context, sessionID string) (bool, error)
	SessionIDs(ctx context.Context) ([]string, error)
}

// Service keeps live conversations in the ephemeral store. Every write
// publishes a notification, so the sync engine mirrors the session into
// Postgres without the chat path touching the relational schema.
type Service struct {
	store        Store
	registry     *ai.Registry
	providerName string
	model        string
	repo         *Repo
	windowSize   int
}

func NewService(store Store, registry *ai.Registry, providerName, model string, repo *Repo, windowSize int) *Service {
	if windowSize <= 0 || windowSize > 100 {
		windowSize = 20
	}
	return &Service{
		store:        store,
		registry:     registry,
		providerName: providerName,
		model:        model,
		repo:         repo,
		windowSize:   windowSize,
	}
}

// CreateSession seeds a fresh snapshot with the sentinel group/creator hints
// the sync engine expects.
func (s *Service) CreateSession(ctx context.Context) (string, error) {
	sessionID := NewSessionID()
	snap := &redisstore.Snapshot{
		Messages:  []redisstore.SnapshotMessage{},
		GroupID:   1,
		CreatedBy: 1,
		Topic:     "Chat Session",
	}
	if err := s.store.StoreSession(ctx, sessionID, snap); err != nil {
		return "", err
	}
	return sessionID, nil
}

func (s *Service) History(ctx context.Context, sessionID string) ([]redisstore.SnapshotMessage, error) {
	snap, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if snap == nil {
		return nil, ErrSessionNotFound
	}
	return snap.Messages, nil
}

func (s *Service) Sessions(ctx context.Context) ([]string, error) {
	return s.store.SessionIDs(ctx)
}

func (s *Service) DeleteSession(ctx context.Context, sessionID string) (bool, error) {
	return s.store.DeleteSession(ctx, sessionID)
}

func roleForTag(tag int) string {
	if tag == sync.AssistantTag {
		return "assistant"
	}
	return "user"
}

// providerContext converts the most recent window of snapshot messages into
// provider input, oldest first.
func (s *Service) providerContext(msgs []redisstore.SnapshotMessage) []ai.Message {
	start := 0
	if len(msgs) > s.windowSize {
		start = len(msgs) - s.windowSize
	}
	out := make([]ai.Message, 0, len(msgs)-start)
	for _, m := range msgs[start:] {
		out = append(out, ai.Message{Role: roleForTag(m.SenderID), Content: m.Content})
	}
	return out
}

// SendMessage appends the user message, generates the assistant reply and
// appends that too. Both appends publish sync notifications.
func (s *Service) SendMessage(ctx context.Context, sessionID, content string) (string, error) {
	snap, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return "", err
	}
	if snap == nil {
		return "", ErrSessionNotFound
	}

	userMsg := redisstore.SnapshotMessage{
		Content:   content,
		SenderID:  sync.HumanTag,
		Timestamp: time.Now().Format(time.RFC3339),
	}
	if err := s.store.AppendMessage(ctx, sessionID, userMsg); err != nil {
		return "", err
	}

	provider, err := s.registry.Get(ctx, s.providerName, s.model)
	if err != nil {
		return "", err
	}
	history := append(append([]redisstore.SnapshotMessage(nil), snap.Messages...), userMsg)
	reply, err := provider.Chat(ctx, s.providerContext(history))
	if err != nil {
		return "", err
	}

	aiMsg := redisstore.SnapshotMessage{
		Content:   reply,
		SenderID:  sync.AssistantTag,
		Timestamp: time.Now().Format(time.RFC3339),
	}
	if err := s.store.AppendMessage(ctx, sessionID, aiMsg); err != nil {
		return "", err
	}
	return reply, nil
}

// EnqueueReply records the user message and a queued job; the worker
// generates the assistant reply out of band.
func (s *Service) EnqueueReply(ctx context.Context, sessionID, content string, idempotencyKey *string) (*Job, bool, error) {
	snap, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, false, err
	}
	if snap == nil {
		return nil, false, ErrSessionNotFound
	}

	jobID, err := NewJobID()
	if err != nil {
		return nil, false, err
	}
	job := &Job{
		ID:             jobID,
		SessionID:      sessionID,
		Prompt:         content,
		IdempotencyKey: idempotencyKey,
		Status:         JobQueued,
	}
	job, created, err := s.repo.CreateJobOrGetExisting(ctx, job)
	if err != nil {
		return nil, false, err
	}
	if !created {
		return job, false, nil
	}

	userMsg := redisstore.SnapshotMessage{
		Content:   content,
		SenderID:  sync.HumanTag,
		Timestamp: time.Now().Format(time.RFC3339),
	}
	if err := s.store.AppendMessage(ctx, sessionID, userMsg); err != nil {
		return nil, false, err
	}
	return job, true, nil
}

func (s *Service) GetJob(ctx context.Context, jobID string) (*Job, error) {
	return s.repo.GetJobByID(ctx, jobID)
}

// RunJob is the worker entry point: generate the assistant reply from the
// session's current history and append it to the ephemeral session.
func (s *Service) RunJob(ctx context.Context, jobID string) error {
	_ = s.repo.UpdateJobStatusRunning(ctx, jobID)

	job, err := s.repo.GetJobByID(ctx, jobID)
	if err != nil {
		return err
	}

	snap, err := s.store.GetSession(ctx, job.SessionID)
	if err == nil && snap == nil {
		err = ErrSessionNotFound
	}
	if err != nil {
		_ = s.repo.MarkJobFailed(ctx, jobID, err.Error())
		return err
	}

	provider, err := s.registry.Get(ctx, s.providerName, s.model)
	if err != nil {
		_ = s.repo.MarkJobFailed(ctx, jobID, err.Error())
		return err
	}

	reply, err := provider.Chat(ctx, s.providerContext(snap.Messages))
	if err != nil {
		_ = s.repo.MarkJobFailed(ctx, jobID, err.Error())
		return err
	}

	aiMsg := redisstore.SnapshotMessage{
		Content:   reply,
		SenderID:  sync.AssistantTag,
		Timestamp: time.Now().Format(time.RFC3339),
	}
	if err := s.store.AppendMessage(ctx, job.SessionID, aiMsg); err != nil {
		_ = s.repo.MarkJobFailed(ctx, jobID, err.Error())
		return err
	}

	return s.repo.MarkJobSucceeded(ctx, jobID, reply)
}
