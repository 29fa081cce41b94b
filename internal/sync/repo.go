package sync

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/paperchat/paperchat/internal/models"
)

// Repo is the durable-store access layer for the sync engine. Lookups return
// (nil, nil) when no row matches; creates that can race the CRUD endpoint
// layer retry by requerying and adopting the winner's row.
type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	err := r.db.WithContext(ctx).Where("email = ?", email).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// FirstUser returns the lowest-id user, used as a fallback group owner.
func (r *Repo) FirstUser(ctx context.Context) (*models.User, error) {
	var u models.User
	err := r.db.WithContext(ctx).Order("user_id ASC").First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *Repo) CreateUserOrGet(ctx context.Context, u *models.User) (*models.User, error) {
	err := r.db.WithContext(ctx).Create(u).Error
	if err == nil {
		return u, nil
	}
	// a concurrent creator may have won the unique email index
	existing, getErr := r.UserByEmail(ctx, u.Email)
	if getErr == nil && existing != nil {
		return existing, nil
	}
	return nil, err
}

func (r *Repo) GroupByID(ctx context.Context, id uint64) (*models.Group, error) {
	var g models.Group
	err := r.db.WithContext(ctx).First(&g, "group_id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &g, nil
}

func (r *Repo) CreateGroupOrGet(ctx context.Context, g *models.Group) (*models.Group, error) {
	err := r.db.WithContext(ctx).Create(g).Error
	if err == nil {
		return g, nil
	}
	existing, getErr := r.GroupByID(ctx, g.ID)
	if getErr == nil && existing != nil {
		return existing, nil
	}
	return nil, err
}

func (r *Repo) ParticipantByGroupUser(ctx context.Context, groupID, userID uint64) (*models.GroupParticipant, error) {
	var p models.GroupParticipant
	err := r.db.WithContext(ctx).
		Where("group_id = ? AND user_id = ?", groupID, userID).
		First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *Repo) CreateParticipantOrGet(ctx context.Context, p *models.GroupParticipant) (*models.GroupParticipant, error) {
	err := r.db.WithContext(ctx).Create(p).Error
	if err == nil {
		return p, nil
	}
	existing, getErr := r.ParticipantByGroupUser(ctx, p.GroupID, p.UserID)
	if getErr == nil && existing != nil {
		return existing, nil
	}
	return nil, err
}

// SessionsByTopicMarker finds durable sessions whose topic embeds the given
// reconciliation marker, oldest first.
func (r *Repo) SessionsByTopicMarker(ctx context.Context, marker string) ([]models.Session, error) {
	var sessions []models.Session
	err := r.db.WithContext(ctx).
		Where("topic LIKE ?", "%"+marker+"%").
		Order("session_id ASC").
		Find(&sessions).Error
	if err != nil {
		return nil, err
	}
	return sessions, nil
}

func (r *Repo) CreateSession(ctx context.Context, s *models.Session) error {
	return r.db.WithContext(ctx).Create(s).Error
}

func (r *Repo) MessagesBySession(ctx context.Context, sessionID uint64) ([]models.Message, error) {
	var msgs []models.Message
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("message_id ASC").
		Find(&msgs).Error
	if err != nil {
		return nil, err
	}
	return msgs, nil
}

func (r *Repo) CreateMessage(ctx context.Context, m *models.Message) error {
	return r.db.WithContext(ctx).Create(m).Error
}
