package sync

import (
	"context"
	"errors"
	"fmt"

	"github.com/paperchat/paperchat/internal/models"
)

// Well-known sender tags carried by ephemeral messages. They describe a role,
// not a durable row id.
const (
	HumanTag     = 1
	AssistantTag = 2
)

// ErrNoUsers is returned when a group must be created but not a single user
// exists to own it. The system is expected to have bootstrapped at least one
// user before the first sync.
var ErrNoUsers = errors.New("sync: no users exist to own default group")

// Reconciler idempotently guarantees the durable prerequisite rows (user,
// group, group participant) referenced by an ephemeral snapshot.
type Reconciler struct {
	repo *Repo
}

func NewReconciler(repo *Repo) *Reconciler {
	return &Reconciler{repo: repo}
}

// senderEmail maps a sender tag to a fixed synthetic email so that repeated
// syncs converge on the same user row.
func senderEmail(tag int) string {
	switch tag {
	case HumanTag:
		return "user@default.com"
	case AssistantTag:
		return "ai@assistant.com"
	default:
		return fmt.Sprintf("user_%d@temp.com", tag)
	}
}

func senderName(tag int) string {
	switch tag {
	case HumanTag:
		return "Default User"
	case AssistantTag:
		return "AI Assistant"
	default:
		return fmt.Sprintf("User%d", tag)
	}
}

// EnsureDefaultUsers guarantees the two well-known identities exist.
func (rc *Reconciler) EnsureDefaultUsers(ctx context.Context) error {
	if _, err := rc.EnsureUser(ctx, HumanTag); err != nil {
		return err
	}
	_, err := rc.EnsureUser(ctx, AssistantTag)
	return err
}

// EnsureUser resolves the durable user for a sender tag, creating it on first
// reference. Existing rows are never modified.
func (rc *Reconciler) EnsureUser(ctx context.Context, tag int) (*models.User, error) {
	email := senderEmail(tag)
	u, err := rc.repo.UserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if u != nil {
		return u, nil
	}
	return rc.repo.CreateUserOrGet(ctx, &models.User{
		Email:        email,
		PasswordHash: "temp",
		FirstName:    senderName(tag),
	})
}

// EnsureGroup resolves the durable group by id, creating it with a default
// name when absent. ownerID may be zero, in which case the first available
// user owns the group; ErrNoUsers if there is none.
func (rc *Reconciler) EnsureGroup(ctx context.Context, groupID uint64, ownerID uint64) (*models.Group, error) {
	g, err := rc.repo.GroupByID(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if g != nil {
		return g, nil
	}

	if ownerID == 0 {
		owner, err := rc.repo.FirstUser(ctx)
		if err != nil {
			return nil, err
		}
		if owner == nil {
			return nil, ErrNoUsers
		}
		ownerID = owner.ID
	}

	return rc.repo.CreateGroupOrGet(ctx, &models.Group{
		ID:        groupID,
		Name:      "Default Group",
		CreatedBy: ownerID,
	})
}

// EnsureParticipant resolves the (group, user) join row and returns the
// group_participant_id — the identifier durable messages carry as their
// sender, one indirection away from the raw user id.
func (rc *Reconciler) EnsureParticipant(ctx context.Context, groupID, userID uint64) (uint64, error) {
	p, err := rc.repo.ParticipantByGroupUser(ctx, groupID, userID)
	if err != nil {
		return 0, err
	}
	if p != nil {
		return p.ID, nil
	}
	created, err := rc.repo.CreateParticipantOrGet(ctx, &models.GroupParticipant{
		GroupID: groupID,
		UserID:  userID,
		Role:    "member",
	})
	if err != nil {
		return 0, err
	}
	return created.ID, nil
}

// ParticipantForTag is the full remapping chain: sender tag -> user ->
// group participant.
func (rc *Reconciler) ParticipantForTag(ctx context.Context, groupID uint64, tag int) (uint64, error) {
	u, err := rc.EnsureUser(ctx, tag)
	if err != nil {
		return 0, err
	}
	return rc.EnsureParticipant(ctx, groupID, u.ID)
}
