package models

import "time"

type User struct {
	ID           uint64    `gorm:"column:user_id;primaryKey;autoIncrement" json:"user_id"`
	Email        string    `gorm:"type:text;uniqueIndex;not null" json:"email"`
	PasswordHash string    `gorm:"type:text;not null" json:"-"`
	FirstName    string    `gorm:"type:text" json:"first_name"`
	LastName     string    `gorm:"type:text" json:"last_name"`
	Role         string    `gorm:"type:text" json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

func (User) TableName() string { return "users" }

type Group struct {
	ID        uint64    `gorm:"column:group_id;primaryKey;autoIncrement" json:"group_id"`
	Name      string    `gorm:"type:text;not null" json:"name"`
	CreatedBy uint64    `gorm:"index;not null" json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
}

func (Group) TableName() string { return "groups" }

type GroupParticipant struct {
	ID       uint64    `gorm:"column:group_participant_id;primaryKey;autoIncrement" json:"group_participant_id"`
	GroupID  uint64    `gorm:"not null;index:uniq_group_user,unique,priority:1" json:"group_id"`
	UserID   uint64    `gorm:"not null;index:uniq_group_user,unique,priority:2" json:"user_id"`
	Role     string    `gorm:"type:text" json:"role"`
	JoinedAt time.Time `gorm:"autoCreateTime" json:"joined_at"`
}

func (GroupParticipant) TableName() string { return "group_participants" }

type Session struct {
	ID        uint64     `gorm:"column:session_id;primaryKey;autoIncrement" json:"session_id"`
	GroupID   uint64     `gorm:"index;not null" json:"group_id"`
	CreatedBy uint64     `gorm:"not null" json:"created_by"`
	Topic     string     `gorm:"type:text" json:"topic"`
	StartedAt *time.Time `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at"`
}

func (Session) TableName() string { return "sessions" }

// Message.SenderID references group_participants.group_participant_id, not
// users.user_id. The participant row is the author identity inside a group.
type Message struct {
	ID        uint64    `gorm:"column:message_id;primaryKey;autoIncrement" json:"message_id"`
	SessionID uint64    `gorm:"index;not null" json:"session_id"`
	SenderID  uint64    `gorm:"index;not null" json:"sender_id"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	SentAt    time.Time `gorm:"autoCreateTime" json:"sent_at"`
}

func (Message) TableName() string { return "messages" }

type Paper struct {
	ID          uint64     `gorm:"column:paper_id;primaryKey;autoIncrement" json:"paper_id"`
	Title       string     `gorm:"type:text;not null" json:"title"`
	Abstract    string     `gorm:"type:text" json:"abstract"`
	Authors     string     `gorm:"type:text" json:"authors"`
	DOI         *string    `gorm:"column:doi;type:text;uniqueIndex" json:"doi"`
	PublishedAt *time.Time `json:"published_at"`
	SourceURL   string     `gorm:"type:text" json:"source_url"`
}

func (Paper) TableName() string { return "papers" }

type PaperTag struct {
	PaperID uint64 `gorm:"primaryKey" json:"paper_id"`
	Tag     string `gorm:"type:varchar(100);primaryKey" json:"tag"`
}

func (PaperTag) TableName() string { return "paper_tags" }

type SessionPaper struct {
	SessionID uint64    `gorm:"primaryKey" json:"session_id"`
	PaperID   uint64    `gorm:"primaryKey" json:"paper_id"`
	AddedAt   time.Time `gorm:"autoCreateTime" json:"added_at"`
}

func (SessionPaper) TableName() string { return "session_papers" }

type SessionParticipant struct {
	SessionID uint64    `gorm:"primaryKey" json:"session_id"`
	UserID    uint64    `gorm:"primaryKey" json:"user_id"`
	JoinedAt  time.Time `gorm:"autoCreateTime" json:"joined_at"`
}

func (SessionParticipant) TableName() string { return "session_participants" }

type Feedback struct {
	ID        uint64    `gorm:"column:feedback_id;primaryKey;autoIncrement" json:"feedback_id"`
	SessionID uint64    `gorm:"index;not null" json:"session_id"`
	GivenBy   uint64    `gorm:"not null" json:"given_by"`
	Content   string    `gorm:"type:text" json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

func (Feedback) TableName() string { return "feedback" }

type AiMetadata struct {
	MessageID uint64    `gorm:"primaryKey" json:"message_id"`
	PaperID   uint64    `gorm:"primaryKey" json:"paper_id"`
	PageNo    int       `json:"page_no"`
	CreatedAt time.Time `json:"created_at"`
}

func (AiMetadata) TableName() string { return "ai_metadata" }
