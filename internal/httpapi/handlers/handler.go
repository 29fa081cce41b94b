package handlers

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/paperchat/paperchat/internal/chat"
	"github.com/paperchat/paperchat/internal/common"
	"github.com/paperchat/paperchat/internal/config"
	"github.com/paperchat/paperchat/internal/paper"
	"github.com/paperchat/paperchat/internal/store/rabbitmq"
	"github.com/paperchat/paperchat/internal/sync"
)

type Handler struct {
	DB        *gorm.DB
	Cfg       config.Config
	ChatSvc   *chat.Service
	SyncSvc   *sync.Service
	Arxiv     *paper.Client
	Publisher *rabbitmq.Publisher // nil when the queue is not configured
}

func NewHandler(db *gorm.DB, cfg config.Config, chatSvc *chat.Service, syncSvc *sync.Service, arxiv *paper.Client, pub *rabbitmq.Publisher) *Handler {
	return &Handler{
		DB:        db,
		Cfg:       cfg,
		ChatSvc:   chatSvc,
		SyncSvc:   syncSvc,
		Arxiv:     arxiv,
		Publisher: pub,
	}
}

func (h *Handler) Ping(c *gin.Context) {
	common.OK(c, gin.H{"message": "pong"})
}
