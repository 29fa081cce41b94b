package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/paperchat/paperchat/internal/chat"
	"github.com/paperchat/paperchat/internal/common"
	"github.com/paperchat/paperchat/internal/config"
	"github.com/paperchat/paperchat/internal/httpapi/handlers"
	"github.com/paperchat/paperchat/internal/httpapi/middleware"
	"github.com/paperchat/paperchat/internal/paper"
	"github.com/paperchat/paperchat/internal/store/rabbitmq"
	syncsvc "github.com/paperchat/paperchat/internal/sync"
)

func NewRouter(db *gorm.DB, cfg config.Config, chatSvc *chat.Service, syncSvc *syncsvc.Service, arxiv *paper.Client, pub *rabbitmq.Publisher) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(gin.Logger())
	r.Use(middleware.Recovery())

	r.NoRoute(func(c *gin.Context) {
		common.Fail(c, http.StatusNotFound, 40400, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		common.Fail(c, http.StatusMethodNotAllowed, 40500, "method not allowed")
	})

	r.Use(middleware.RequestID())

	h := handlers.NewHandler(db, cfg, chatSvc, syncSvc, arxiv, pub)

	r.GET("/ping", h.Ping)

	// users register + auth
	r.POST("/users", h.CreateUser)
	r.GET("/users/:id", h.GetUserByID)
	r.GET("/users", h.ListUsers)
	r.POST("/login", h.Login)

	// CRUD entities
	r.POST("/groups", h.CreateGroup)
	r.GET("/groups/:id", h.GetGroupByID)
	r.GET("/groups", h.ListGroups)
	r.POST("/group-participants", h.CreateGroupParticipant)
	r.GET("/group-participants/:id", h.GetGroupParticipantByID)
	r.GET("/group-participants", h.ListGroupParticipants)
	r.POST("/sessions", h.CreateSession)
	r.GET("/sessions/:id", h.GetSessionByID)
	r.GET("/sessions", h.ListSessions)
	r.GET("/messages/:id", h.GetMessageByID)
	r.GET("/messages", h.ListMessages)
	r.POST("/session-participants", h.CreateSessionParticipant)
	r.GET("/session-participants", h.ListSessionParticipants)
	r.POST("/feedback", h.CreateFeedback)
	r.GET("/feedback", h.ListFeedback)

	// papers
	r.POST("/papers", h.CreatePaper)
	r.GET("/papers/:id", h.GetPaperByID)
	r.GET("/papers", h.ListPapers)
	r.POST("/papers/search", h.SearchPapers)
	r.POST("/paper-tags", h.AddPaperTag)
	r.GET("/paper-tags", h.ListPaperTags)
	r.POST("/session-papers", h.AddSessionPaper)
	r.GET("/session-papers", h.ListSessionPapers)

	authGroup := r.Group("/")
	authGroup.Use(middleware.AuthRequired(cfg.JWTSecret))
	authGroup.GET("/me", h.Me)

	// Chat (JWT required)
	authGroup.POST("/chat/sessions", h.CreateChatSession)
	authGroup.GET("/chat/sessions", h.ListChatSessions)
	authGroup.GET("/chat/sessions/:session_id/history", h.ChatHistory)
	authGroup.POST("/chat/sessions/:session_id/messages", h.SendChatMessage)
	authGroup.DELETE("/chat/sessions/:session_id", h.DeleteChatSession)
	authGroup.POST("/chat/messages/async", h.AsyncChatMessage)
	authGroup.GET("/chat/jobs/:job_id", h.GetChatJob)

	// Sync (JWT required)
	authGroup.POST("/sync/manual", h.ManualSync)
	authGroup.GET("/sync/status", h.SyncStatus)
	authGroup.POST("/sync/sessions/:session_id", h.SyncOneSession)

	return r
}
