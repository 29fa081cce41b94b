package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/paperchat/paperchat/internal/chat"
	"github.com/paperchat/paperchat/internal/common"
)

func (h *Handler) CreateChatSession(c *gin.Context) {
	id, err := h.ChatSvc.CreateSession(c.Request.Context())
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 50001, "failed to create chat session")
		return
	}
	common.OK(c, gin.H{"session_id": id})
}

func (h *Handler) ListChatSessions(c *gin.Context) {
	ids, err := h.ChatSvc.Sessions(c.Request.Context())
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 50002, "failed to list chat sessions")
		return
	}
	common.OK(c, gin.H{"session_ids": ids})
}

func (h *Handler) ChatHistory(c *gin.Context) {
	msgs, err := h.ChatSvc.History(c.Request.Context(), c.Param("session_id"))
	if err != nil {
		if errors.Is(err, chat.ErrSessionNotFound) {
			common.Fail(c, http.StatusNotFound, 40403, "chat session not found")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 50003, "failed to load history")
		return
	}
	common.OK(c, gin.H{"messages": msgs})
}

type sendMessageReq struct {
	Content string `json:"content" binding:"required"`
}

func (h *Handler) SendChatMessage(c *gin.Context) {
	var req sendMessageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "content required")
		return
	}
	reply, err := h.ChatSvc.SendMessage(c.Request.Context(), c.Param("session_id"), req.Content)
	if err != nil {
		if errors.Is(err, chat.ErrSessionNotFound) {
			common.Fail(c, http.StatusNotFound, 40403, "chat session not found")
			return
		}
		common.Fail(c, http.StatusBadGateway, 50202, "assistant reply failed")
		return
	}
	common.OK(c, gin.H{"reply": reply})
}

func (h *Handler) DeleteChatSession(c *gin.Context) {
	deleted, err := h.ChatSvc.DeleteSession(c.Request.Context(), c.Param("session_id"))
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 50004, "failed to delete chat session")
		return
	}
	if !deleted {
		common.Fail(c, http.StatusNotFound, 40403, "chat session not found")
		return
	}
	common.OK(c, gin.H{"deleted": true})
}

type asyncMessageReq struct {
	SessionID string `json:"session_id" binding:"required"`
	Content   string `json:"content" binding:"required"`
}

// AsyncChatMessage enqueues a reply job and hands it to the worker via
// RabbitMQ. Without a publisher configured the job still exists and can be
// run by a worker polling the DB, so we only log the publish failure.
func (h *Handler) AsyncChatMessage(c *gin.Context) {
	var req asyncMessageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "session_id and content required")
		return
	}
	var idemKey *string
	if k := c.GetHeader("Idempotency-Key"); k != "" {
		idemKey = &k
	}
	job, created, err := h.ChatSvc.EnqueueReply(c.Request.Context(), req.SessionID, req.Content, idemKey)
	if err != nil {
		if errors.Is(err, chat.ErrSessionNotFound) {
			common.Fail(c, http.StatusNotFound, 40403, "chat session not found")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 50005, "failed to enqueue reply")
		return
	}
	if created && h.Publisher != nil {
		if err := h.Publisher.PublishJob(c.Request.Context(), job.ID); err != nil {
			log.Printf("chat: publish job %s: %v", job.ID, err)
		}
	}
	common.OK(c, job)
}

func (h *Handler) GetChatJob(c *gin.Context) {
	job, err := h.ChatSvc.GetJob(c.Request.Context(), c.Param("job_id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			common.Fail(c, http.StatusNotFound, 40404, "job not found")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 20001, "db error")
		return
	}
	common.OK(c, job)
}
