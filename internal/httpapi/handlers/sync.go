package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/paperchat/paperchat/internal/common"
)

func (h *Handler) ManualSync(c *gin.Context) {
	if err := h.SyncSvc.ManualFullSync(c.Request.Context()); err != nil {
		common.Fail(c, http.StatusInternalServerError, 50006, "manual sync failed")
		return
	}
	common.OK(c, gin.H{"synced": true})
}

func (h *Handler) SyncStatus(c *gin.Context) {
	common.OK(c, h.SyncSvc.Status(c.Request.Context()))
}

func (h *Handler) SyncOneSession(c *gin.Context) {
	id := c.Param("session_id")
	if err := h.SyncSvc.SyncSession(c.Request.Context(), id); err != nil {
		common.Fail(c, http.StatusInternalServerError, 50007, "session sync failed")
		return
	}
	common.OK(c, gin.H{"session_id": id, "synced": true})
}
