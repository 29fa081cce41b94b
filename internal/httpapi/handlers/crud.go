package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/paperchat/paperchat/internal/common"
	"github.com/paperchat/paperchat/internal/models"
)

func pathID(c *gin.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil {
		common.Fail(c, http.StatusBadRequest, 10004, "invalid "+name)
		return 0, false
	}
	return id, true
}

func (h *Handler) getByID(c *gin.Context, dest any, notFoundMsg string) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.DB.WithContext(c.Request.Context()).First(dest, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			common.Fail(c, http.StatusNotFound, 40402, notFoundMsg)
			return
		}
		common.Fail(c, http.StatusInternalServerError, 20001, "db error")
		return
	}
	common.OK(c, dest)
}

// Groups

type createGroupReq struct {
	Name      string `json:"name" binding:"required"`
	CreatedBy uint64 `json:"created_by" binding:"required"`
}

func (h *Handler) CreateGroup(c *gin.Context) {
	var req createGroupReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "name and created_by required")
		return
	}
	g := models.Group{Name: req.Name, CreatedBy: req.CreatedBy}
	if err := h.DB.WithContext(c.Request.Context()).Create(&g).Error; err != nil {
		common.Fail(c, http.StatusBadRequest, 10005, "failed to create group")
		return
	}
	common.OK(c, g)
}

func (h *Handler) GetGroupByID(c *gin.Context) {
	h.getByID(c, &models.Group{}, "group not found")
}

func (h *Handler) ListGroups(c *gin.Context) {
	var groups []models.Group
	if err := h.DB.WithContext(c.Request.Context()).Order("group_id ASC").Limit(200).Find(&groups).Error; err != nil {
		common.Fail(c, http.StatusInternalServerError, 20001, "db error")
		return
	}
	common.OK(c, groups)
}

// Group participants

type createParticipantReq struct {
	GroupID uint64 `json:"group_id" binding:"required"`
	UserID  uint64 `json:"user_id" binding:"required"`
	Role    string `json:"role"`
}

func (h *Handler) CreateGroupParticipant(c *gin.Context) {
	var req createParticipantReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "group_id and user_id required")
		return
	}
	p := models.GroupParticipant{GroupID: req.GroupID, UserID: req.UserID, Role: req.Role}
	if err := h.DB.WithContext(c.Request.Context()).Create(&p).Error; err != nil {
		common.Fail(c, http.StatusBadRequest, 10006, "failed to create participant (maybe already joined)")
		return
	}
	common.OK(c, p)
}

func (h *Handler) GetGroupParticipantByID(c *gin.Context) {
	h.getByID(c, &models.GroupParticipant{}, "participant not found")
}

func (h *Handler) ListGroupParticipants(c *gin.Context) {
	q := h.DB.WithContext(c.Request.Context()).Order("group_participant_id ASC").Limit(200)
	if gid := c.Query("group_id"); gid != "" {
		q = q.Where("group_id = ?", gid)
	}
	var parts []models.GroupParticipant
	if err := q.Find(&parts).Error; err != nil {
		common.Fail(c, http.StatusInternalServerError, 20001, "db error")
		return
	}
	common.OK(c, parts)
}

// Durable sessions

type createSessionReq struct {
	GroupID   uint64 `json:"group_id" binding:"required"`
	CreatedBy uint64 `json:"created_by" binding:"required"`
	Topic     string `json:"topic"`
}

func (h *Handler) CreateSession(c *gin.Context) {
	var req createSessionReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "group_id and created_by required")
		return
	}
	s := models.Session{GroupID: req.GroupID, CreatedBy: req.CreatedBy, Topic: req.Topic}
	if err := h.DB.WithContext(c.Request.Context()).Create(&s).Error; err != nil {
		common.Fail(c, http.StatusBadRequest, 10007, "failed to create session")
		return
	}
	common.OK(c, s)
}

func (h *Handler) GetSessionByID(c *gin.Context) {
	h.getByID(c, &models.Session{}, "session not found")
}

func (h *Handler) ListSessions(c *gin.Context) {
	q := h.DB.WithContext(c.Request.Context()).Order("session_id ASC").Limit(200)
	if gid := c.Query("group_id"); gid != "" {
		q = q.Where("group_id = ?", gid)
	}
	var sessions []models.Session
	if err := q.Find(&sessions).Error; err != nil {
		common.Fail(c, http.StatusInternalServerError, 20001, "db error")
		return
	}
	common.OK(c, sessions)
}

// Durable messages

func (h *Handler) GetMessageByID(c *gin.Context) {
	h.getByID(c, &models.Message{}, "message not found")
}

func (h *Handler) ListMessages(c *gin.Context) {
	q := h.DB.WithContext(c.Request.Context()).Order("message_id ASC").Limit(500)
	if sid := c.Query("session_id"); sid != "" {
		q = q.Where("session_id = ?", sid)
	}
	var msgs []models.Message
	if err := q.Find(&msgs).Error; err != nil {
		common.Fail(c, http.StatusInternalServerError, 20001, "db error")
		return
	}
	common.OK(c, msgs)
}

// Session participants

type createSessionParticipantReq struct {
	SessionID uint64 `json:"session_id" binding:"required"`
	UserID    uint64 `json:"user_id" binding:"required"`
}

func (h *Handler) CreateSessionParticipant(c *gin.Context) {
	var req createSessionParticipantReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "session_id and user_id required")
		return
	}
	p := models.SessionParticipant{SessionID: req.SessionID, UserID: req.UserID}
	if err := h.DB.WithContext(c.Request.Context()).Create(&p).Error; err != nil {
		common.Fail(c, http.StatusBadRequest, 10008, "failed to add session participant")
		return
	}
	common.OK(c, p)
}

func (h *Handler) ListSessionParticipants(c *gin.Context) {
	q := h.DB.WithContext(c.Request.Context()).Limit(200)
	if sid := c.Query("session_id"); sid != "" {
		q = q.Where("session_id = ?", sid)
	}
	var parts []models.SessionParticipant
	if err := q.Find(&parts).Error; err != nil {
		common.Fail(c, http.StatusInternalServerError, 20001, "db error")
		return
	}
	common.OK(c, parts)
}

// Feedback

type createFeedbackReq struct {
	SessionID uint64 `json:"session_id" binding:"required"`
	GivenBy   uint64 `json:"given_by" binding:"required"`
	Content   string `json:"content" binding:"required"`
}

func (h *Handler) CreateFeedback(c *gin.Context) {
	var req createFeedbackReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "session_id, given_by and content required")
		return
	}
	f := models.Feedback{SessionID: req.SessionID, GivenBy: req.GivenBy, Content: req.Content}
	if err := h.DB.WithContext(c.Request.Context()).Create(&f).Error; err != nil {
		common.Fail(c, http.StatusBadRequest, 10009, "failed to create feedback")
		return
	}
	common.OK(c, f)
}

func (h *Handler) ListFeedback(c *gin.Context) {
	q := h.DB.WithContext(c.Request.Context()).Order("feedback_id ASC").Limit(200)
	if sid := c.Query("session_id"); sid != "" {
		q = q.Where("session_id = ?", sid)
	}
	var items []models.Feedback
	if err := q.Find(&items).Error; err != nil {
		common.Fail(c, http.StatusInternalServerError, 20001, "db error")
		return
	}
	common.OK(c, items)
}
