package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/paperchat/paperchat/internal/common"
	"github.com/paperchat/paperchat/internal/models"
	"github.com/paperchat/paperchat/internal/paper"
)

type createPaperReq struct {
	Title     string  `json:"title" binding:"required"`
	Abstract  string  `json:"abstract"`
	Authors   string  `json:"authors"`
	DOI       *string `json:"doi"`
	SourceURL string  `json:"source_url"`
}

func (h *Handler) CreatePaper(c *gin.Context) {
	var req createPaperReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "title required")
		return
	}
	p := models.Paper{
		Title:     req.Title,
		Abstract:  req.Abstract,
		Authors:   req.Authors,
		DOI:       req.DOI,
		SourceURL: req.SourceURL,
	}
	if err := h.DB.WithContext(c.Request.Context()).Create(&p).Error; err != nil {
		common.Fail(c, http.StatusBadRequest, 10010, "failed to create paper (duplicate doi?)")
		return
	}
	common.OK(c, p)
}

func (h *Handler) GetPaperByID(c *gin.Context) {
	h.getByID(c, &models.Paper{}, "paper not found")
}

func (h *Handler) ListPapers(c *gin.Context) {
	var papers []models.Paper
	if err := h.DB.WithContext(c.Request.Context()).Order("paper_id ASC").Limit(200).Find(&papers).Error; err != nil {
		common.Fail(c, http.StatusInternalServerError, 20001, "db error")
		return
	}
	common.OK(c, papers)
}

type searchPapersReq struct {
	Query      string `json:"query" binding:"required"`
	MaxResults int    `json:"max_results"`
}

// SearchPapers queries arXiv and persists whatever comes back, so repeated
// searches for the same papers update rows instead of duplicating them.
func (h *Handler) SearchPapers(c *gin.Context) {
	var req searchPapersReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "query required")
		return
	}
	if req.MaxResults <= 0 || req.MaxResults > 50 {
		req.MaxResults = 10
	}
	results, err := h.Arxiv.Search(c.Request.Context(), req.Query, req.MaxResults)
	if err != nil {
		common.Fail(c, http.StatusBadGateway, 50201, "upstream search failed")
		return
	}
	saved, err := paper.SaveResults(c.Request.Context(), h.DB, results)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 20001, "failed to save results")
		return
	}
	common.OK(c, saved)
}

type addPaperTagReq struct {
	PaperID uint64 `json:"paper_id" binding:"required"`
	Tag     string `json:"tag" binding:"required"`
}

func (h *Handler) AddPaperTag(c *gin.Context) {
	var req addPaperTagReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "paper_id and tag required")
		return
	}
	tag := models.PaperTag{PaperID: req.PaperID, Tag: req.Tag}
	if err := h.DB.WithContext(c.Request.Context()).Create(&tag).Error; err != nil {
		common.Fail(c, http.StatusBadRequest, 10011, "failed to add tag")
		return
	}
	common.OK(c, tag)
}

func (h *Handler) ListPaperTags(c *gin.Context) {
	q := h.DB.WithContext(c.Request.Context()).Limit(500)
	if pid := c.Query("paper_id"); pid != "" {
		q = q.Where("paper_id = ?", pid)
	}
	var tags []models.PaperTag
	if err := q.Find(&tags).Error; err != nil {
		common.Fail(c, http.StatusInternalServerError, 20001, "db error")
		return
	}
	common.OK(c, tags)
}

type addSessionPaperReq struct {
	SessionID uint64 `json:"session_id" binding:"required"`
	PaperID   uint64 `json:"paper_id" binding:"required"`
}

func (h *Handler) AddSessionPaper(c *gin.Context) {
	var req addSessionPaperReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "session_id and paper_id required")
		return
	}
	link := models.SessionPaper{SessionID: req.SessionID, PaperID: req.PaperID}
	if err := h.DB.WithContext(c.Request.Context()).Create(&link).Error; err != nil {
		common.Fail(c, http.StatusBadRequest, 10012, "failed to link paper")
		return
	}
	common.OK(c, link)
}

func (h *Handler) ListSessionPapers(c *gin.Context) {
	q := h.DB.WithContext(c.Request.Context()).Limit(200)
	if sid := c.Query("session_id"); sid != "" {
		q = q.Where("session_id = ?", sid)
	}
	var links []models.SessionPaper
	if err := q.Find(&links).Error; err != nil {
		common.Fail(c, http.StatusInternalServerError, 20001, "db error")
		return
	}
	common.OK(c, links)
}
