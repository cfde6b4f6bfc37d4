package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/readerlab/reader-platform/internal/article"
	"github.com/readerlab/reader-platform/internal/common"
)

type submitArticleReq struct {
	Language string `json:"language" binding:"required"`
	Level    string `json:"level" binding:"required"`
	Length   string `json:"length"`
	Topic    string `json:"topic" binding:"required"`
	Force    bool   `json:"force"`
}

func (h *Handler) SubmitArticle(c *gin.Context) {
	var req submitArticleReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	inputs := article.GenerationInput{
		Language: req.Language,
		Level:    req.Level,
		Length:   req.Length,
		Topic:    req.Topic,
	}

	res, err := h.Submissions.Submit(c.Request.Context(), inputs, userIDFromContext(c), req.Force)
	if err != nil {
		var dup *article.DuplicateError
		if errors.As(err, &dup) {
			payload := gin.H{"article_id": dup.ArticleID}
			if dup.ExistingJob != nil {
				payload["existing_job"] = gin.H{
					"id":       dup.ExistingJob.ID,
					"status":   dup.ExistingJob.Status,
					"progress": dup.ExistingJob.Progress,
				}
			}
			common.FailData(c, http.StatusConflict, 40901, "duplicate submission", payload)
			return
		}
		var enq *article.EnqueueError
		if errors.As(err, &enq) {
			h.Logger.Error("enqueue failed", "article_id", enq.ArticleID, "job_id", enq.JobID, "error", err)
			common.Fail(c, http.StatusBadGateway, 50201, "failed to enqueue generation job")
			return
		}
		common.Fail(c, http.StatusBadRequest, 10002, err.Error())
		return
	}

	common.OkStatus(c, http.StatusAccepted, res)
}

func (h *Handler) GetArticle(c *gin.Context) {
	art, ok := h.loadOwned(c, false)
	if !ok {
		return
	}
	common.Ok(c, art)
}

func (h *Handler) DeleteArticle(c *gin.Context) {
	art, ok := h.loadOwned(c, true)
	if !ok {
		return
	}
	if err := h.Repo.SoftDelete(c.Request.Context(), art.ID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			common.Fail(c, http.StatusNotFound, 40401, "article not found")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 50001, "failed to delete article")
		return
	}
	common.Ok(c, gin.H{"article_id": art.ID, "status": article.StatusDeleted})
}

func (h *Handler) ListArticleUsage(c *gin.Context) {
	art, ok := h.loadOwned(c, true)
	if !ok {
		return
	}
	recs, err := h.Repo.ListUsageByArticle(c.Request.Context(), art.ID)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 50002, "failed to list usage")
		return
	}

	var prompt, completion, total int
	var cost float64
	for _, r := range recs {
		prompt += r.PromptUnits
		completion += r.CompletionUnits
		total += r.TotalUnits
		cost += r.EstimatedCost
	}
	common.Ok(c, gin.H{
		"records": recs,
		"totals": gin.H{
			"prompt_units":     prompt,
			"completion_units": completion,
			"total_units":      total,
			"estimated_cost":   cost,
		},
	})
}

func (h *Handler) GetJobStatus(c *gin.Context) {
	st, err := h.Queue.GetStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 50003, "failed to fetch job status")
		return
	}
	if st == nil {
		// Expired or never existed; the article record is the durable truth.
		common.Fail(c, http.StatusNotFound, 40402, "job status not found")
		return
	}
	common.Ok(c, st)
}

func (h *Handler) QueueStats(c *gin.Context) {
	stats, err := h.Queue.Stats(c.Request.Context())
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 50004, "failed to fetch queue stats")
		return
	}
	common.Ok(c, stats)
}

func (h *Handler) Ping(c *gin.Context) {
	if err := h.Queue.Ping(c.Request.Context()); err != nil {
		common.Fail(c, http.StatusServiceUnavailable, 50301, "queue store unavailable")
		return
	}
	sqlDB, err := h.DB.DB()
	if err != nil || sqlDB.PingContext(c.Request.Context()) != nil {
		common.Fail(c, http.StatusServiceUnavailable, 50302, "record store unavailable")
		return
	}
	common.Ok(c, gin.H{"status": "ok"})
}

// loadOwned fetches the article and enforces ownership. Owned articles are
// only visible to their owner; anonymous articles require ownerOnly=false.
func (h *Handler) loadOwned(c *gin.Context, ownerOnly bool) (*article.Article, bool) {
	art, err := h.Repo.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			common.Fail(c, http.StatusNotFound, 40401, "article not found")
			return nil, false
		}
		common.Fail(c, http.StatusInternalServerError, 50001, "failed to load article")
		return nil, false
	}
	if art.Status == article.StatusDeleted {
		common.Fail(c, http.StatusNotFound, 40401, "article not found")
		return nil, false
	}

	uid := userIDFromContext(c)
	if art.UserID != nil {
		if uid == nil || *uid != *art.UserID {
			common.Fail(c, http.StatusNotFound, 40401, "article not found")
			return nil, false
		}
	} else if ownerOnly {
		// Anonymous articles have no owner to authorize destructive access.
		common.Fail(c, http.StatusForbidden, 40301, "article has no owner")
		return nil, false
	}
	return art, true
}
