package handlers

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/readerlab/reader-platform/internal/article"
	"github.com/readerlab/reader-platform/internal/config"
	"github.com/readerlab/reader-platform/internal/httpapi/middleware"
	"github.com/readerlab/reader-platform/internal/store/redisstore"
)

type Handler struct {
	DB          *gorm.DB
	Cfg         config.Config
	Queue       *redisstore.Store
	Repo        *article.Repo
	Submissions *article.SubmissionService
	Logger      *slog.Logger
}

func NewHandler(db *gorm.DB, cfg config.Config, queue *redisstore.Store, logger *slog.Logger) *Handler {
	repo := article.NewRepo(db)
	return &Handler{
		DB:          db,
		Cfg:         cfg,
		Queue:       queue,
		Repo:        repo,
		Submissions: article.NewSubmissionService(repo, queue, logger, cfg.DuplicateWindowHours),
		Logger:      logger,
	}
}

// userIDFromContext returns the authenticated user, or nil for anonymous
// requests.
func userIDFromContext(c *gin.Context) *uint64 {
	v, ok := c.Get(middleware.UserIDKey)
	if !ok {
		return nil
	}
	id, ok := v.(uint64)
	if !ok {
		return nil
	}
	return &id
}
