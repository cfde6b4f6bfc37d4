package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/readerlab/reader-platform/internal/common"
	"github.com/readerlab/reader-platform/internal/config"
	"github.com/readerlab/reader-platform/internal/httpapi/handlers"
	"github.com/readerlab/reader-platform/internal/httpapi/middleware"
	"github.com/readerlab/reader-platform/internal/store/redisstore"
)

func NewRouter(db *gorm.DB, cfg config.Config, queue *redisstore.Store, logger *slog.Logger) *gin.Engine {
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

	h := handlers.NewHandler(db, cfg, queue, logger)

	r.GET("/ping", h.Ping)

	// Submission and read paths accept anonymous callers.
	open := r.Group("/")
	open.Use(middleware.AuthOptional(cfg.JWTSecret))
	open.POST("/articles", h.SubmitArticle)
	open.GET("/articles/:id", h.GetArticle)
	open.GET("/jobs/:id", h.GetJobStatus)
	open.GET("/queue/stats", h.QueueStats)

	// Destructive and billing paths require an owner.
	owned := r.Group("/")
	owned.Use(middleware.AuthRequired(cfg.JWTSecret))
	owned.DELETE("/articles/:id", h.DeleteArticle)
	owned.GET("/articles/:id/usage", h.ListArticleUsage)

	return r
}
