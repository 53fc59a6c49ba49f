package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"editorial_sync/internal/domain"
	"editorial_sync/internal/service"
)

// SyncRunner is the slice of the sync service the HTTP layer needs.
type SyncRunner interface {
	Sync(ctx context.Context, opts domain.SyncOptions) (*domain.SyncOutcome, error)
	CancelOperation(ctx context.Context, id string) (bool, error)
}

// ArticleLister backs the admin article table.
type ArticleLister interface {
	List(ctx context.Context, limit, offset int) ([]domain.Article, int, error)
}

// OperationReader backs progress polling.
type OperationReader interface {
	Get(ctx context.Context, id string) (*domain.SyncOperation, error)
	List(ctx context.Context, limit, offset int) ([]domain.SyncOperation, error)
}

// Server is the admin HTTP API: trigger and monitor sync operations,
// browse the article table.
type Server struct {
	syncer     SyncRunner
	articles   ArticleLister
	operations OperationReader
	logger     *slog.Logger
}

func New(syncer SyncRunner, articles ArticleLister, operations OperationReader, logger *slog.Logger) *Server {
	return &Server{
		syncer:     syncer,
		articles:   articles,
		operations: operations,
		logger:     logger.With("component", "http"),
	}
}

func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", s.health)

	api := r.Group("/api")
	{
		api.POST("/sync/wordpress", s.triggerSync)
		api.GET("/sync/operations", s.listOperations)
		api.GET("/sync/operations/:id", s.getOperation)
		api.POST("/sync/operations/:id/cancel", s.cancelOperation)
		api.GET("/articles", s.listArticles)
	}

	return r
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// syncResponse is the envelope the admin UI expects from a sync
// trigger.
type syncResponse struct {
	Success         bool                `json:"success"`
	Results         *domain.SyncResults `json:"results,omitempty"`
	TotalArticles   *int                `json:"totalArticles,omitempty"`
	SyncOperationID string              `json:"syncOperationId,omitempty"`
	Error           string              `json:"error,omitempty"`
}

func (s *Server) triggerSync(c *gin.Context) {
	// All request fields are optional; an empty body means defaults.
	var opts domain.SyncOptions
	if err := c.ShouldBindJSON(&opts); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, syncResponse{Success: false, Error: err.Error()})
		return
	}

	outcome, err := s.syncer.Sync(c.Request.Context(), opts)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, service.ErrSourceNotConfigured) {
			status = http.StatusServiceUnavailable
		}
		s.logger.Error("sync request failed", "error", err)
		c.JSON(status, syncResponse{Success: false, Error: err.Error()})
		return
	}

	c.JSON(http.StatusOK, syncResponse{
		Success:         true,
		Results:         &outcome.Results,
		TotalArticles:   &outcome.TotalArticles,
		SyncOperationID: outcome.OperationID,
	})
}

func (s *Server) getOperation(c *gin.Context) {
	op, err := s.operations.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if op == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "operation not found"})
		return
	}
	c.JSON(http.StatusOK, op)
}

func (s *Server) listOperations(c *gin.Context) {
	limit, offset := pagination(c, 20)

	ops, err := s.operations.List(c.Request.Context(), limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"operations": ops, "limit": limit, "offset": offset})
}

func (s *Server) cancelOperation(c *gin.Context) {
	id := c.Param("id")

	cancelled, err := s.syncer.CancelOperation(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if !cancelled {
		c.JSON(http.StatusConflict, gin.H{"cancelled": false, "error": "operation is not running"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"cancelled": true})
}

func (s *Server) listArticles(c *gin.Context) {
	limit, offset := pagination(c, 20)

	articles, total, err := s.articles.List(c.Request.Context(), limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"articles": articles,
		"total":    total,
		"limit":    limit,
		"offset":   offset,
	})
}

func pagination(c *gin.Context, defaultLimit int) (limit, offset int) {
	limit = defaultLimit
	if v, err := strconv.Atoi(c.Query("limit")); err == nil && v > 0 && v <= 100 {
		limit = v
	}
	if v, err := strconv.Atoi(c.Query("offset")); err == nil && v > 0 {
		offset = v
	}
	return limit, offset
}
