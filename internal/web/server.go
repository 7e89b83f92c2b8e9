// Package web exposes the consulting workflow over HTTP.
package web

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/metalagman/consultant/internal/db"
	"github.com/metalagman/consultant/internal/model"
	"github.com/metalagman/consultant/internal/orchestrator"
	"github.com/metalagman/consultant/internal/session"
	"github.com/rs/zerolog/log"
)

// Turner runs one workflow turn.
type Turner interface {
	Turn(ctx context.Context, s orchestrator.Session, text string) (orchestrator.Session, orchestrator.Reply, error)
}

// BriefReader reads archived briefs.
type BriefReader interface {
	ListBriefs(ctx context.Context, limit int) ([]db.BriefSummary, error)
	GetBrief(ctx context.Context, sessionID string) (model.Brief, error)
}

// Server provides the HTTP handlers.
type Server struct {
	sessions *session.Store
	turner   Turner
	briefs   BriefReader
}

// NewServer creates a server. briefs may be nil when no archive is configured.
func NewServer(sessions *session.Store, turner Turner, briefs BriefReader) *Server {
	return &Server{sessions: sessions, turner: turner, briefs: briefs}
}

type turnRequest struct {
	Text string `json:"text" binding:"required"`
}

type turnResponse struct {
	ID        string             `json:"id"`
	State     orchestrator.State `json:"state"`
	Reply     string             `json:"reply"`
	Brief     string             `json:"brief,omitempty"`
	Retryable bool               `json:"retryable,omitempty"`
}

type briefItem struct {
	SessionID     string    `json:"sessionId"`
	Name          string    `json:"name"`
	CreatedAt     time.Time `json:"createdAt"`
	Cycles        int       `json:"cycles"`
	Unresolved    int       `json:"unresolved"`
	EstimatedCost float64   `json:"estimatedCost"`
}

// Routes returns the router.
func (s *Server) Routes() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "sessions": s.sessions.Len()})
	})

	sessions := r.Group("/sessions")
	{
		sessions.POST("", s.handleCreate)
		sessions.GET("/:id", s.handleGet)
		sessions.DELETE("/:id", s.handleDelete)
		sessions.POST("/:id/turns", s.handleTurn)
	}

	if s.briefs != nil {
		briefs := r.Group("/briefs")
		briefs.GET("", s.handleListBriefs)
		briefs.GET("/:id", s.handleGetBrief)
	}
	return r
}

func (s *Server) handleCreate(c *gin.Context) {
	sess := s.sessions.Create()
	c.JSON(http.StatusCreated, gin.H{"id": sess.ID, "state": sess.State, "reply": orchestrator.GreetMessage})
}

func (s *Server) handleGet(c *gin.Context) {
	sess, err := s.sessions.Get(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	c.JSON(http.StatusOK, sess)
}

func (s *Server) handleDelete(c *gin.Context) {
	if !s.sessions.Delete(c.Param("id")) {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleTurn(c *gin.Context) {
	var req turnRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Text) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: text is required"})
		return
	}

	id := c.Param("id")
	var reply orchestrator.Reply
	sess, err := s.sessions.Update(c.Request.Context(), id, func(ctx context.Context, in orchestrator.Session) (orchestrator.Session, error) {
		out, r, err := s.turner.Turn(ctx, in, req.Text)
		reply = r
		return out, err
	})

	var te *orchestrator.TurnError
	switch {
	case errors.Is(err, session.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	case errors.Is(err, context.Canceled):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "request canceled", "id": id})
		return
	case errors.As(err, &te):
		c.JSON(http.StatusBadGateway, gin.H{"error": te.Error(), "stage": te.Stage, "id": id, "state": sess.State})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := turnResponse{
		ID:        sess.ID,
		State:     sess.State,
		Reply:     reply.Text,
		Brief:     reply.Brief,
		Retryable: reply.Retryable,
	}
	status := http.StatusOK
	if reply.Retryable {
		status = http.StatusGatewayTimeout
	}
	c.JSON(status, resp)
}

func (s *Server) handleListBriefs(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
		return
	}
	rows, err := s.briefs.ListBriefs(c.Request.Context(), limit)
	if err != nil {
		log.Error().Err(err).Msg("list briefs")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list briefs"})
		return
	}
	items := make([]briefItem, 0, len(rows))
	for _, b := range rows {
		items = append(items, briefItem(b))
	}
	c.JSON(http.StatusOK, items)
}

func (s *Server) handleGetBrief(c *gin.Context) {
	b, err := s.briefs.GetBrief(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "brief not found"})
			return
		}
		log.Error().Err(err).Msg("get brief")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read brief"})
		return
	}
	if strings.Contains(c.GetHeader("Accept"), "text/markdown") {
		c.Data(http.StatusOK, "text/markdown; charset=utf-8", []byte(b.Markdown))
		return
	}
	c.JSON(http.StatusOK, b)
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug().
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("duration", time.Since(start)).
			Msg("http request")
	}
}
