package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"budgetbuddy/internal/session"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.started).String(),
		"syncState": s.deps.Reconciler.State(),
	})
}

// handleReady reports whether the record store answers. The API keeps
// serving cached data when it does not, so the status is "degraded", not an
// error.
func (s *Server) handleReady(c *gin.Context) {
	checks := gin.H{}
	status := "ready"

	if s.deps.Pinger != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()
		if err := s.deps.Pinger.Ping(ctx); err != nil {
			checks["record_store"] = "failed: " + err.Error()
			status = "degraded"
		} else {
			checks["record_store"] = "ok"
		}
	} else {
		checks["record_store"] = "not_configured"
	}

	if _, err := s.deps.Queue.Len(c.Request.Context()); err != nil {
		checks["offline_queue"] = "failed: " + err.Error()
		status = "degraded"
	} else {
		checks["offline_queue"] = "ok"
	}

	c.JSON(http.StatusOK, gin.H{
		"status": status,
		"checks": checks,
	})
}

func (s *Server) handleSessionInit(c *gin.Context) {
	var req sessionRequest
	if err := bindJSON(c, &req); err != nil {
		respondError(c, err)
		return
	}
	prefs := session.Preferences{Currency: sanitizeInput(req.Currency), Theme: sanitizeInput(req.Theme)}
	if err := s.deps.Session.Init(sanitizeInput(req.UserID), prefs); err != nil {
		respondError(c, err)
		return
	}
	st, _ := s.deps.Session.Current()
	if s.deps.Reconciler.Online() {
		s.deps.Dashboard.RefreshAsync(c.Request.Context(), st.UserID)
	}
	c.JSON(http.StatusOK, st)
}

func (s *Server) handleSessionGet(c *gin.Context) {
	st, err := s.deps.Session.Current()
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (s *Server) handleSessionReset(c *gin.Context) {
	s.deps.Session.Reset()
	c.Status(http.StatusNoContent)
}

// userID returns the signed-in user or writes 401.
func (s *Server) userID(c *gin.Context) (string, bool) {
	id, err := s.deps.Session.UserID()
	if err != nil {
		respondError(c, err)
		return "", false
	}
	return id, true
}
