package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"budgetbuddy/internal/offline"
	"budgetbuddy/internal/services"
)

// SyncStatus describes the reconciler and its queue.
type SyncStatus struct {
	State    services.SyncState `json:"state"`
	Online   bool               `json:"online"`
	LastSync *time.Time         `json:"lastSync,omitempty"`
	Pending  int                `json:"pending"`
	// QueueError is set when the persisted queue cannot be read.
	QueueError string `json:"queueError,omitempty"`
}

// SyncResponse is returned by the manual connectivity endpoints.
type SyncResponse struct {
	SyncStatus
	Report *services.ReplayReport `json:"report,omitempty"`
	Error  string                 `json:"error,omitempty"`
}

func (s *Server) syncStatus(c *gin.Context) SyncStatus {
	ctx := c.Request.Context()
	st := SyncStatus{
		State:  s.deps.Reconciler.State(),
		Online: s.deps.Reconciler.Online(),
	}
	if t, ok := s.deps.Reconciler.LastSync(ctx); ok {
		st.LastSync = &t
	}
	n, err := s.deps.Queue.Len(ctx)
	if err != nil {
		st.QueueError = err.Error()
	}
	st.Pending = n
	return st
}

func (s *Server) handleSyncStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.syncStatus(c))
}

// handleGoOnline runs a full reconciliation pass. A failed refresh leaves the
// reconciler offline and is reported with 502 together with the replay report.
func (s *Server) handleGoOnline(c *gin.Context) {
	report, err := s.deps.Reconciler.GoOnline(c.Request.Context())
	resp := SyncResponse{Report: &report}
	if err != nil {
		resp.Error = err.Error()
		resp.SyncStatus = s.syncStatus(c)
		c.JSON(http.StatusBadGateway, resp)
		return
	}
	resp.SyncStatus = s.syncStatus(c)
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleGoOffline(c *gin.Context) {
	s.deps.Reconciler.GoOffline(c.Request.Context())
	c.JSON(http.StatusOK, SyncResponse{SyncStatus: s.syncStatus(c)})
}

func (s *Server) handleQueueList(c *gin.Context) {
	pending, err := s.deps.Queue.Pending(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	if pending == nil {
		pending = []offline.Mutation{}
	}
	c.JSON(http.StatusOK, gin.H{"mutations": pending, "count": len(pending)})
}

// handleQueueClear is the explicit user action that discards every queued
// mutation, including a queue that can no longer be decoded.
func (s *Server) handleQueueClear(c *gin.Context) {
	if err := s.deps.Queue.Clear(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
