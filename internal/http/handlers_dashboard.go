package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"budgetbuddy/internal/core"
	"budgetbuddy/internal/services"
)

// DashboardResponse wraps a snapshot with where it came from.
type DashboardResponse struct {
	Snapshot  core.Snapshot      `json:"snapshot"`
	Source    services.Source    `json:"source"`
	SyncState services.SyncState `json:"syncState"`
}

// handleDashboard never fails for I/O reasons: offline or on error it
// answers from the cache or with an empty snapshot.
func (s *Server) handleDashboard(c *gin.Context) {
	userID, ok := s.userID(c)
	if !ok {
		return
	}
	snap, source := s.deps.Dashboard.Load(c.Request.Context(), userID)
	c.JSON(http.StatusOK, DashboardResponse{
		Snapshot:  snap,
		Source:    source,
		SyncState: s.deps.Reconciler.State(),
	})
}

func (s *Server) handleDashboardRefresh(c *gin.Context) {
	userID, ok := s.userID(c)
	if !ok {
		return
	}
	if !s.deps.Reconciler.Online() {
		respondError(c, services.ErrOffline)
		return
	}
	snap, err := s.deps.Dashboard.Refresh(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, DashboardResponse{
		Snapshot:  snap,
		Source:    services.SourceRemote,
		SyncState: s.deps.Reconciler.State(),
	})
}
