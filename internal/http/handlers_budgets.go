package http

import (
	"github.com/gin-gonic/gin"
)

func (s *Server) handleCreateBudget(c *gin.Context) {
	userID, ok := s.userID(c)
	if !ok {
		return
	}
	var req budgetRequest
	if err := bindJSON(c, &req); err != nil {
		respondError(c, err)
		return
	}
	b, err := req.toBudget(userID, "")
	if err != nil {
		respondError(c, err)
		return
	}
	res, err := s.deps.Mutations.CreateBudget(c.Request.Context(), b)
	if err != nil {
		respondError(c, err)
		return
	}
	respondWrite(c, res, true)
}

func (s *Server) handleUpdateBudget(c *gin.Context) {
	userID, ok := s.userID(c)
	if !ok {
		return
	}
	var req budgetRequest
	if err := bindJSON(c, &req); err != nil {
		respondError(c, err)
		return
	}
	b, err := req.toBudget(userID, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	res, err := s.deps.Mutations.UpdateBudget(c.Request.Context(), b)
	if err != nil {
		respondError(c, err)
		return
	}
	respondWrite(c, res, false)
}

func (s *Server) handleDeleteBudget(c *gin.Context) {
	userID, ok := s.userID(c)
	if !ok {
		return
	}
	res, err := s.deps.Mutations.DeleteBudget(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondWrite(c, res, false)
}
