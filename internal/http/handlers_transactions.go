package http

import (
	"github.com/gin-gonic/gin"
)

func (s *Server) handleCreateTransaction(c *gin.Context) {
	userID, ok := s.userID(c)
	if !ok {
		return
	}
	var req transactionRequest
	if err := bindJSON(c, &req); err != nil {
		respondError(c, err)
		return
	}
	tx, err := req.toTransaction(userID, "")
	if err != nil {
		respondError(c, err)
		return
	}
	res, err := s.deps.Mutations.CreateTransaction(c.Request.Context(), tx)
	if err != nil {
		respondError(c, err)
		return
	}
	respondWrite(c, res, true)
}

func (s *Server) handleUpdateTransaction(c *gin.Context) {
	userID, ok := s.userID(c)
	if !ok {
		return
	}
	var req transactionRequest
	if err := bindJSON(c, &req); err != nil {
		respondError(c, err)
		return
	}
	tx, err := req.toTransaction(userID, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	res, err := s.deps.Mutations.UpdateTransaction(c.Request.Context(), tx)
	if err != nil {
		respondError(c, err)
		return
	}
	respondWrite(c, res, false)
}

func (s *Server) handleDeleteTransaction(c *gin.Context) {
	userID, ok := s.userID(c)
	if !ok {
		return
	}
	res, err := s.deps.Mutations.DeleteTransaction(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondWrite(c, res, false)
}
