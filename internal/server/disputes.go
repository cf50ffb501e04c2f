package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	disputedomain "github.com/smallbiznis/redevance/internal/dispute/domain"
)

func (s *Server) FileDispute(c *gin.Context) {
	var req disputedomain.FileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.disputeSvc.File(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) AdjudicateDispute(c *gin.Context) {
	var req disputedomain.AdjudicateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.disputeSvc.Adjudicate(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetDispute(c *gin.Context) {
	resp, err := s.disputeSvc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListDisputesByTaxpayer(c *gin.Context) {
	resp, err := s.disputeSvc.ListByTaxpayer(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
