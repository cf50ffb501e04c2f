package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	notedomain "github.com/smallbiznis/redevance/internal/note/domain"
	paymentdomain "github.com/smallbiznis/redevance/internal/payment/domain"
)

func (s *Server) IssueNote(c *gin.Context) {
	var req notedomain.IssueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.noteSvc.Issue(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) GetNote(c *gin.Context) {
	resp, err := s.noteSvc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListNotesByTaxpayer(c *gin.Context) {
	resp, err := s.noteSvc.ListByTaxpayer(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetNoteEscalation(c *gin.Context) {
	resp, err := s.escalationSvc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListNotePayments(c *gin.Context) {
	s.listPayments(c, string(paymentdomain.TargetTaxationNote))
}
