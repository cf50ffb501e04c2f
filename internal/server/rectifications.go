package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	paymentdomain "github.com/smallbiznis/redevance/internal/payment/domain"
	rectificationdomain "github.com/smallbiznis/redevance/internal/rectification/domain"
)

func (s *Server) GenerateRectification(c *gin.Context) {
	var req rectificationdomain.GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.rectificationSvc.Generate(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) SuggestGap(c *gin.Context) {
	resp, err := s.rectificationSvc.SuggestGap(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) IssueRectification(c *gin.Context) {
	resp, err := s.rectificationSvc.Issue(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetRectification(c *gin.Context) {
	resp, err := s.rectificationSvc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListRectificationsByTaxpayer(c *gin.Context) {
	resp, err := s.rectificationSvc.ListByTaxpayer(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListRectificationPayments(c *gin.Context) {
	s.listPayments(c, string(paymentdomain.TargetRectificationNote))
}
