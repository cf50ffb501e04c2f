package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	declarationdomain "github.com/smallbiznis/redevance/internal/declaration/domain"
)

func (s *Server) SubmitDeclaration(c *gin.Context) {
	var req declarationdomain.SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.declarationSvc.Submit(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) GetDeclaration(c *gin.Context) {
	resp, err := s.declarationSvc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListDeclarationsByTaxpayer(c *gin.Context) {
	resp, err := s.declarationSvc.ListByTaxpayer(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
