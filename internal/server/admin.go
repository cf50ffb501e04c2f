package server

import (
	"bytes"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	recoverydomain "github.com/smallbiznis/redevance/internal/recovery/domain"
	"github.com/smallbiznis/redevance/pkg/telemetry/correlation"
)

const (
	defaultRetryBatch = 50
	maxRetryBatch     = 500
	xlsxContentType   = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

func (s *Server) RunEscalationTick(c *gin.Context) {
	ctx := correlation.ContextWithCorrelationID(c.Request.Context(), c.GetHeader(correlation.HeaderName))
	resp, err := s.escalationSvc.RunTick(ctx)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) RetryNotifications(c *gin.Context) {
	limit := defaultRetryBatch
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			AbortWithError(c, newValidationError("limit", "invalid_limit", "invalid limit"))
			return
		}
		limit = min(parsed, maxRetryBatch)
	}

	resp, err := s.notificationSvc.RetryPending(c.Request.Context(), limit)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListDossiers(c *gin.Context) {
	resp, err := s.recoverySvc.List(c.Request.Context(), c.Query("status"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetDossier(c *gin.Context) {
	resp, err := s.recoverySvc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) CloseDossier(c *gin.Context) {
	var req recoverydomain.CloseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.recoverySvc.Close(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// ExportDossiers renders the workbook fully before writing so a failure still maps to a JSON error.
func (s *Server) ExportDossiers(c *gin.Context) {
	var buf bytes.Buffer
	if err := s.recoverySvc.Export(c.Request.Context(), &buf); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="dossiers.xlsx"`)
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}
