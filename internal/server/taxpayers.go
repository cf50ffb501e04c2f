package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	taxpayerdomain "github.com/smallbiznis/redevance/internal/taxpayer/domain"
	"github.com/smallbiznis/redevance/pkg/db/pagination"
)

type listTaxpayersQuery struct {
	pagination.Pagination
	Status   string `form:"status"`
	ZoneCode string `form:"zone_code"`
}

func (s *Server) RegisterTaxpayer(c *gin.Context) {
	var req taxpayerdomain.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.taxpayerSvc.Register(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) ListTaxpayers(c *gin.Context) {
	var query listTaxpayersQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.taxpayerSvc.List(c.Request.Context(), taxpayerdomain.ListRequest{
		Pagination: pagination.Pagination{
			PageToken: strings.TrimSpace(query.PageToken),
			PageSize:  query.PageSize,
		},
		Status:   strings.TrimSpace(query.Status),
		ZoneCode: strings.TrimSpace(query.ZoneCode),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.Taxpayers, "page_info": resp.PageInfo})
}

func (s *Server) GetTaxpayer(c *gin.Context) {
	resp, err := s.taxpayerSvc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) UpdateTaxpayer(c *gin.Context) {
	var req taxpayerdomain.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.ID = c.Param("id")

	resp, err := s.taxpayerSvc.UpdateProfile(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DeactivateTaxpayer(c *gin.Context) {
	resp, err := s.taxpayerSvc.Deactivate(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ResolveCompliance(c *gin.Context) {
	resp, err := s.complianceSvc.Resolve(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListTariffs(c *gin.Context) {
	resp, err := s.tariffSvc.List(c.Request.Context(), strings.TrimSpace(c.Query("zone_class")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
