package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/perkhub/internal/audit/domain"
	benefitdomain "github.com/smallbiznis/perkhub/internal/benefit/domain"
	companydomain "github.com/smallbiznis/perkhub/internal/company/domain"
	userdomain "github.com/smallbiznis/perkhub/internal/user/domain"
	"go.uber.org/zap"
)

func (s *Server) AdminListCompanies(c *gin.Context) {
	resp, err := s.companySvc.List(c.Request.Context(), strings.TrimSpace(c.Query("city")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) AdminCreateCompany(c *gin.Context) {
	var req companydomain.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.companySvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.auditAdmin(c, "company.create", "company", resp.ID.String())
	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) AdminListBenefits(c *gin.Context) {
	var query struct {
		Company string `form:"company"`
		Status  string `form:"status"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.benefitSvc.ListBenefits(c.Request.Context(), benefitdomain.AdminListRequest{
		Company: strings.TrimSpace(query.Company),
		Status:  strings.TrimSpace(query.Status),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) AdminCreateBenefit(c *gin.Context) {
	var req benefitdomain.CreateBenefitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.benefitSvc.CreateBenefit(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.auditAdmin(c, "benefit.create", "benefit", resp.ID.String())
	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) AdminUpdateBenefit(c *gin.Context) {
	var req benefitdomain.UpdateBenefitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.ID = strings.TrimSpace(c.Param("id"))

	resp, err := s.benefitSvc.UpdateBenefit(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.auditAdmin(c, "benefit.update", "benefit", resp.ID.String())
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) AdminDeleteBenefit(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if err := s.benefitSvc.DeleteBenefit(c.Request.Context(), id); err != nil {
		AbortWithError(c, err)
		return
	}

	s.auditAdmin(c, "benefit.delete", "benefit", id)
	c.Status(http.StatusNoContent)
}

func (s *Server) AdminListCategories(c *gin.Context) {
	resp, err := s.benefitSvc.ListCategories(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type createCategoryRequest struct {
	Name string `json:"name"`
}

func (s *Server) AdminCreateCategory(c *gin.Context) {
	var req createCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.benefitSvc.CreateCategory(c.Request.Context(), req.Name)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.auditAdmin(c, "category.create", "category", resp.ID.String())
	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) AdminCreateUser(c *gin.Context) {
	var req userdomain.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.userSvc.Register(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.auditAdmin(c, "user.create", "user", resp.ID.String())
	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) AdminListAuditLogs(c *gin.Context) {
	var req auditdomain.ListAuditLogRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.auditSvc.List(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// auditAdmin logs the action and persists it to the audit trail. Audit
// failures never fail the request that already succeeded.
func (s *Server) auditAdmin(c *gin.Context, action, targetType, targetID string) {
	principal, _ := principalFromContext(c)
	s.log.Info("admin action",
		zap.String("action", action),
		zap.String("target_id", targetID),
		zap.String("actor_id", principal.UserID.String()),
	)
	if s.auditSvc == nil {
		return
	}

	var metadata map[string]any
	if requestID := c.GetString("request_id"); requestID != "" {
		metadata = map[string]any{"request_id": requestID}
	}
	_ = s.auditSvc.Record(c.Request.Context(), auditdomain.Entry{
		ActorID:    principal.UserID,
		Action:     action,
		TargetType: targetType,
		TargetID:   targetID,
		IPAddress:  c.ClientIP(),
		UserAgent:  c.Request.UserAgent(),
		Metadata:   metadata,
	})
}
