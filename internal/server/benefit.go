package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	benefitdomain "github.com/smallbiznis/perkhub/internal/benefit/domain"
)

func (s *Server) ListBenefits(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var query struct {
		City     string `form:"city"`
		Category string `form:"category"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	city := strings.TrimSpace(query.City)
	if city == "" {
		// Default to the city on the profile.
		user, err := s.userSvc.GetByID(c.Request.Context(), userID)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		city = user.City
	}

	resp, err := s.benefitSvc.ListForUser(c.Request.Context(), benefitdomain.ListRequest{
		City:     city,
		Category: strings.TrimSpace(query.Category),
		UserID:   userID,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetBenefit(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	resp, err := s.benefitSvc.GetForUser(c.Request.Context(), strings.TrimSpace(c.Param("id")), userID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// GetMyRedemption returns the caller's outstanding token for the benefit, or null.
func (s *Server) GetMyRedemption(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	resp, err := s.benefitSvc.ActiveRedemption(c.Request.Context(), strings.TrimSpace(c.Param("id")), userID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ClaimBenefit(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	resp, err := s.benefitSvc.Claim(c.Request.Context(), strings.TrimSpace(c.Param("id")), userID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) ListClaimedBenefits(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	resp, err := s.benefitSvc.ListClaimed(c.Request.Context(), userID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetClaimedBenefit(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	resp, err := s.benefitSvc.GetClaimed(c.Request.Context(), strings.TrimSpace(c.Param("id")), userID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GenerateRedemptionToken(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	resp, err := s.benefitSvc.IssueToken(c.Request.Context(), strings.TrimSpace(c.Param("id")), userID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) ListRedemptionHistory(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	resp, err := s.benefitSvc.History(c.Request.Context(), userID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) Me(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	resp, err := s.userSvc.GetByID(c.Request.Context(), userID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
