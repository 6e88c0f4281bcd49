package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// PresentRedemption shows the merchant what a token grants before it is consumed.
func (s *Server) PresentRedemption(c *gin.Context) {
	resp, err := s.redeemSvc.Present(c.Request.Context(), c.Param("token"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ConfirmRedemption(c *gin.Context) {
	resp, err := s.redeemSvc.Confirm(c.Request.Context(), c.Param("token"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
