package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// ResolveTariff returns the single active price rule a building bills for a fee type.
func (s *Server) ResolveTariff(c *gin.Context) {
	buildingID, err := parseSnowflakeID(c.Param("id"))
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_building_id", "invalid building id"))
		return
	}
	feeType := strings.TrimSpace(c.Param("fee_type"))
	if feeType == "" {
		AbortWithError(c, newValidationError("fee_type", "invalid_fee_type", "invalid fee type"))
		return
	}

	tariff, err := s.tariffSvc.Resolve(c.Request.Context(), buildingID, feeType)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": tariff})
}
