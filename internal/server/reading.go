package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/estatebill/internal/billingperiod"
	readingdomain "github.com/smallbiznis/estatebill/internal/reading/domain"
)

type recordReadingRequest struct {
	ApartmentID    string           `json:"apartment_id"`
	MeterID        string           `json:"meter_id"`
	BillingPeriod  string           `json:"billing_period"`
	CurrentReading *decimal.Decimal `json:"current_reading"`
	RecordedBy     string           `json:"recorded_by"`
}

func (s *Server) RecordReading(c *gin.Context) {
	var req recordReadingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if req.CurrentReading == nil {
		AbortWithError(c, newValidationError("current_reading", "invalid_current_reading", "current_reading is required"))
		return
	}

	reading, err := s.readingSvc.RecordReading(c.Request.Context(), readingdomain.RecordRequest{
		ApartmentID:    strings.TrimSpace(req.ApartmentID),
		MeterID:        strings.TrimSpace(req.MeterID),
		BillingPeriod:  strings.TrimSpace(req.BillingPeriod),
		CurrentReading: *req.CurrentReading,
		RecordedBy:     strings.TrimSpace(req.RecordedBy),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": reading})
}

func (s *Server) GetReadingProgress(c *gin.Context) {
	buildingID, err := parseSnowflakeID(c.Param("id"))
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_building_id", "invalid building id"))
		return
	}
	period, err := s.periodOrPrevious(c.Query("period"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	progress, err := s.readingSvc.GetProgress(c.Request.Context(), buildingID, period)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": progress})
}

// periodOrPrevious parses the period query, defaulting to the month before now.
func (s *Server) periodOrPrevious(value string) (billingperiod.Period, error) {
	period, err := parseOptionalPeriod(value)
	if err != nil {
		return billingperiod.Period{}, err
	}
	if period.IsZero() {
		period = billingperiod.Previous(s.clock.Now())
	}
	return period, nil
}
