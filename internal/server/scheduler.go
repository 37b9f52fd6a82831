package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/estatebill/internal/scheduler"
)

// RunScheduler runs one selection and processing pass at the current instant. Failed
// buildings are reported per building in the summary.
func (s *Server) RunScheduler(c *gin.Context) {
	if s.scheduler == nil {
		AbortWithError(c, ErrServiceUnavailable)
		return
	}

	summary, err := s.scheduler.RunOnce(c.Request.Context(), s.clock.Now())
	if err != nil && !(errors.Is(err, scheduler.ErrBuildingFailed) && summary != nil) {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": summary})
}
