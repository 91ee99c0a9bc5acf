package controllers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ArtJustine/scheduler-sub001/scheduler"
	"github.com/ArtJustine/scheduler-sub001/utils"
)

// Sweep runs one publishing pass.
type Sweep interface {
	Run(ctx context.Context) (*scheduler.Report, error)
}

// CronController exposes the sweep to an external scheduler.
type CronController struct {
	sweep Sweep
}

func NewCronController(sweep Sweep) *CronController {
	return &CronController{sweep: sweep}
}

// Publish runs one sweep and returns its report.
func (c *CronController) Publish(ctx *gin.Context) {
	report, err := c.sweep.Run(ctx.Request.Context())
	if errors.Is(err, scheduler.ErrSweepInProgress) {
		utils.Error(ctx, http.StatusConflict, 40950, err.Error())
		return
	}
	if err != nil {
		utils.Logger.Error("cron sweep", zap.Error(err))
		utils.Error(ctx, http.StatusInternalServerError, 50050, "sweep failed")
		return
	}
	utils.Success(ctx, report)
}
