package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"invoice-scanner-go/internal/scanner"
)

// StartScheduler starts the periodic scan scheduler
func (h *Handlers) StartScheduler(c *gin.Context) {
	if err := h.scheduler.Start(); err != nil {
		abortWithError(c, http.StatusInternalServerError, "scheduler_error", "Failed to start scheduler: "+err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Scheduler started successfully",
		"status":  "running",
	})
}

// StopScheduler stops the periodic scan scheduler
func (h *Handlers) StopScheduler(c *gin.Context) {
	if err := h.scheduler.Stop(); err != nil {
		abortWithError(c, http.StatusInternalServerError, "scheduler_error", "Failed to stop scheduler")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Scheduler stopped successfully",
		"status":  "stopped",
	})
}

// RunOnce runs one scan and returns its summary
func (h *Handlers) RunOnce(c *gin.Context) {
	summary, err := h.scheduler.RunOnce(c.Request.Context())
	if errors.Is(err, scanner.ErrScanInProgress) {
		abortWithError(c, http.StatusConflict, "scan_in_progress", "A scan is already running")
		return
	}
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, "scan_error", err.Error())
		return
	}

	c.JSON(http.StatusOK, summary)
}

// GetSchedulerStatus returns the current scheduler status
func (h *Handlers) GetSchedulerStatus(c *gin.Context) {
	status := "stopped"
	if h.scheduler.IsRunning() {
		status = "running"
	}

	response := gin.H{
		"status":   status,
		"next_run": h.scheduler.GetNextRun(),
		"last_run": h.scheduler.GetLastRun(),
	}
	if err := h.scheduler.LastError(); err != nil {
		response["last_error"] = err.Error()
	}
	c.JSON(http.StatusOK, response)
}
