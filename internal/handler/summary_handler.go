package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"invoice-scanner-go/internal/scanner"
)

// ListSummaries returns the names of all scan summaries, newest first
func (h *Handlers) ListSummaries(c *gin.Context) {
	names, err := scanner.ListSummaries(h.summaryDir)
	if err != nil {
		logrus.Errorf("Failed to list summaries: %v", err)
		abortWithError(c, http.StatusInternalServerError, "storage_error", "Failed to list summaries")
		return
	}
	c.JSON(http.StatusOK, gin.H{"summaries": names})
}

// LatestSummary returns the newest scan summary
func (h *Handlers) LatestSummary(c *gin.Context) {
	names, err := scanner.ListSummaries(h.summaryDir)
	if err != nil {
		logrus.Errorf("Failed to list summaries: %v", err)
		abortWithError(c, http.StatusInternalServerError, "storage_error", "Failed to list summaries")
		return
	}
	if len(names) == 0 {
		abortWithError(c, http.StatusNotFound, "not_found", "No scan has completed yet")
		return
	}
	h.writeSummary(c, names[0])
}

// GetSummary returns one scan summary by file name
func (h *Handlers) GetSummary(c *gin.Context) {
	h.writeSummary(c, c.Param("name"))
}

func (h *Handlers) writeSummary(c *gin.Context, name string) {
	summary, err := scanner.ReadSummary(h.summaryDir, name)
	if errors.Is(err, scanner.ErrSummaryNotFound) {
		abortWithError(c, http.StatusNotFound, "not_found", "Summary not found")
		return
	}
	if err != nil {
		logrus.Errorf("Failed to read summary %s: %v", name, err)
		abortWithError(c, http.StatusInternalServerError, "storage_error", "Failed to read summary")
		return
	}
	c.JSON(http.StatusOK, summary)
}
