package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Classify runs the classifier on a posted message without archiving
// anything or touching the ledger.
func (h *Handlers) Classify(c *gin.Context) {
	var req ClassifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "validation_error", err.Error())
		return
	}

	decision := h.classifier.Classify(req.Subject, req.Body, req.Sender, req.Attachments)
	c.JSON(http.StatusOK, ClassifyResponse{
		Decision:  decision,
		Threshold: h.classifier.Threshold(),
	})
}
