package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"invoice-scanner-go/internal/model"
	"invoice-scanner-go/internal/repository"
)

// GetDecisions returns the newest audited decisions
func (h *Handlers) GetDecisions(c *gin.Context) {
	if !h.requireDatabase(c) {
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if limit < 1 || limit > 500 {
		limit = 50
	}
	acceptedOnly := c.Query("accepted") == "true"

	rows, err := h.decisions.ListDecisions(c.Request.Context(), limit, acceptedOnly)
	if err != nil {
		logrus.Errorf("Failed to list decisions: %v", err)
		abortWithError(c, http.StatusInternalServerError, "database_error", "Failed to fetch decisions")
		return
	}

	responses := make([]DecisionResponse, 0, len(rows))
	for _, row := range rows {
		responses = append(responses, toDecisionResponse(row))
	}
	c.JSON(http.StatusOK, gin.H{
		"decisions": responses,
		"limit":     limit,
	})
}

// GetDecision returns one audited decision
func (h *Handlers) GetDecision(c *gin.Context) {
	if !h.requireDatabase(c) {
		return
	}

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "invalid_id", "Invalid decision ID")
		return
	}

	row, err := h.decisions.GetDecision(c.Request.Context(), uint(id))
	if errors.Is(err, repository.ErrNotFound) {
		abortWithError(c, http.StatusNotFound, "not_found", "Decision not found")
		return
	}
	if err != nil {
		logrus.Errorf("Failed to fetch decision %d: %v", id, err)
		abortWithError(c, http.StatusInternalServerError, "database_error", "Failed to fetch decision")
		return
	}
	c.JSON(http.StatusOK, toDecisionResponse(*row))
}

func (h *Handlers) requireDatabase(c *gin.Context) bool {
	if h.decisions == nil {
		abortWithError(c, http.StatusServiceUnavailable, "database_disabled", "Decision log requires database.enabled")
		return false
	}
	return true
}

func toDecisionResponse(row model.ScanDecision) DecisionResponse {
	return DecisionResponse{
		ID:            row.ID,
		ScanID:        row.ScanID,
		MessageID:     row.MessageID,
		Subject:       row.Subject,
		Sender:        row.Sender,
		Accepted:      row.Accepted,
		Reason:        row.Reason,
		Rationale:     row.Rationale,
		Confidence:    row.Confidence,
		Identifiers:   decodeList(row.Identifiers),
		Keywords:      decodeList(row.Keywords),
		ArchivedPaths: decodeList(row.ArchivedPaths),
		CreatedAt:     row.CreatedAt,
	}
}

func decodeList(raw string) []string {
	out := []string{}
	if raw == "" {
		return out
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return []string{}
	}
	return out
}
