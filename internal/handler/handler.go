package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"invoice-scanner-go/internal/classifier"
	"invoice-scanner-go/internal/model"
)

// SchedulerControl is the part of the scheduler the API drives
type SchedulerControl interface {
	Start() error
	Stop() error
	IsRunning() bool
	RunOnce(ctx context.Context) (*model.Summary, error)
	GetNextRun() time.Time
	GetLastRun() time.Time
	LastError() error
}

// DecisionStore reads the decision audit log
type DecisionStore interface {
	Ping(ctx context.Context) error
	ListDecisions(ctx context.Context, limit int, acceptedOnly bool) ([]model.ScanDecision, error)
	GetDecision(ctx context.Context, id uint) (*model.ScanDecision, error)
}

// Handlers contains all HTTP handlers
type Handlers struct {
	classifier *classifier.Classifier
	scheduler  SchedulerControl
	decisions  DecisionStore
	summaryDir string
	gatherer   prometheus.Gatherer
}

// NewHandlers creates new HTTP handlers. decisions is nil when no database
// is configured.
func NewHandlers(cls *classifier.Classifier, scheduler SchedulerControl, decisions DecisionStore, summaryDir string, gatherer prometheus.Gatherer) *Handlers {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return &Handlers{
		classifier: cls,
		scheduler:  scheduler,
		decisions:  decisions,
		summaryDir: summaryDir,
		gatherer:   gatherer,
	}
}

// SetupRoutes sets up all HTTP routes
func (h *Handlers) SetupRoutes(router *gin.Engine) {
	router.GET("/healthz", h.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{})))

	api := router.Group("/api/v1")
	{
		api.POST("/classify", h.Classify)

		api.GET("/summaries", h.ListSummaries)
		api.GET("/summaries/latest", h.LatestSummary)
		api.GET("/summaries/:name", h.GetSummary)

		api.GET("/decisions", h.GetDecisions)
		api.GET("/decisions/:id", h.GetDecision)

		api.POST("/scheduler/start", h.StartScheduler)
		api.POST("/scheduler/stop", h.StopScheduler)
		api.POST("/scheduler/run-once", h.RunOnce)
		api.GET("/scheduler/status", h.GetSchedulerStatus)
	}
}

// HealthCheck handles health check requests
func (h *Handlers) HealthCheck(c *gin.Context) {
	response := HealthResponse{
		Status:    "ok",
		Timestamp: time.Now(),
		Database:  "disabled",
		Scheduler: make(map[string]string),
	}

	if h.decisions != nil {
		response.Database = "ok"
		if err := h.decisions.Ping(c.Request.Context()); err != nil {
			response.Status = "error"
			response.Database = "error"
			logrus.Errorf("Database health check failed: %v", err)
		}
	}

	if h.scheduler.IsRunning() {
		response.Scheduler["state"] = "running"
		response.Scheduler["next_run"] = h.scheduler.GetNextRun().Format(time.RFC3339)
	} else {
		response.Scheduler["state"] = "stopped"
	}
	if last := h.scheduler.GetLastRun(); !last.IsZero() {
		response.Scheduler["last_run"] = last.Format(time.RFC3339)
	}
	if err := h.scheduler.LastError(); err != nil {
		response.Scheduler["last_error"] = err.Error()
	}

	statusCode := http.StatusOK
	if response.Status == "error" {
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, response)
}

func abortWithError(c *gin.Context, code int, kind, message string) {
	c.JSON(code, ErrorResponse{
		Error:   kind,
		Message: message,
		Code:    code,
	})
}
