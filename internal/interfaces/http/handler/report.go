package handler

import (
	"io"
	"time"

	billingapp "github.com/freelance/backend/internal/application/billing"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ReportHandler handles report endpoints
type ReportHandler struct {
	BaseHandler
	reportService *billingapp.ReportService
}

// NewReportHandler creates a new ReportHandler
func NewReportHandler(reportService *billingapp.ReportService, logger *zap.Logger) *ReportHandler {
	return &ReportHandler{
		BaseHandler:   BaseHandler{logger: logger},
		reportService: reportService,
	}
}

// monthlyQuery selects one calendar month
type monthlyQuery struct {
	Year  int `form:"year" binding:"required,min=1900,max=9999"`
	Month int `form:"month" binding:"required,min=1,max=12"`
}

// Generate aggregates billed, collected and outstanding amounts per
// client and project
// GET /reports?from=&to=&client_id=&project_id=&status=
func (h *ReportHandler) Generate(c *gin.Context) {
	req, ok := h.reportRequest(c)
	if !ok {
		return
	}

	report, err := h.reportService.Generate(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, report)
}

// Monthly summarises one month
// GET /reports/monthly?year=&month=
func (h *ReportHandler) Monthly(c *gin.Context) {
	var q monthlyQuery
	if !h.bindQuery(c, &q) {
		return
	}

	summary, err := h.reportService.Monthly(c.Request.Context(), q.Year, time.Month(q.Month))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, summary)
}

// ClientRevenue ranks clients by collected revenue
// GET /reports/client-revenue
func (h *ReportHandler) ClientRevenue(c *gin.Context) {
	req, ok := h.reportRequest(c)
	if !ok {
		return
	}

	ranked, err := h.reportService.ClientRevenue(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, ranked)
}

// Outstanding lists unpaid invoices grouped by client
// GET /reports/outstanding?client_id=
func (h *ReportHandler) Outstanding(c *gin.Context) {
	clientID, ok := h.optionalUUIDQuery(c, "client_id")
	if !ok {
		return
	}

	summary, err := h.reportService.Outstanding(c.Request.Context(), clientID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, summary)
}

// ExportCSV downloads the report as CSV
// GET /reports/export
func (h *ReportHandler) ExportCSV(c *gin.Context) {
	req, ok := h.reportRequest(c)
	if !ok {
		return
	}

	h.sendCSV(c, "report.csv", func(w io.Writer) error {
		return h.reportService.ExportCSV(c.Request.Context(), w, req)
	})
}

func (h *ReportHandler) reportRequest(c *gin.Context) (billingapp.ReportRequest, bool) {
	var req billingapp.ReportRequest
	if !h.bindQuery(c, &req) {
		return req, false
	}
	clientID, ok := h.optionalUUIDQuery(c, "client_id")
	if !ok {
		return req, false
	}
	projectID, ok := h.optionalUUIDQuery(c, "project_id")
	if !ok {
		return req, false
	}
	req.ClientID = clientID
	req.ProjectID = projectID
	return req, true
}
