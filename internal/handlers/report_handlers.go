package handlers

import (
	"bytes"
	"io"
	"net/http"
	"time"

	"venue_ops_backend/internal/services"

	"github.com/gin-gonic/gin"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ReportHandler serves stock and task reports.
type ReportHandler struct {
	reportService services.ReportService
}

// NewReportHandler creates a new ReportHandler.
func NewReportHandler(rs services.ReportService) *ReportHandler {
	return &ReportHandler{reportService: rs}
}

// GetStockSummary provides the stock dashboard numbers.
func (h *ReportHandler) GetStockSummary(c *gin.Context) {
	summary, err := h.reportService.StockSummary(c.Request.Context())
	if err != nil {
		respondError(c, err, "Failed to build stock summary.")
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (h *ReportHandler) GetStockValuation(c *gin.Context) {
	rows, err := h.reportService.StockValuation(c.Request.Context())
	if err != nil {
		respondError(c, err, "Failed to build stock valuation.")
		return
	}
	c.JSON(http.StatusOK, rows)
}

// DownloadStockValuation streams the valuation as an .xlsx attachment.
func (h *ReportHandler) DownloadStockValuation(c *gin.Context) {
	sendWorkbook(c, "stock-valuation", "Failed to export stock valuation.", func(w io.Writer) error {
		return h.reportService.WriteValuationWorkbook(c.Request.Context(), w)
	})
}

// sendWorkbook renders a workbook into memory first so a failure can still answer with JSON.
func sendWorkbook(c *gin.Context, name, fallbackMsg string, write func(io.Writer) error) {
	var buf bytes.Buffer
	if err := write(&buf); err != nil {
		respondError(c, err, fallbackMsg)
		return
	}
	filename := name + "-" + time.Now().UTC().Format("2006-01-02") + ".xlsx"
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

func wantsWorkbook(c *gin.Context) bool {
	return c.Query("format") == "xlsx"
}

// CreateTaskReport reports on tasks picked by id and filters. ?format=xlsx downloads a workbook.
func (h *ReportHandler) CreateTaskReport(c *gin.Context) {
	actor, ok := principal(c)
	if !ok {
		return
	}
	var req services.TaskReportRequest
	if c.Request.ContentLength != 0 && !bindJSON(c, &req) {
		return
	}
	report, err := h.reportService.TaskReport(c.Request.Context(), actor, req)
	if err != nil {
		respondError(c, err, "Failed to generate task report.")
		return
	}
	if wantsWorkbook(c) {
		sendWorkbook(c, "task-report", "Failed to export task report.", func(w io.Writer) error {
			return services.WriteTaskReportWorkbook(w, report)
		})
		return
	}
	c.JSON(http.StatusOK, report)
}

// GetUserReport reports on one user between ?dateFrom and ?dateTo.
func (h *ReportHandler) GetUserReport(c *gin.Context) {
	actor, ok := principal(c)
	if !ok {
		return
	}
	userID, ok := idParam(c, "userId")
	if !ok {
		return
	}
	report, err := h.reportService.UserReport(c.Request.Context(), actor, userID, c.Query("dateFrom"), c.Query("dateTo"))
	if err != nil {
		respondError(c, err, "Failed to generate user report.")
		return
	}
	if wantsWorkbook(c) {
		sendWorkbook(c, "user-report-"+c.Param("userId"), "Failed to export user report.", func(w io.Writer) error {
			return services.WriteUserReportWorkbook(w, report)
		})
		return
	}
	c.JSON(http.StatusOK, report)
}

// CreateSummaryReport builds the management overview. Management only.
func (h *ReportHandler) CreateSummaryReport(c *gin.Context) {
	actor, ok := principal(c)
	if !ok {
		return
	}
	var req services.SummaryReportRequest
	if c.Request.ContentLength != 0 && !bindJSON(c, &req) {
		return
	}
	report, err := h.reportService.SummaryReport(c.Request.Context(), actor, req)
	if err != nil {
		respondError(c, err, "Failed to generate summary report.")
		return
	}
	if wantsWorkbook(c) {
		sendWorkbook(c, "summary-report", "Failed to export summary report.", func(w io.Writer) error {
			return services.WriteSummaryWorkbook(w, report)
		})
		return
	}
	c.JSON(http.StatusOK, report)
}
