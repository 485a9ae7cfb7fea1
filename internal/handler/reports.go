package handler

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"rollbook/internal/apperr"
	"rollbook/internal/metrics"
	"rollbook/internal/report"
)

// MonthlyReport renders the caller's monthly summary as a download.
func (h *Handler) MonthlyReport(c *gin.Context) {
	id, ok := actor(c)
	if !ok {
		return
	}
	month, err := strconv.Atoi(strings.TrimSpace(c.Query("month")))
	if err != nil {
		h.fail(c, apperr.Invalid("month", "must be a number between 1 and 12"))
		return
	}
	year, err := strconv.Atoi(strings.TrimSpace(c.Query("year")))
	if err != nil {
		h.fail(c, apperr.Invalid("year", "must be a 4-digit year"))
		return
	}
	format, err := report.ParseFormat(c.Query("format"))
	if err != nil {
		h.fail(c, err)
		return
	}

	summary, err := h.reports.Monthly(c.Request.Context(), id.Subject, month, year)
	if err != nil {
		h.fail(c, err)
		return
	}
	var buf bytes.Buffer
	if err := report.Render(&buf, summary, format); err != nil {
		h.fail(c, err)
		return
	}
	metrics.ReportsGenerated.WithLabelValues(string(format)).Inc()

	if format != report.FormatJSON {
		c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.%s"`, summary.Filename(), format))
	}
	c.Data(http.StatusOK, format.ContentType(), buf.Bytes())
}
