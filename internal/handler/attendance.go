package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"rollbook/internal/apperr"
	"rollbook/internal/attendance"
	"rollbook/internal/marking"
	"rollbook/internal/metrics"
	"rollbook/internal/queue"
)

type sheetResponse struct {
	Date   string            `json:"date"`
	Saved  bool              `json:"saved"`
	Marked int               `json:"marked,omitempty"`
	Filter attendance.Filter `json:"filter"`
	Rows   []marking.Row     `json:"rows"`
	Counts attendance.Counts `json:"counts"`
}

func sheetView(s *marking.Sheet, f attendance.Filter) sheetResponse {
	rows := s.Rows(f)
	if rows == nil {
		rows = []marking.Row{}
	}
	return sheetResponse{
		Date:   s.Date().Format(attendance.DateLayout),
		Filter: f,
		Rows:   rows,
		Counts: s.Counts(f),
	}
}

// GetSheet returns the marking sheet for a date with the committed statuses.
func (h *Handler) GetSheet(c *gin.Context) {
	id, ok := actor(c)
	if !ok {
		return
	}
	date, err := attendance.ParseDate(c.Param("date"))
	if err != nil {
		h.fail(c, err)
		return
	}
	f, err := queryFilter(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	sheet, err := marking.Open(c.Request.Context(), id.Subject, date, h.students, h.records)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, sheetView(sheet, f))
}

type markAllRequest struct {
	Status attendance.Status `json:"status"`
	Filter attendance.Filter `json:"filter"`
}

type saveRequest struct {
	// Entries replaces the working copy when present. Students left out
	// become unmarked.
	Entries map[string]attendance.Status `json:"entries"`
	MarkAll *markAllRequest              `json:"mark_all"`
}

// SaveSheet applies the submitted edits to the date's sheet and saves it.
// Entries are applied before mark_all.
func (h *Handler) SaveSheet(c *gin.Context) {
	id, ok := actor(c)
	if !ok {
		return
	}
	date, err := attendance.ParseDate(c.Param("date"))
	if err != nil {
		h.fail(c, err)
		return
	}
	f, err := queryFilter(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	var req saveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, badBody(err))
		return
	}
	if req.Entries == nil && req.MarkAll == nil {
		h.fail(c, apperr.Invalid("entries", "entries or mark_all is required"))
		return
	}
	if req.MarkAll != nil {
		if err := req.MarkAll.Filter.Validate(); err != nil {
			h.fail(c, err)
			return
		}
	}

	ctx := c.Request.Context()
	sheet, err := marking.Open(ctx, id.Subject, date, h.students, h.records)
	if err != nil {
		h.fail(c, err)
		return
	}
	if req.Entries != nil {
		if err := sheet.Replace(req.Entries); err != nil {
			h.fail(c, err)
			return
		}
	}
	marked := 0
	if req.MarkAll != nil {
		if marked, err = sheet.MarkAll(req.MarkAll.Filter, req.MarkAll.Status); err != nil {
			h.fail(c, err)
			return
		}
	}

	err = sheet.Save(ctx)
	switch {
	case errors.Is(err, marking.ErrNotDirty):
		metrics.AttendanceSaves.WithLabelValues("unchanged").Inc()
	case err != nil:
		metrics.AttendanceSaves.WithLabelValues(metrics.Outcome(err)).Inc()
		h.fail(c, err)
		return
	default:
		metrics.AttendanceSaves.WithLabelValues(metrics.Outcome(nil)).Inc()
		h.publish(ctx, queue.TypeAttendanceSaved, queue.Change{Owner: id.Subject, Date: sheet.Date().Format(attendance.DateLayout)})
	}

	resp := sheetView(sheet, f)
	resp.Saved = err == nil
	resp.Marked = marked
	c.JSON(http.StatusOK, resp)
}

// DayRecords returns the read-only record view of a date.
func (h *Handler) DayRecords(c *gin.Context) {
	id, ok := actor(c)
	if !ok {
		return
	}
	date, err := attendance.ParseDate(c.Param("date"))
	if err != nil {
		h.fail(c, err)
		return
	}
	f, err := queryFilter(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	view, err := h.viewer.Day(c.Request.Context(), id.Subject, date, f)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// DeleteFromRecords deletes a student from the record view and returns the
// refreshed view. Requires ?confirm=true.
func (h *Handler) DeleteFromRecords(c *gin.Context) {
	id, ok := actor(c)
	if !ok {
		return
	}
	date, err := attendance.ParseDate(c.Param("date"))
	if err != nil {
		h.fail(c, err)
		return
	}
	f, err := queryFilter(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	ctx := c.Request.Context()
	reg := c.Param("reg")
	if err := h.students.Delete(ctx, id.Subject, reg, confirmed(c)); err != nil {
		h.fail(c, err)
		return
	}
	h.publish(ctx, queue.TypeRosterChanged, queue.Change{Owner: id.Subject, RegisterNumber: reg})

	view, err := h.viewer.Day(ctx, id.Subject, date, f)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}
