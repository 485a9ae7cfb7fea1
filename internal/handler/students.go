package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"rollbook/internal/queue"
	"rollbook/internal/roster"
)

// ListStudents returns the caller's roster, optionally grouped by class.
func (h *Handler) ListStudents(c *gin.Context) {
	id, ok := actor(c)
	if !ok {
		return
	}
	list, err := h.students.List(c.Request.Context(), id.Subject)
	if err != nil {
		h.fail(c, err)
		return
	}
	if grouped, _ := strconv.ParseBool(c.Query("grouped")); grouped {
		groups := roster.GroupByClass(list)
		if groups == nil {
			groups = []roster.ClassGroup{}
		}
		c.JSON(http.StatusOK, gin.H{"groups": groups})
		return
	}
	if list == nil {
		list = []roster.Student{}
	}
	c.JSON(http.StatusOK, gin.H{"students": list})
}

// AddStudent adds a student owned by the caller.
func (h *Handler) AddStudent(c *gin.Context) {
	id, ok := actor(c)
	if !ok {
		return
	}
	var req roster.Fields
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, badBody(err))
		return
	}
	st, err := h.students.Add(c.Request.Context(), id.Subject, req)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.publish(c.Request.Context(), queue.TypeRosterChanged, queue.Change{Owner: id.Subject, RegisterNumber: st.RegisterNumber})
	c.JSON(http.StatusCreated, st)
}

// GetStudent returns one student.
func (h *Handler) GetStudent(c *gin.Context) {
	id, ok := actor(c)
	if !ok {
		return
	}
	st, err := h.students.Get(c.Request.Context(), id.Subject, c.Param("reg"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// UpdateStudent changes the mutable attributes of a student.
func (h *Handler) UpdateStudent(c *gin.Context) {
	id, ok := actor(c)
	if !ok {
		return
	}
	var req roster.Changes
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, badBody(err))
		return
	}
	st, err := h.students.Update(c.Request.Context(), id.Subject, c.Param("reg"), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	if !req.Empty() {
		h.publish(c.Request.Context(), queue.TypeRosterChanged, queue.Change{Owner: id.Subject, RegisterNumber: st.RegisterNumber})
	}
	c.JSON(http.StatusOK, st)
}

// DeleteStudent removes a student and its attendance. Requires ?confirm=true.
func (h *Handler) DeleteStudent(c *gin.Context) {
	id, ok := actor(c)
	if !ok {
		return
	}
	reg := c.Param("reg")
	if err := h.students.Delete(c.Request.Context(), id.Subject, reg, confirmed(c)); err != nil {
		h.fail(c, err)
		return
	}
	h.publish(c.Request.Context(), queue.TypeRosterChanged, queue.Change{Owner: id.Subject, RegisterNumber: reg})
	c.Status(http.StatusNoContent)
}

func confirmed(c *gin.Context) bool {
	ok, _ := strconv.ParseBool(c.Query("confirm"))
	return ok
}
