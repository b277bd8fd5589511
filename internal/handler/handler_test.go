package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campusconnect/internal/apperr"
	"campusconnect/internal/attendance"
	"campusconnect/internal/student"
)

func errorStatus(t *testing.T, err error) int {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	writeError(c, err)
	return w.Code
}

func TestWriteErrorMapping(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, errorStatus(t, apperr.NewValidationError("bad input")))
	assert.Equal(t, http.StatusUnprocessableEntity, errorStatus(t, apperr.NewReferenceError("department", "Astrology", 3)))
	assert.Equal(t, http.StatusConflict, errorStatus(t, apperr.NewConflictError("stu-1/cs101/2026-01-05", "duplicate")))
	assert.Equal(t, http.StatusLocked, errorStatus(t, apperr.NewLockedRecordError("rec-1")))
	assert.Equal(t, http.StatusNotFound, errorStatus(t, attendance.ErrNotFound))
	assert.Equal(t, http.StatusNotFound, errorStatus(t, student.ErrNotFound))
}

func TestParseDate(t *testing.T) {
	d, err := parseDate("2026-03-10")
	require.NoError(t, err)
	assert.Equal(t, 2026, d.Year())

	zero, err := parseDate("")
	require.NoError(t, err)
	assert.True(t, zero.IsZero())

	_, err = parseDate("10/03/2026")
	var verr *apperr.ValidationError
	require.ErrorAs(t, err, &verr)
}
