package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/campuskit/exam-scheduler-api/pkg/errors"
)

func newTestContext(t *testing.T) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	return c, rec
}

func TestJSONEnvelope(t *testing.T) {
	c, rec := newTestContext(t)

	JSON(c, http.StatusOK, gin.H{"scheduleId": "sched-1"}, map[string]interface{}{"version": 2})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))

	var body map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body, "data")
	assert.Contains(t, body, "meta")
	assert.NotContains(t, body, "error")
	assert.NotContains(t, body, "pagination")
}

func TestErrorEnvelope(t *testing.T) {
	c, rec := newTestContext(t)

	Error(c, appErrors.ErrNotFound)

	require.Equal(t, http.StatusNotFound, rec.Code)

	var body map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body, "error")
	assert.NotContains(t, body, "data")
}
