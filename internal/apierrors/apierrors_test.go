package apierrors

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"voice-server/internal/voicecall/processor"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestMapError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"missing destination", processor.ErrMissingDestination, http.StatusBadRequest, CodeMissingDestination},
		{"missing call sid", processor.ErrMissingCallSid, http.StatusBadRequest, CodeMissingCallSid},
		{"wrapped placement failure", fmt.Errorf("%w: 21211", processor.ErrCallPlacementFailed), http.StatusBadGateway, CodeTelephonyError},
		{"already an api error", BadRequest("CUSTOM", "custom"), http.StatusBadRequest, "CUSTOM"},
		{"unknown error", errors.New("pq: connection refused"), http.StatusInternalServerError, CodeInternalError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := MapError(tt.err)
			require.NotNil(t, got)
			assert.Equal(t, tt.wantStatus, got.StatusCode)
			assert.Equal(t, tt.wantCode, got.Code)
		})
	}

	assert.Nil(t, MapError(nil))
}

func TestRespondWithErrorSanitizesUnknownErrors(t *testing.T) {
	t.Parallel()
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/phone/calls", nil)

	RespondWithError(c, errors.New("secret dsn leaked"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "secret")

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, CodeInternalError, resp.Code)
}

type callRequest struct {
	To string `json:"to" binding:"required,e164"`
}

func bindAndRespond(body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/phone/calls", strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")

	var req callRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondWithValidationError(c, err)
	}
	return w
}

func TestRespondWithValidationError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		body        string
		wantMessage string
	}{
		{"missing field", `{}`, "To is required"},
		{"not e164", `{"to":"555-1234"}`, "To must be an E.164 phone number such as +15551234567"},
		{"broken json", `{"to":`, "Invalid request format. Please check your request body."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			w := bindAndRespond(tt.body)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, CodeInvalidInput, resp.Code)
			assert.Equal(t, tt.wantMessage, resp.Error)
		})
	}
}

func TestAPIErrorUnwrap(t *testing.T) {
	t.Parallel()
	cause := errors.New("boom")
	err := BadGateway(CodeTelephonyError, "upstream", cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "boom")
}
