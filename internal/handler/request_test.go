package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greenpath/greenpath/internal/apperror"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantField string
		wantMsg   string
		wantMulti []string
	}{
		{name: "empty body", body: "", wantMsg: "request body is required"},
		{name: "broken json", body: `{"subject":`, wantMsg: "request body is not valid JSON"},
		{name: "rating out of range", body: `{"subject":"s","message":"m","rating":6}`, wantField: "rating", wantMsg: "rating must be at most 5"},
		{name: "several problems", body: `{"rating":3}`, wantMulti: []string{"subject", "message"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/api/feedback", strings.NewReader(tt.body))
			var req feedbackRequest
			err := decode(httptest.NewRecorder(), r, &req)
			require.Error(t, err)
			assert.True(t, errors.Is(err, apperror.ErrValidation))

			var appErr *apperror.AppError
			require.True(t, errors.As(err, &appErr))
			if tt.wantMsg != "" {
				assert.Equal(t, tt.wantMsg, appErr.Message)
			}
			assert.Equal(t, tt.wantField, appErr.Field)
			for _, f := range tt.wantMulti {
				assert.Contains(t, appErr.Fields, f)
			}
		})
	}
}

func TestDecodeNestedFieldNames(t *testing.T) {
	type nested struct {
		Inner struct {
			City string `json:"city" validate:"required"`
		} `json:"location"`
	}
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"location":{}}`))
	var v nested
	err := decode(httptest.NewRecorder(), r, &v)

	var appErr *apperror.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "location.city", appErr.Field)
}

func TestDecodeRejectsHugeBodies(t *testing.T) {
	big := `{"subject":"` + strings.Repeat("a", maxBodyBytes) + `"}`
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(big))
	var req feedbackRequest
	err := decode(httptest.NewRecorder(), r, &req)

	var appErr *apperror.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "request body is too large", appErr.Message)
}

func TestPathID(t *testing.T) {
	r := chi.NewRouter()
	var got int64
	var gotErr error
	r.Get("/things/{id}", func(_ http.ResponseWriter, r *http.Request) {
		got, gotErr = pathID(r, "id")
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/things/42", nil))
	require.NoError(t, gotErr)
	assert.Equal(t, int64(42), got)

	for _, bad := range []string{"abc", "0", "-3"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/things/"+bad, nil))
		assert.True(t, errors.Is(gotErr, apperror.ErrValidation), bad)
	}
}

func TestQueryBool(t *testing.T) {
	for raw, want := range map[string]bool{"true": true, "1": true, "false": false, "yes": false, "": false} {
		r := httptest.NewRequest(http.MethodGet, "/api/events?upcoming="+raw, nil)
		assert.Equal(t, want, queryBool(r, "upcoming"), raw)
	}
}

func TestWriteError(t *testing.T) {
	tests := []struct {
		err        error
		wantStatus int
		wantType   string
	}{
		{apperror.ValidationFailed("title", "title is required"), http.StatusBadRequest, "validation_error"},
		{apperror.Unauthorized("authentication required"), http.StatusUnauthorized, "unauthorized"},
		{apperror.Forbidden("dealers cannot see donations"), http.StatusForbidden, "forbidden"},
		{apperror.NotFound("event", 9), http.StatusNotFound, "not_found"},
		{apperror.InvalidTransition("waste report", "pending", "completed"), http.StatusConflict, "conflict"},
		{errors.New("sqlite: disk I/O error"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tt := range tests {
		t.Run(tt.wantType, func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeError(rec, slog.New(slog.DiscardHandler), tt.err)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			assert.Contains(t, rec.Body.String(), `"error":"`+tt.wantType+`"`)
		})
	}

	t.Run("internal details stay internal", func(t *testing.T) {
		rec := httptest.NewRecorder()
		writeError(rec, slog.New(slog.DiscardHandler), errors.New("sqlite: disk I/O error"))
		assert.NotContains(t, rec.Body.String(), "sqlite")
	})
}
