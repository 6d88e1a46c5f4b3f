package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/courtside/tournament-engine/services"
)

func TestMapServiceErrorToHTTP(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"tournament not found", services.ErrTournamentNotFound, http.StatusNotFound},
		{"match not found", services.ErrMatchNotFound, http.StatusNotFound},
		{"duplicate registration", services.ErrRegistrationConflict, http.StatusConflict},
		{"tournament full", services.ErrTournamentFull, http.StatusConflict},
		{"result already recorded", services.ErrMatchAlreadyCompleted, http.StatusConflict},
		{"invalid transition", services.ErrTournamentInvalidStatusTransition, http.StatusBadRequest},
		{"invalid winner", services.ErrInvalidWinner, http.StatusBadRequest},
		{"slots incomplete", services.ErrMatchSlotsIncomplete, http.StatusBadRequest},
		{"bad credentials", services.ErrAuthInvalidCredentials, http.StatusUnauthorized},
		{"not the organizer", services.ErrForbiddenOperation, http.StatusForbidden},
		{"registration closed", services.ErrRegistrationNotOpen, http.StatusForbidden},
		{"unknown error", assert.AnError, http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			mapServiceErrorToHTTP(rec, req, tc.err)

			assert.Equal(t, tc.status, rec.Code)
			assert.Contains(t, rec.Body.String(), "error")
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		})
	}
}

func TestReadJSON(t *testing.T) {
	type payload struct {
		Name string `json:"name"`
	}

	newReq := func(body string) (*httptest.ResponseRecorder, *http.Request) {
		return httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	}

	t.Run("valid body", func(t *testing.T) {
		w, r := newReq(`{"name":"ok"}`)
		var dst payload
		require.NoError(t, readJSON(w, r, &dst))
		assert.Equal(t, "ok", dst.Name)
	})

	t.Run("unknown field", func(t *testing.T) {
		w, r := newReq(`{"name":"ok","bogus":1}`)
		var dst payload
		err := readJSON(w, r, &dst)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown key")
	})

	t.Run("empty body", func(t *testing.T) {
		w, r := newReq("")
		var dst payload
		err := readJSON(w, r, &dst)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "must not be empty")
	})

	t.Run("trailing garbage", func(t *testing.T) {
		w, r := newReq(`{"name":"ok"}{"name":"again"}`)
		var dst payload
		err := readJSON(w, r, &dst)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "single JSON value")
	})

	t.Run("malformed", func(t *testing.T) {
		w, r := newReq(`{"name":`)
		var dst payload
		assert.Error(t, readJSON(w, r, &dst))
	})
}
