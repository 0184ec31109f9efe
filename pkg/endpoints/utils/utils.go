package utils

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/mpapenbr/trackline/log"
	"github.com/mpapenbr/trackline/pkg/repository/api"
	"github.com/mpapenbr/trackline/pkg/service"
	"github.com/mpapenbr/trackline/pkg/trackdoc"
)

const (
	tokenHeader  = "api-token"
	maxBodyBytes = 8 << 20
)

var (
	ErrBadRequest       = errors.New("bad request")
	ErrPermissionDenied = errors.New("permission denied")
)

type errorResponse struct {
	Error string `json:"error"`
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Default().Named("http").Warn("could not write response", log.ErrorField(err))
	}
}

// ReadJSON decodes the request body into v.
func ReadJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %w", ErrBadRequest, err)
	}
	return nil
}

// StatusOf maps errors of the service layer to http status codes.
func StatusOf(err error) int {
	switch {
	case errors.Is(err, api.ErrNotFound), errors.Is(err, service.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, service.ErrInvalidTrack),
		errors.Is(err, trackdoc.ErrInvalidDocument),
		errors.Is(err, trackdoc.ErrNoBoundaries),
		errors.Is(err, trackdoc.ErrUnsupportedSchema):
		return http.StatusBadRequest
	case errors.Is(err, ErrPermissionDenied):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusOf(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		log.Default().Named("http").Error("request failed",
			log.String("method", r.Method),
			log.String("path", r.URL.Path),
			log.ErrorField(err))
		msg = http.StatusText(status)
	}
	WriteJSON(w, status, errorResponse{Error: msg})
}

// AdminOnly rejects requests without the admin token. The token is read from
// "Authorization: Bearer <token>" or the api-token header.
// All requests pass if token is empty.
func AdminOnly(token string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if token != "" && !validToken(r, token) {
			WriteError(w, r, ErrPermissionDenied)
			return
		}
		next(w, r)
	}
}

func validToken(r *http.Request, token string) bool {
	got := r.Header.Get(tokenHeader)
	if bearer, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		got = bearer
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(token)) == 1
}
