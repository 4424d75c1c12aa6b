// Package httpx holds the JSON request/response helpers shared by the HTTP handlers.
package httpx

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/rs/zerolog/hlog"
)

// maxBodyBytes bounds request bodies; payment batches are the largest legitimate payload.
const maxBodyBytes = 1 << 20

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Message string `json:"message"`
}

// DecodeJSON decodes the request body into dest. An empty body leaves dest untouched.
// Unknown fields are accepted: legacy clients post whole cached objects.
func DecodeJSON(r *http.Request, dest any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(dest)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// JSON writes payload with status.
func JSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

// Error writes {"message": msg} with status.
func Error(w http.ResponseWriter, status int, msg string) {
	JSON(w, status, ErrorBody{Message: msg})
}

// Internal logs err against the request and writes a generic 500. Storage details never reach the client.
func Internal(w http.ResponseWriter, r *http.Request, err error) {
	hlog.FromRequest(r).Error().Err(err).Msg("request failed")
	Error(w, http.StatusInternalServerError, "internal error")
}

// Param returns the first non-empty value among the given candidates.
func Param(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
