package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/dukerupert/splitweek/internal/model"
)

const maxBodyBytes = 1 << 20

func parseIDParam(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(r.PathValue(name), 10, 64)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// decodeJSON reads a JSON body, writing a 400 and returning false when it
// is malformed.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return false
	}
	return true
}

// decodeOptionalJSON is decodeJSON for endpoints whose body may be omitted.
// An empty body leaves v untouched, whether or not the client sent a length.
func decodeOptionalJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return false
	}
	return true
}

// writeError maps service errors to responses. Errors carrying a client
// message use it; anything else is logged and reported as failMsg.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error, failMsg string) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, model.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, model.ErrInvalidOperation), errors.Is(err, model.ErrValidation):
		status = http.StatusBadRequest
	}

	var opErr *model.OpError
	if status != http.StatusInternalServerError && errors.As(err, &opErr) {
		writeJSON(w, status, map[string]string{"error": opErr.Msg})
		return
	}

	logger.Error(failMsg, "error", err)
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": failMsg})
}

func Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
