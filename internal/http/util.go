package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/GetingeDHS/dhs-tdoc-service-tags-management-sub000/internal/repository"
	"github.com/GetingeDHS/dhs-tdoc-service-tags-management-sub000/internal/service"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps repository sentinel errors onto HTTP status codes.
// Anything unrecognized is an internal error.
func statusFor(err error) int {
	switch {
	case errors.Is(err, repository.ErrTagNotFound),
		errors.Is(err, repository.ErrUnitNotFound):
		return http.StatusNotFound
	case errors.Is(err, repository.ErrDuplicateTagNumber),
		errors.Is(err, repository.ErrCycleDetected),
		errors.Is(err, service.ErrNotTransportBox):
		return http.StatusConflict
	case errors.Is(err, repository.ErrUnsupported):
		return http.StatusNotImplemented
	}
	return http.StatusInternalServerError
}

func parseInt(s string, def int) int {
	if s == "" {
		return def
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return i
}

func parseInt64(s string) (int64, error) {
	return strconv.ParseInt(s, 10, 64)
}

func readBodyJSON(r *http.Request, maxBytes int64, out any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBytes))
	if err != nil {
		return err
	}
	if len(body) == 0 {
		return nil
	}
	return json.Unmarshal(body, out)
}

// actorFrom extracts the acting user for audit fields. Station gateways and
// the frontend both send X-User-Id.
func actorFrom(r *http.Request) string {
	if actor := r.Header.Get("X-User-Id"); actor != "" {
		return actor
	}
	return "system"
}
