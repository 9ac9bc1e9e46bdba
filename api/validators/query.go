package validators

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	pkgerrors "github.com/angelmondragon/grocery-backend/pkg/errors"
)

func ParseQueryInt(r *http.Request, key string, defaultVal, min, max int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return defaultVal, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "query parameter must be numeric").WithDetails(map[string]any{"field": key})
	}
	if value < min || value > max {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "query parameter out of range").WithDetails(map[string]any{"field": key, "min": min, "max": max})
	}
	return value, nil
}

// ParseOptionalQueryInt64 returns nil when key is absent or blank.
func ParseOptionalQueryInt64(r *http.Request, key string) (*int64, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return nil, nil
	}
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "query parameter must be an integer").WithDetails(map[string]any{"field": key})
	}
	return &value, nil
}

// ParseQueryID reads a required positive identifier from the query string.
func ParseQueryID(r *http.Request, key string) (uint64, error) {
	return parseID(strings.TrimSpace(r.URL.Query().Get(key)), key)
}

// ParsePathID reads a positive identifier from a chi URL parameter.
func ParsePathID(r *http.Request, key string) (uint64, error) {
	return parseID(strings.TrimSpace(chi.URLParam(r, key)), key)
}

func parseID(raw, key string) (uint64, error) {
	if raw == "" {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, key+" is required").WithDetails(map[string]any{"field": key})
	}
	value, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || value == 0 {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, key+" must be a positive integer").WithDetails(map[string]any{"field": key})
	}
	return value, nil
}
