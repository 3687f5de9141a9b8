package validators

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	pkgerrors "github.com/hydromart/marketplace-backend/pkg/errors"
	"github.com/hydromart/marketplace-backend/pkg/pagination"
)

const maxCursorLen = 512

// ParsePageParams reads ?limit= and ?cursor= for a keyset listing. A missing
// limit takes the listing default; one outside [1, limits.Max] is rejected
// rather than clamped so callers notice.
func ParsePageParams(r *http.Request, limits pagination.Limits) (pagination.Params, error) {
	query := r.URL.Query()
	maxLimit := limits.Normalize(limits.Max)

	limit := limits.Normalize(0)
	if raw := strings.TrimSpace(query.Get("limit")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil {
			return pagination.Params{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "limit must be numeric").
				WithDetails(map[string]any{"field": "limit"})
		}
		if value < 1 || value > maxLimit {
			return pagination.Params{}, pkgerrors.New(pkgerrors.CodeValidation, "limit out of range").
				WithDetails(map[string]any{"field": "limit", "min": 1, "max": maxLimit})
		}
		limit = value
	}

	cursor := strings.TrimSpace(query.Get("cursor"))
	if len(cursor) > maxCursorLen {
		return pagination.Params{}, pkgerrors.New(pkgerrors.CodeValidation, "cursor too long").
			WithDetails(map[string]any{"field": "cursor"})
	}
	return pagination.Params{Limit: limit, Cursor: cursor}, nil
}

// ParseUUID validates a path or body identifier, naming the field on failure.
func ParseUUID(raw, field string) (uuid.UUID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, field+" is required").
			WithDetails(map[string]any{"field": field})
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid "+field).
			WithDetails(map[string]any{"field": field})
	}
	return id, nil
}
