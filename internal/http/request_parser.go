package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"finledger/internal/core"
)

const maxBodyBytes = 64 << 10

var errBadRequest = errors.New("malformed request")

type MonthParams struct {
	Year  int
	Month int
}

// ParseMonthParams reads year and month from the query, defaulting to the
// month of today. A value that is present but not a number is rejected.
func ParseMonthParams(query url.Values, today core.Date) (MonthParams, error) {
	params := MonthParams{Year: today.Year(), Month: today.Month()}

	var err error
	if params.Year, err = queryInt(query, "year", params.Year); err != nil {
		return MonthParams{}, fmt.Errorf("%w: year", core.ErrInvalidDate)
	}
	if params.Month, err = queryInt(query, "month", params.Month); err != nil {
		return MonthParams{}, fmt.Errorf("%w: %q", core.ErrInvalidMonth, query.Get("month"))
	}
	if params.Month < 1 || params.Month > 12 {
		return MonthParams{}, fmt.Errorf("%w: %d", core.ErrInvalidMonth, params.Month)
	}
	return params, nil
}

func queryInt(query url.Values, key string, def int) (int, error) {
	v := strings.TrimSpace(query.Get(key))
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}

// ParseDateRange reads start and end as YYYY-MM-DD. Missing bounds default
// to the first and last day of the month containing today.
func ParseDateRange(query url.Values, today core.Date) (start, end core.Date, err error) {
	start = core.NewDate(today.Year(), today.Month(), 1)
	end = start.AddDays(32)
	end = core.NewDate(end.Year(), end.Month(), 1).AddDays(-1)

	if v := query.Get("start"); v != "" {
		if start, err = core.ParseDate(v); err != nil {
			return core.Date{}, core.Date{}, err
		}
	}
	if v := query.Get("end"); v != "" {
		if end, err = core.ParseDate(v); err != nil {
			return core.Date{}, core.Date{}, err
		}
	}
	if start.After(end) {
		return core.Date{}, core.Date{}, fmt.Errorf("%w: %s > %s", core.ErrInvalidRange, start, end)
	}
	return start, end, nil
}

// decodeJSON reads one JSON object into dst. Unknown fields, trailing data
// and oversized bodies are rejected; field-level validation errors from
// core types pass through unchanged.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		if core.IsValidationError(err) {
			return err
		}
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: body must hold a single object", errBadRequest)
	}
	return nil
}

// sanitizeInput drops control characters other than tab and newlines.
func sanitizeInput(s string) string {
	return strings.TrimSpace(strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, s))
}
