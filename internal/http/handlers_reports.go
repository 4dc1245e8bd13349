package http

import (
	"encoding/json"
	"net/http"
	"strings"

	"finledger/internal/ledger"
	applog "finledger/internal/log"
)

// seriesFlushEvery bounds how many points are buffered before a flush.
const seriesFlushEvery = 64

func (s *Server) handleProjection(w http.ResponseWriter, r *http.Request) {
	start, end, err := ParseDateRange(r.URL.Query(), s.today())
	if err != nil {
		writeError(w, r, applog.OpReport, err)
		return
	}

	p, err := s.svc.Reports.Projection(r.Context(), userID(r), start, end)
	if err != nil {
		writeError(w, r, applog.OpReport, err)
		return
	}
	NewResponse().JSON(newProjectionView(p)).Write(w)
}

// handleSeries streams the running balance as a JSON array, one point per
// day. Validation happens before the first byte is written; once streaming
// has started a cancelled request just ends the array early.
func (s *Server) handleSeries(w http.ResponseWriter, r *http.Request) {
	start, end, err := ParseDateRange(r.URL.Query(), s.today())
	if err != nil {
		writeError(w, r, applog.OpReport, err)
		return
	}

	seq, err := s.svc.Reports.Series(r.Context(), userID(r), start, end)
	if err != nil {
		writeError(w, r, applog.OpReport, err)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)

	rc := http.NewResponseController(w)
	enc := json.NewEncoder(w)
	_, _ = w.Write([]byte("["))
	n := 0
	for point := range seq {
		if r.Context().Err() != nil {
			break
		}
		if n > 0 {
			_, _ = w.Write([]byte(","))
		}
		if err := enc.Encode(dayBalanceView(point)); err != nil {
			applog.FromContext(r.Context()).WarnContext(r.Context(), "Series stream aborted", applog.FieldError, err.Error())
			return
		}
		n++
		if n%seriesFlushEvery == 0 {
			_ = rc.Flush()
		}
	}
	_, _ = w.Write([]byte("]\n"))
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	month, err := ParseMonthParams(query, s.today())
	if err != nil {
		writeError(w, r, applog.OpReport, err)
		return
	}
	top, err := queryInt(query, "top", 0)
	if err != nil {
		writeError(w, r, applog.OpReport, errBadRequest)
		return
	}

	report, err := s.svc.Reports.Stats(r.Context(), userID(r), ledger.CategoryFilter{
		Year:     month.Year,
		Month:    month.Month,
		Category: strings.TrimSpace(query.Get("category")),
		TopN:     top,
	})
	if err != nil {
		writeError(w, r, applog.OpReport, err)
		return
	}
	NewResponse().JSON(newStatsView(report)).Write(w)
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	names, err := s.svc.Reports.Categories(r.Context(), userID(r))
	if err != nil {
		writeError(w, r, applog.OpList, err)
		return
	}
	if names == nil {
		names = []string{}
	}
	NewResponse().JSON(names).Write(w)
}
