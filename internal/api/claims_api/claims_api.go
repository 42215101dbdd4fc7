package claims_api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/BearBump/ClaimBox/internal/broker/messages"
	"github.com/BearBump/ClaimBox/internal/models"
	"github.com/BearBump/ClaimBox/internal/services/outcome"
	"github.com/BearBump/ClaimBox/internal/services/reorder"
	"github.com/BearBump/ClaimBox/internal/services/search"
	"github.com/go-chi/chi/v5"
)

type Reorderer interface {
	Reorder(ctx context.Context, tokens []string) (reorder.Batch, error)
	Accept(ctx context.Context, claimIDs []string) ([]outcome.Outcome, error)
}

type Canceller interface {
	Cancel(ctx context.Context, tokens []string) ([]outcome.Outcome, error)
}

type Searcher interface {
	Search(ctx context.Context, f search.Filter, opts search.Options) (search.Result, error)
}

type ClaimsAPI struct {
	reorder Reorderer
	cancel  Canceller
	search  Searcher

	reportStatuses []models.ClaimStatus
	timeZone       func(country string) (int, bool)
	now            func() time.Time
}

func New(r Reorderer, c Canceller, s Searcher) *ClaimsAPI {
	return &ClaimsAPI{reorder: r, cancel: c, search: s, now: time.Now}
}

// WithReport sets the statuses of the daily report and the lookup of a
// country's UTC offset, usually config.ClaimBoxConfig.TimeZone.
func (a *ClaimsAPI) WithReport(statuses []models.ClaimStatus, timeZone func(country string) (int, bool)) *ClaimsAPI {
	a.reportStatuses = statuses
	a.timeZone = timeZone
	return a
}

// Routes mounts the claim endpoints under /v1/claims.
func (a *ClaimsAPI) Routes(r chi.Router) {
	r.Route("/v1/claims", func(r chi.Router) {
		r.Post("/reorder", a.handleReorder)
		r.Post("/cancel", a.handleCancel)
		r.Post("/accept", a.handleAccept)
		r.Post("/search", a.handleSearch)
		r.Get("/report", a.handleReport)
		r.Get("/sorting", a.handleSorting)
	})
}

type tokensRequest struct {
	Tokens   []string `json:"tokens"`
	ClaimIDs []string `json:"claim_ids"`
}

// OutcomeView is an outcome with its operator line.
type OutcomeView struct {
	messages.ClaimOutcome
	Line string `json:"line"`
}

func views(outs []outcome.Outcome) []OutcomeView {
	res := make([]OutcomeView, 0, len(outs))
	for _, o := range outs {
		res = append(res, OutcomeView{ClaimOutcome: outcome.ToMessage(o), Line: outcome.Line(o, outcome.FormatterFor(o.Op))})
	}
	return res
}

type ReorderResponse struct {
	RunID    string            `json:"run_id"`
	Created  []reorder.Created `json:"created"`
	Outcomes []OutcomeView     `json:"outcomes"`
}

func (a *ClaimsAPI) handleReorder(w http.ResponseWriter, r *http.Request) {
	var req tokensRequest
	if !decode(w, r, &req) {
		return
	}
	b, err := a.reorder.Reorder(r.Context(), req.Tokens)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, ReorderResponse{RunID: b.RunID, Created: b.Created, Outcomes: views(b.Outcomes)})
}

type OutcomesResponse struct {
	Outcomes []OutcomeView `json:"outcomes"`
}

func (a *ClaimsAPI) handleCancel(w http.ResponseWriter, r *http.Request) {
	var req tokensRequest
	if !decode(w, r, &req) {
		return
	}
	outs, err := a.cancel.Cancel(r.Context(), req.Tokens)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, OutcomesResponse{Outcomes: views(outs)})
}

func (a *ClaimsAPI) handleAccept(w http.ResponseWriter, r *http.Request) {
	var req tokensRequest
	if !decode(w, r, &req) {
		return
	}
	ids := req.ClaimIDs
	if len(ids) == 0 {
		ids = req.Tokens
	}
	outs, err := a.reorder.Accept(r.Context(), ids)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, OutcomesResponse{Outcomes: views(outs)})
}

type filterJSON struct {
	IntervalFrom  string   `json:"interval_from"`
	Pickup        string   `json:"pickup"`
	CreatedFrom   string   `json:"created_from"` // YYYY-MM-DD
	Date          string   `json:"date"`         // YYYY-MM-DD
	TZOffsetHours int      `json:"tz_offset_hours"`
	Statuses      []string `json:"statuses"`
}

type searchRequest struct {
	Filter     filterJSON `json:"filter"`
	Duplicates bool       `json:"duplicates"`
	Sorting    bool       `json:"sorting"`
}

func (f filterJSON) toFilter() (search.Filter, error) {
	out := search.Filter{IntervalFrom: f.IntervalFrom, Pickup: f.Pickup, TZOffsetHours: f.TZOffsetHours}
	if f.CreatedFrom != "" {
		t, err := time.Parse(time.DateOnly, f.CreatedFrom)
		if err != nil {
			return search.Filter{}, errBadRequest("created_from: expected YYYY-MM-DD")
		}
		out.CreatedFrom = &t
	}
	if f.Date != "" {
		t, err := time.Parse(time.DateOnly, f.Date)
		if err != nil {
			return search.Filter{}, errBadRequest("date: expected YYYY-MM-DD")
		}
		out.Date = &t
	}
	for _, s := range f.Statuses {
		st := models.ClaimStatus(s)
		if !st.IsKnown() {
			return search.Filter{}, errBadRequest("unknown status " + s)
		}
		out.Statuses = append(out.Statuses, st)
	}
	return out, nil
}

type SearchResponse struct {
	search.Result
	Count int    `json:"count"`
	Error string `json:"error,omitempty"`
}

func (a *ClaimsAPI) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if !decode(w, r, &req) {
		return
	}
	f, err := req.Filter.toFilter()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	a.writeSearch(w, r, f, search.Options{CollectDuplicates: req.Duplicates, CollectSorting: req.Sorting})
}

type ReportResponse struct {
	Country string `json:"country,omitempty"`
	Date    string `json:"date"`
	SearchResponse
}

func (a *ClaimsAPI) handleReport(w http.ResponseWriter, r *http.Request) {
	country := r.URL.Query().Get("country")
	tz := 0
	if country != "" {
		ok := false
		if a.timeZone != nil {
			tz, ok = a.timeZone(country)
		}
		if !ok {
			writeError(w, http.StatusBadRequest, "unknown country "+country)
			return
		}
	}

	day := search.Today(a.now(), tz)
	if d := r.URL.Query().Get("date"); d != "" {
		t, err := time.Parse(time.DateOnly, d)
		if err != nil {
			writeError(w, http.StatusBadRequest, "date: expected YYYY-MM-DD")
			return
		}
		day = t
	}

	res, err := a.search.Search(r.Context(), search.ReportFilter(a.reportStatuses, day, tz), search.Options{})
	resp := ReportResponse{Country: country, Date: day.Format(time.DateOnly), SearchResponse: searchResponse(res, err)}
	writeJSON(w, statusFor(err), resp)
}

func (a *ClaimsAPI) handleSorting(w http.ResponseWriter, r *http.Request) {
	f, opts := search.SortingFilter()
	a.writeSearch(w, r, f, opts)
}

func (a *ClaimsAPI) writeSearch(w http.ResponseWriter, r *http.Request, f search.Filter, opts search.Options) {
	res, err := a.search.Search(r.Context(), f, opts)
	writeJSON(w, statusFor(err), searchResponse(res, err))
}

// searchResponse keeps the partial result of a failed search.
func searchResponse(res search.Result, err error) SearchResponse {
	out := SearchResponse{Result: res, Count: len(res.ClaimIDs)}
	if err != nil {
		slog.Error("search claims", "error", err.Error())
		out.Error = err.Error()
	}
	return out
}

func statusFor(err error) int {
	if err != nil {
		return http.StatusBadGateway
	}
	return http.StatusOK
}

type errBadRequest string

func (e errBadRequest) Error() string { return string(e) }

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json: "+err.Error())
		return false
	}
	return true
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
