package fake

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/BearBump/ClaimBox/internal/integrations/cargo"
	"github.com/BearBump/ClaimBox/internal/models"
)

// RecordedCall is one request seen by the fake.
type RecordedCall struct {
	Endpoint string
	ClaimID  string
	Auth     string
	Query    url.Values
	Body     map[string]any
}

type searchState struct {
	status string
	offset int
}

// Server эмулирует claims API в памяти, включая поиск по курсору и отмену
// заявок. Поведение настраивается полями до старта.
type Server struct {
	// PageSize caps a search page; 0 means the requested limit.
	PageSize  int
	Intervals []models.Interval

	// CancelOnly limits successful cancellation of a claim to one policy.
	CancelOnly map[string]cargo.CancelState
	// Disconnects drops the connection for the next n cancel calls of claim+policy,
	// keyed by "<claim_id>:<state>".
	Disconnects map[string]int
	// CreateErrors rejects creates whose pickup external order id is listed.
	CreateErrors map[string]string

	mu      sync.Mutex
	claims  []*models.Claim
	byID    map[string]*models.Claim
	created map[string]string
	cursors map[string]searchState
	seq     int
	calls   []RecordedCall
}

func New(claims ...models.Claim) *Server {
	s := &Server{
		CancelOnly:   map[string]cargo.CancelState{},
		Disconnects:  map[string]int{},
		CreateErrors: map[string]string{},
		byID:         map[string]*models.Claim{},
		created:      map[string]string{},
		cursors:      map[string]searchState{},
	}
	for _, c := range claims {
		s.Add(c)
	}
	return s
}

func (s *Server) Add(c models.Claim) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := c
	s.claims = append(s.claims, &cp)
	s.byID[cp.ID] = &cp
}

// Claim returns a copy of the stored claim.
func (s *Server) Claim(id string) (models.Claim, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.byID[id]
	if !ok {
		return models.Claim{}, false
	}
	return *c, true
}

func (s *Server) Calls(endpoint string) []RecordedCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []RecordedCall
	for _, c := range s.calls {
		if endpoint == "" || c.Endpoint == endpoint {
			out = append(out, c)
		}
	}
	return out
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	raw, _ := io.ReadAll(r.Body)
	var body map[string]any
	_ = json.Unmarshal(raw, &body)

	endpoint := r.URL.Path[strings.LastIndex(r.URL.Path, "/claims/")+1:]
	if strings.HasSuffix(r.URL.Path, "/delivery-methods") {
		endpoint = "delivery-methods"
	}
	claimID := r.URL.Query().Get("claim_id")

	s.mu.Lock()
	s.calls = append(s.calls, RecordedCall{Endpoint: endpoint, ClaimID: claimID, Auth: r.Header.Get("Authorization"), Query: r.URL.Query(), Body: body})
	s.mu.Unlock()

	switch endpoint {
	case "claims/search":
		s.search(w, body)
	case "claims/info":
		s.info(w, claimID)
	case "delivery-methods":
		s.deliveryMethods(w)
	case "claims/create":
		s.create(w, r.URL.Query().Get("request_id"), raw)
	case "claims/accept":
		s.accept(w, claimID)
	case "claims/cancel":
		state, _ := body["cancel_state"].(string)
		s.cancel(w, claimID, cargo.CancelState(state))
	default:
		writeJSON(w, http.StatusNotFound, apiError("not_found", "unknown endpoint "+r.URL.Path))
	}
}

func (s *Server) search(w http.ResponseWriter, body map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := searchState{}
	if cur, ok := body["cursor"].(string); ok {
		saved, found := s.cursors[cur]
		if !found {
			writeJSON(w, http.StatusBadRequest, apiError("bad_cursor", "unknown cursor"))
			return
		}
		st = saved
	} else {
		st.status, _ = body["status"].(string)
		if off, ok := body["offset"].(float64); ok {
			st.offset = int(off)
		}
	}

	limit := 500
	if l, ok := body["limit"].(float64); ok && l > 0 {
		limit = int(l)
	}
	if s.PageSize > 0 && s.PageSize < limit {
		limit = s.PageSize
	}
	ext, _ := body["external_order_id"].(string)

	var matched []*models.Claim
	for _, c := range s.claims {
		if st.status != "" && string(c.Status) != st.status {
			continue
		}
		if ext != "" && !hasExternalID(c, ext) {
			continue
		}
		matched = append(matched, c)
	}

	out := map[string]any{}
	page := []models.Claim{}
	end := st.offset + limit
	if end > len(matched) {
		end = len(matched)
	}
	for i := st.offset; i < end; i++ {
		page = append(page, *matched[i])
	}
	out["claims"] = page
	if end < len(matched) {
		cur := "cur-" + strconv.Itoa(len(s.cursors)+1)
		s.cursors[cur] = searchState{status: st.status, offset: end}
		out["cursor"] = cur
	}
	writeJSON(w, http.StatusOK, out)
}

func hasExternalID(c *models.Claim, ext string) bool {
	for _, p := range c.RoutePoints {
		if p.ExternalOrderID != nil && *p.ExternalOrderID == ext {
			return true
		}
	}
	return false
}

func (s *Server) info(w http.ResponseWriter, id string) {
	c, ok := s.Claim(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, apiError("not_found", "claim not found"))
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) deliveryMethods(w http.ResponseWriter) {
	s.mu.Lock()
	intervals := append([]models.Interval{}, s.Intervals...)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{
		"same_day_delivery": map[string]any{"available_intervals": intervals},
	})
}

func (s *Server) create(w http.ResponseWriter, requestID string, raw []byte) {
	if requestID == "" {
		writeJSON(w, http.StatusBadRequest, apiError("bad_request", "request_id is required"))
		return
	}
	var c models.Claim
	if err := json.Unmarshal(raw, &c); err != nil {
		writeJSON(w, http.StatusBadRequest, apiError("bad_request", err.Error()))
		return
	}
	if ext, ok := c.PickupExternalOrderID(); ok {
		if msg, bad := s.CreateErrors[ext]; bad {
			writeJSON(w, http.StatusBadRequest, apiError("validation_error", msg))
			return
		}
	}

	s.mu.Lock()
	if id, seen := s.created[requestID]; seen {
		s.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]any{"id": id, "status": models.StatusNew})
		return
	}
	s.seq++
	id := newID(requestID, s.seq)
	s.created[requestID] = id
	s.mu.Unlock()

	c.ID = id
	c.Status = models.StatusNew
	s.Add(c)
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "status": models.StatusNew})
}

func (s *Server) accept(w http.ResponseWriter, id string) {
	s.mu.Lock()
	c, ok := s.byID[id]
	if ok {
		c.Status = models.StatusAccepted
	}
	s.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, apiError("not_found", "claim not found"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "status": models.StatusAccepted})
}

func (s *Server) cancel(w http.ResponseWriter, id string, state cargo.CancelState) {
	key := id + ":" + string(state)
	s.mu.Lock()
	if n := s.Disconnects[key]; n > 0 {
		s.Disconnects[key] = n - 1
		s.mu.Unlock()
		dropConnection(w)
		return
	}
	c, ok := s.byID[id]
	only, restricted := s.CancelOnly[id]
	var status models.ClaimStatus
	switch {
	case !ok:
	case c.Status.IsFinal():
		status = c.Status
	case restricted && only != state:
	default:
		c.Status = models.StatusCancelled
		status = c.Status
	}
	s.mu.Unlock()

	switch {
	case !ok:
		writeJSON(w, http.StatusNotFound, apiError("not_found", "claim not found"))
	case status == "":
		writeJSON(w, http.StatusConflict, apiError("inappropriate_status", fmt.Sprintf("%s cancellation is not available", state)))
	default:
		writeJSON(w, http.StatusOK, map[string]any{"id": id, "status": status})
	}
}

func dropConnection(w http.ResponseWriter) {
	hj, ok := w.(http.Hijacker)
	if !ok {
		panic(http.ErrAbortHandler)
	}
	conn, _, err := hj.Hijack()
	if err != nil {
		panic(http.ErrAbortHandler)
	}
	_ = conn.Close()
}

func newID(requestID string, seq int) string {
	h := fnv.New64a()
	_, _ = h.Write([]byte(requestID))
	sum := h.Sum(nil)
	return fmt.Sprintf("%s%016x", hex.EncodeToString(sum), uint64(seq))
}

func apiError(code, msg string) map[string]string {
	return map[string]string{"code": code, "message": msg}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
