package webui

import (
	"encoding/json"
	"net/http"
	"time"

	"reach-out/dbtypes"
)

// requestView is the request wire shape handed to clients: the stored
// document plus the time-derived display status.
type requestView struct {
	*dbtypes.Request
	ViewStatus dbtypes.RequestStatus `json:"viewStatus"`
}

func viewOf(req *dbtypes.Request, now time.Time) requestView {
	return requestView{Request: req, ViewStatus: req.ViewStatus(now)}
}

func viewsOf(reqs []*dbtypes.Request, now time.Time) []requestView {
	views := make([]requestView, 0, len(reqs))
	for _, req := range reqs {
		views = append(views, viewOf(req, now))
	}
	return views
}

// listRequestsHandler serves the feed. By default only requests still
// worth acting on are returned; ?all=true lists everything.
func (u *WebUI) listRequestsHandler(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	ctx := r.Context()

	var reqs []*dbtypes.Request
	var err error
	if r.URL.Query().Get("all") == "true" {
		reqs, err = u.db.GetAllRequests(ctx)
	} else {
		reqs, err = u.db.GetAllCurrentRequests(ctx)
	}
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, viewsOf(reqs, time.Now()))
}

func (u *WebUI) getRequestHandler(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	ctx := r.Context()

	req, err := u.db.GetRequest(ctx, r.URL.Query().Get("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, viewOf(req, time.Now()))
}

func (u *WebUI) createRequestHandler(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	ctx := r.Context()

	callerID, err := u.callerID(ctx, r)
	if err != nil {
		writeError(w, err)
		return
	}

	req := &dbtypes.Request{}
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	if req.RequestID == "" {
		req.RequestID = u.db.NewRequestID()
	}
	if req.Status == "" {
		req.Status = dbtypes.StatusOpen
	}
	req.CreatorID = callerID

	if err := u.db.AddRequest(ctx, callerID, req); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, viewOf(req, time.Now()))
}

func (u *WebUI) updateRequestHandler(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	ctx := r.Context()

	callerID, err := u.callerID(ctx, r)
	if err != nil {
		writeError(w, err)
		return
	}

	req := &dbtypes.Request{}
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	if err := u.db.UpdateRequest(ctx, callerID, req.RequestID, req); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, viewOf(req, time.Now()))
}

func (u *WebUI) deleteRequestHandler(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	ctx := r.Context()

	callerID, err := u.callerID(ctx, r)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := u.db.DeleteRequest(ctx, callerID, r.URL.Query().Get("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (u *WebUI) myRequestsHandler(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	ctx := r.Context()

	callerID, err := u.callerID(ctx, r)
	if err != nil {
		writeError(w, err)
		return
	}

	reqs, err := u.db.GetRequestsByCreator(ctx, callerID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, viewsOf(reqs, time.Now()))
}

func (u *WebUI) acceptedRequestsHandler(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	ctx := r.Context()

	callerID, err := u.callerID(ctx, r)
	if err != nil {
		writeError(w, err)
		return
	}

	reqs, err := u.db.GetAcceptedRequests(ctx, callerID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, viewsOf(reqs, time.Now()))
}

func (u *WebUI) acceptRequestHandler(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	ctx := r.Context()

	callerID, err := u.callerID(ctx, r)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := u.db.AcceptRequest(ctx, callerID, r.URL.Query().Get("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (u *WebUI) cancelAcceptanceHandler(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	ctx := r.Context()

	callerID, err := u.callerID(ctx, r)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := u.db.CancelAcceptance(ctx, callerID, r.URL.Query().Get("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type closeRequestBody struct {
	RequestID       string   `json:"requestId"`
	SelectedHelpers []string `json:"selectedHelpers"`
}

type closeRequestResponse struct {
	Outcome        string `json:"outcome"`
	RequestClosed  bool   `json:"requestClosed"`
	HelpersAwarded bool   `json:"helpersAwarded"`
	CreatorAwarded bool   `json:"creatorAwarded"`
	Error          string `json:"error,omitempty"`
}

// closeRequestHandler runs the full closure flow. A partial success (the
// request closed but a reward write failed) still returns 200 with the
// outcome marked, since the closure itself is irrevocable.
func (u *WebUI) closeRequestHandler(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	ctx := r.Context()

	callerID, err := u.callerID(ctx, r)
	if err != nil {
		writeError(w, err)
		return
	}

	body := closeRequestBody{}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	result := u.closer.Close(ctx, callerID, body.RequestID, body.SelectedHelpers)
	if !result.RequestClosed {
		writeError(w, result.Err)
		return
	}

	resp := closeRequestResponse{
		Outcome:        string(result.Outcome),
		RequestClosed:  result.RequestClosed,
		HelpersAwarded: result.HelpersAwarded,
		CreatorAwarded: result.CreatorAwarded,
	}
	if result.Err != nil {
		resp.Error = result.Err.Error()
	}
	writeJSON(w, resp)
}
