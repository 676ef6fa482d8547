// Package webui exposes the Reach Out backend as a JSON API: accounts and
// sessions, help requests, profiles, the follow graph, and chats.
package webui

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"reach-out/closer"
	"reach-out/dblayer"
	"reach-out/dbtypes"

	"github.com/golang/glog"
	"github.com/google/uuid"
)

const sessionCookieName = "ReachOut-Session"

type WebUI struct {
	db     *dblayer.DB
	closer *closer.Closer
}

func New(db *dblayer.DB) *WebUI {
	return &WebUI{
		db:     db,
		closer: closer.New(db, db),
	}
}

func (u *WebUI) Register(m *http.ServeMux) {
	m.HandleFunc("/api/sign-up", u.signUpHandler)
	m.HandleFunc("/api/log-in", u.logInHandler)
	m.HandleFunc("/api/log-in-google", u.logInGoogleHandler)
	m.HandleFunc("/api/log-out", u.logOutHandler)

	m.HandleFunc("/api/requests", u.listRequestsHandler)
	m.HandleFunc("/api/requests/get", u.getRequestHandler)
	m.HandleFunc("/api/requests/create", u.createRequestHandler)
	m.HandleFunc("/api/requests/update", u.updateRequestHandler)
	m.HandleFunc("/api/requests/delete", u.deleteRequestHandler)
	m.HandleFunc("/api/requests/mine", u.myRequestsHandler)
	m.HandleFunc("/api/requests/accepted", u.acceptedRequestsHandler)
	m.HandleFunc("/api/requests/accept", u.acceptRequestHandler)
	m.HandleFunc("/api/requests/cancel-acceptance", u.cancelAcceptanceHandler)
	m.HandleFunc("/api/requests/close", u.closeRequestHandler)

	m.HandleFunc("/api/profiles", u.listProfilesHandler)
	m.HandleFunc("/api/profiles/get", u.getProfileHandler)
	m.HandleFunc("/api/profiles/update", u.updateProfileHandler)
	m.HandleFunc("/api/profiles/delete", u.deleteProfileHandler)
	m.HandleFunc("/api/profiles/photo", u.uploadPhotoHandler)

	m.HandleFunc("/api/follow", u.followHandler)
	m.HandleFunc("/api/unfollow", u.unfollowHandler)
	m.HandleFunc("/api/is-following", u.isFollowingHandler)
	m.HandleFunc("/api/followers", u.followersHandler)
	m.HandleFunc("/api/following", u.followingHandler)

	m.HandleFunc("/api/chats/ensure", u.ensureChatHandler)
	m.HandleFunc("/api/chats/send", u.sendMessageHandler)
	m.HandleFunc("/api/chats/messages", u.listMessagesHandler)
}

// callerID resolves the logged-in user from the session cookie in the
// request. Empty string means anonymous; the data layer decides which
// operations tolerate that.
func (u *WebUI) callerID(ctx context.Context, r *http.Request) (string, error) {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil {
		// No session cookie; user is not logged in.
		return "", nil
	}
	return u.db.UserIDFromSessionCookie(ctx, cookie.Value)
}

// httpStatusForError translates the data-layer error taxonomy into HTTP
// status codes.
func httpStatusForError(err error) int {
	switch {
	case errors.Is(err, dblayer.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, dblayer.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, dblayer.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, dblayer.ErrInvalidArgument), errors.Is(err, dblayer.ErrUserNotHelper):
		return http.StatusBadRequest
	case errors.Is(err, dblayer.ErrInvalidStatus), errors.Is(err, dblayer.ErrAlreadyInRelation), errors.Is(err, dblayer.ErrNotInRelation):
		return http.StatusConflict
	case errors.Is(err, dblayer.ErrNetworkUnavailable):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, err error) {
	status := httpStatusForError(err)
	if status == http.StatusInternalServerError {
		glog.Errorf("Internal error while handling request: %v", err)
		http.Error(w, "Internal Error", status)
		return
	}
	http.Error(w, err.Error(), status)
}

func writeJSON(w http.ResponseWriter, value interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(value); err != nil {
		// It's too late to write an error to the HTTP response.
		glog.Errorf("Error while writing output: %v", err)
	}
}

func requireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return false
	}
	return true
}

type signUpRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	Name        string `json:"name"`
	LastName    string `json:"lastName"`
	Section     string `json:"section"`
	ArrivalDate string `json:"arrivalDate"`
}

// signUpHandler creates an account plus the profile pair in one call, then
// logs the new user in.
func (u *WebUI) signUpHandler(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	ctx := r.Context()

	body := signUpRequest{}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	profile := &dbtypes.UserProfile{
		ID:       uuid.NewString(),
		Name:     body.Name,
		LastName: body.LastName,
		Email:    body.Email,
		Section:  dbtypes.NormalizeSection(body.Section),
	}
	if body.ArrivalDate != "" {
		arrival, err := time.Parse("2006-01-02", body.ArrivalDate)
		if err != nil {
			http.Error(w, "Bad Request: arrivalDate must be YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		profile.ArrivalDate = arrival
	}

	if err := u.db.CreateAccount(ctx, body.Email, body.Password, profile.ID); err != nil {
		writeError(w, err)
		return
	}
	if err := u.db.AddUserProfile(ctx, profile.ID, profile); err != nil {
		writeError(w, err)
		return
	}

	session, err := u.db.SessionFromPassword(ctx, body.Email, body.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	u.setSessionCookie(w, session.Cookie, session.Expires)
	writeJSON(w, map[string]string{"userId": profile.ID})
}

type logInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	IDToken  string `json:"idToken"`
}

func (u *WebUI) logInHandler(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	ctx := r.Context()

	body := logInRequest{}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	session, err := u.db.SessionFromPassword(ctx, body.Email, body.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	u.setSessionCookie(w, session.Cookie, session.Expires)
	writeJSON(w, map[string]string{"userId": session.UserID})
}

func (u *WebUI) logInGoogleHandler(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	ctx := r.Context()

	body := logInRequest{}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	session, err := u.db.SessionFromGoogleFederation(ctx, body.IDToken)
	if err != nil {
		writeError(w, err)
		return
	}

	u.setSessionCookie(w, session.Cookie, session.Expires)
	writeJSON(w, map[string]string{"userId": session.UserID})
}

func (u *WebUI) logOutHandler(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	ctx := r.Context()

	cookie, err := r.Cookie(sessionCookieName)
	if err == nil {
		if err := u.db.DeleteSession(ctx, cookie.Value); err != nil {
			glog.Errorf("Error while deleting session: %v", err)
		}
	}

	u.setSessionCookie(w, "", time.Unix(0, 0))
	w.WriteHeader(http.StatusNoContent)
}

func (u *WebUI) setSessionCookie(w http.ResponseWriter, value string, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		Secure:   true,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
