package webui

import (
	"encoding/json"
	"io"
	"net/http"

	"reach-out/dbtypes"
)

func (u *WebUI) listProfilesHandler(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	ctx := r.Context()

	profiles, err := u.db.GetAllUserProfiles(ctx)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, profiles)
}

// getProfileHandler serves a profile. The owner sees their private record;
// everyone else gets the public mirror with the email blurred out.
func (u *WebUI) getProfileHandler(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	ctx := r.Context()

	callerID, err := u.callerID(ctx, r)
	if err != nil {
		writeError(w, err)
		return
	}

	userID := r.URL.Query().Get("id")
	if userID == "" {
		userID = callerID
	}

	profile, err := u.db.GetUserProfile(ctx, callerID, userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, profile)
}

func (u *WebUI) updateProfileHandler(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	ctx := r.Context()

	callerID, err := u.callerID(ctx, r)
	if err != nil {
		writeError(w, err)
		return
	}

	profile := &dbtypes.UserProfile{}
	if err := json.NewDecoder(r.Body).Decode(profile); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	if err := u.db.UpdateUserProfile(ctx, callerID, profile.ID, profile); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, profile)
}

func (u *WebUI) deleteProfileHandler(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	ctx := r.Context()

	callerID, err := u.callerID(ctx, r)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := u.db.DeleteUserProfile(ctx, callerID, r.URL.Query().Get("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// uploadPhotoHandler accepts a raw JPEG body and records the resulting
// photo URL on the caller's profile pair.
func (u *WebUI) uploadPhotoHandler(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	ctx := r.Context()

	callerID, err := u.callerID(ctx, r)
	if err != nil {
		writeError(w, err)
		return
	}

	photo, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 100*1024+1))
	if err != nil {
		http.Error(w, "Bad Request: photo too large", http.StatusBadRequest)
		return
	}

	photoURL, err := u.db.UploadProfilePhoto(ctx, callerID, callerID, photo)
	if err != nil {
		writeError(w, err)
		return
	}

	profile, err := u.db.GetUserProfile(ctx, callerID, callerID)
	if err != nil {
		writeError(w, err)
		return
	}
	profile.PhotoURL = photoURL
	if err := u.db.UpdateUserProfile(ctx, callerID, callerID, profile); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, map[string]string{"photoUrl": photoURL})
}

func (u *WebUI) followHandler(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	ctx := r.Context()

	callerID, err := u.callerID(ctx, r)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := u.db.FollowUser(ctx, callerID, r.URL.Query().Get("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (u *WebUI) unfollowHandler(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	ctx := r.Context()

	callerID, err := u.callerID(ctx, r)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := u.db.UnfollowUser(ctx, callerID, r.URL.Query().Get("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (u *WebUI) isFollowingHandler(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	ctx := r.Context()

	callerID, err := u.callerID(ctx, r)
	if err != nil {
		writeError(w, err)
		return
	}

	followerID := r.URL.Query().Get("follower")
	if followerID == "" {
		followerID = callerID
	}

	following, err := u.db.IsFollowing(ctx, followerID, r.URL.Query().Get("followee"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]bool{"following": following})
}

func (u *WebUI) followersHandler(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	ctx := r.Context()

	userID := r.URL.Query().Get("id")
	ids, err := u.db.GetFollowerIds(ctx, userID)
	if err != nil {
		writeError(w, err)
		return
	}
	count, err := u.db.GetFollowerCount(ctx, userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]interface{}{"ids": ids, "count": count})
}

func (u *WebUI) followingHandler(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	ctx := r.Context()

	userID := r.URL.Query().Get("id")
	ids, err := u.db.GetFollowingIds(ctx, userID)
	if err != nil {
		writeError(w, err)
		return
	}
	count, err := u.db.GetFollowingCount(ctx, userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]interface{}{"ids": ids, "count": count})
}
