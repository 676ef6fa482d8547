package webui

import (
	"encoding/json"
	"net/http"
)

type ensureChatBody struct {
	RequestID string `json:"requestId"`
	HelperID  string `json:"helperId"`
}

func (u *WebUI) ensureChatHandler(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	ctx := r.Context()

	callerID, err := u.callerID(ctx, r)
	if err != nil {
		writeError(w, err)
		return
	}

	body := ensureChatBody{}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	chat, err := u.db.EnsureChat(ctx, callerID, body.RequestID, body.HelperID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, chat)
}

type sendMessageBody struct {
	ChatID string `json:"chatId"`
	Text   string `json:"text"`
}

func (u *WebUI) sendMessageHandler(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	ctx := r.Context()

	callerID, err := u.callerID(ctx, r)
	if err != nil {
		writeError(w, err)
		return
	}

	body := sendMessageBody{}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	msg, err := u.db.SendMessage(ctx, callerID, body.ChatID, body.Text)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, msg)
}

func (u *WebUI) listMessagesHandler(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	ctx := r.Context()

	callerID, err := u.callerID(ctx, r)
	if err != nil {
		writeError(w, err)
		return
	}

	msgs, err := u.db.GetMessages(ctx, callerID, r.URL.Query().Get("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, msgs)
}
