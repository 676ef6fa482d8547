package webui

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"reach-out/dblayer"
	"reach-out/dbtypes"
)

func TestHTTPStatusForError(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{dblayer.ErrUnauthenticated, http.StatusUnauthorized},
		{dblayer.ErrUnauthorized, http.StatusForbidden},
		{dblayer.ErrNotFound, http.StatusNotFound},
		{dblayer.ErrInvalidArgument, http.StatusBadRequest},
		{dblayer.ErrUserNotHelper, http.StatusBadRequest},
		{dblayer.ErrInvalidStatus, http.StatusConflict},
		{dblayer.ErrAlreadyInRelation, http.StatusConflict},
		{dblayer.ErrNotInRelation, http.StatusConflict},
		{dblayer.ErrNetworkUnavailable, http.StatusServiceUnavailable},
		{fmt.Errorf("some plumbing problem"), http.StatusInternalServerError},
	}
	for _, tc := range tests {
		if got := httpStatusForError(tc.err); got != tc.want {
			t.Errorf("httpStatusForError(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

func TestHTTPStatusForWrappedError(t *testing.T) {
	wrapped := fmt.Errorf("while closing request req-1: %w", dblayer.ErrInvalidStatus)
	if got := httpStatusForError(wrapped); got != http.StatusConflict {
		t.Errorf("wrapped taxonomy error = %d, want %d", got, http.StatusConflict)
	}
}

func TestRequestViewJSONShape(t *testing.T) {
	start := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	req := &dbtypes.Request{
		RequestID:      "req-1",
		Title:          "Need a whiteboard marker",
		Status:         dbtypes.StatusOpen,
		StartTimeStamp: start,
		ExpirationTime: start.Add(2 * time.Hour),
		CreatorID:      "creator-1",
	}

	raw, err := json.Marshal(viewOf(req, start.Add(time.Hour)))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	decoded := map[string]interface{}{}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if decoded["status"] != "OPEN" {
		t.Errorf("stored status on the wire = %v, want OPEN", decoded["status"])
	}
	if decoded["viewStatus"] != "IN_PROGRESS" {
		t.Errorf("view status on the wire = %v, want IN_PROGRESS", decoded["viewStatus"])
	}
	if decoded["requestId"] != "req-1" {
		t.Errorf("requestId on the wire = %v", decoded["requestId"])
	}
}
