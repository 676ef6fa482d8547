package dblayer

import (
	"errors"
	"strings"
	"testing"
	"time"

	"reach-out/dbtypes"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func openRequest() *dbtypes.Request {
	return &dbtypes.Request{
		RequestID:      "req-1",
		Title:          "Need help moving",
		Status:         dbtypes.StatusOpen,
		StartTimeStamp: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
		ExpirationTime: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
		People:         []string{"helper-a", "helper-b"},
		CreatorID:      "creator-1",
	}
}

func TestValidateAccept(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*dbtypes.Request)
		caller  string
		wantErr error
	}{
		{"new helper", nil, "helper-c", nil},
		{"creator accepts own", nil, "creator-1", ErrInvalidArgument},
		{"already accepted", nil, "helper-a", ErrAlreadyInRelation},
		{"completed request", func(r *dbtypes.Request) { r.Status = dbtypes.StatusCompleted }, "helper-c", ErrInvalidStatus},
		{"cancelled request", func(r *dbtypes.Request) { r.Status = dbtypes.StatusCancelled }, "helper-c", ErrInvalidStatus},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := openRequest()
			if tc.mutate != nil {
				tc.mutate(req)
			}
			err := validateAccept(req, tc.caller)
			if tc.wantErr == nil && err != nil {
				t.Fatalf("validateAccept: %v", err)
			}
			if tc.wantErr != nil && !errors.Is(err, tc.wantErr) {
				t.Errorf("validateAccept = %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestValidateCancelAcceptance(t *testing.T) {
	req := openRequest()

	if err := validateCancelAcceptance(req, "helper-a"); err != nil {
		t.Errorf("member should be able to cancel: %v", err)
	}
	if err := validateCancelAcceptance(req, "creator-1"); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("creator cancel = %v, want ErrInvalidArgument", err)
	}
	if err := validateCancelAcceptance(req, "stranger"); !errors.Is(err, ErrNotInRelation) {
		t.Errorf("non-member cancel = %v, want ErrNotInRelation", err)
	}
}

func TestValidateClose(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*dbtypes.Request)
		caller  string
		helpers []string
		wantErr error
	}{
		{"creator closes with helpers", nil, "creator-1", []string{"helper-a", "helper-b"}, nil},
		{"creator closes with none selected", nil, "creator-1", nil, nil},
		{"non-creator", nil, "helper-a", nil, ErrUnauthorized},
		{"selected stranger", nil, "creator-1", []string{"stranger"}, ErrUserNotHelper},
		{"already completed", func(r *dbtypes.Request) { r.Status = dbtypes.StatusCompleted }, "creator-1", nil, ErrInvalidStatus},
		{"archived", func(r *dbtypes.Request) { r.Status = dbtypes.StatusArchived }, "creator-1", nil, ErrInvalidStatus},
		{"in progress still closable", func(r *dbtypes.Request) { r.Status = dbtypes.StatusInProgress }, "creator-1", []string{"helper-a"}, nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := openRequest()
			if tc.mutate != nil {
				tc.mutate(req)
			}
			err := validateClose(req, tc.caller, tc.helpers)
			if tc.wantErr == nil && err != nil {
				t.Fatalf("validateClose: %v", err)
			}
			if tc.wantErr != nil && !errors.Is(err, tc.wantErr) {
				t.Errorf("validateClose = %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestValidateCloseNamesTheStranger(t *testing.T) {
	err := validateClose(openRequest(), "creator-1", []string{"stranger"})
	if err == nil || !errors.Is(err, ErrUserNotHelper) {
		t.Fatalf("validateClose = %v, want ErrUserNotHelper", err)
	}
	if got := err.Error(); !strings.Contains(got, "stranger") {
		t.Errorf("error should name the offending helper, got %q", got)
	}
}

func TestValidateCounterAmount(t *testing.T) {
	tests := []struct {
		amount int64
		ok     bool
	}{
		{1, true},
		{1000, true},
		{0, false},
		{-5, false},
		{1001, false},
	}
	for _, tc := range tests {
		err := validateCounterAmount(tc.amount)
		if tc.ok && err != nil {
			t.Errorf("validateCounterAmount(%d): %v", tc.amount, err)
		}
		if !tc.ok && !errors.Is(err, ErrInvalidArgument) {
			t.Errorf("validateCounterAmount(%d) = %v, want ErrInvalidArgument", tc.amount, err)
		}
	}
}

func TestWrapStoreError(t *testing.T) {
	unavailable := status.Error(codes.Unavailable, "no connection")
	if err := wrapStoreError(unavailable, "testing"); !errors.Is(err, ErrNetworkUnavailable) {
		t.Errorf("Unavailable maps to %v, want ErrNetworkUnavailable", err)
	}

	notFound := status.Error(codes.NotFound, "no such document")
	if err := wrapStoreError(notFound, "testing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("NotFound maps to %v, want ErrNotFound", err)
	}

	plain := errors.New("boom")
	err := wrapStoreError(plain, "testing")
	if errors.Is(err, ErrNetworkUnavailable) || errors.Is(err, ErrNotFound) {
		t.Errorf("plain error should not map to a taxonomy sentinel, got %v", err)
	}
	if !errors.Is(err, plain) {
		t.Errorf("plain error should still be unwrappable, got %v", err)
	}
}

func TestRequireCaller(t *testing.T) {
	if err := requireCaller(""); !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("requireCaller(\"\") = %v, want ErrUnauthenticated", err)
	}
	if err := requireCaller("user-1"); err != nil {
		t.Errorf("requireCaller(user-1) = %v, want nil", err)
	}
}
