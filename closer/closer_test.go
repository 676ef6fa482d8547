package closer

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

type fakeRequestStore struct {
	creatorBonus bool
	err          error

	gotCaller  string
	gotRequest string
	gotHelpers []string
}

func (f *fakeRequestStore) CloseRequest(ctx context.Context, callerID, requestID string, selectedHelperIDs []string) (bool, error) {
	f.gotCaller = callerID
	f.gotRequest = requestID
	f.gotHelpers = selectedHelperIDs
	return f.creatorBonus, f.err
}

type fakeProfileStore struct {
	awardErr   error
	batchErr   error
	receiveErr error

	awards      map[string]int64
	batchAwards map[string]int64
	received    map[string]int64
}

func (f *fakeProfileStore) AwardKudos(ctx context.Context, userID string, amount int64) error {
	if f.awardErr != nil {
		return f.awardErr
	}
	if f.awards == nil {
		f.awards = map[string]int64{}
	}
	f.awards[userID] += amount
	return nil
}

func (f *fakeProfileStore) AwardKudosBatch(ctx context.Context, awards map[string]int64) error {
	if f.batchErr != nil {
		return f.batchErr
	}
	f.batchAwards = awards
	return nil
}

func (f *fakeProfileStore) ReceiveHelp(ctx context.Context, userID string, amount int64) error {
	if f.receiveErr != nil {
		return f.receiveErr
	}
	if f.received == nil {
		f.received = map[string]int64{}
	}
	f.received[userID] += amount
	return nil
}

func TestCloseSuccess(t *testing.T) {
	requests := &fakeRequestStore{}
	profiles := &fakeProfileStore{}
	c := New(requests, profiles)

	result := c.Close(context.Background(), "creator-1", "req-1", []string{"helper-a", "helper-b"})

	if result.Outcome != OutcomeSuccess {
		t.Fatalf("outcome = %v, err = %v", result.Outcome, result.Err)
	}
	if !result.RequestClosed || !result.HelpersAwarded {
		t.Errorf("result = %+v, want request closed and helpers awarded", result)
	}
	if requests.gotCaller != "creator-1" || requests.gotRequest != "req-1" {
		t.Errorf("close called with %q/%q", requests.gotCaller, requests.gotRequest)
	}

	wantBatch := map[string]int64{"helper-a": KudosPerHelper, "helper-b": KudosPerHelper}
	if diff := cmp.Diff(wantBatch, profiles.batchAwards); diff != "" {
		t.Errorf("kudos batch mismatch (-want +got):\n%s", diff)
	}
	wantReceived := map[string]int64{"creator-1": HelpReceivedPerHelp}
	if diff := cmp.Diff(wantReceived, profiles.received); diff != "" {
		t.Errorf("received help mismatch (-want +got):\n%s", diff)
	}
}

func TestCloseWithoutHelpers(t *testing.T) {
	profiles := &fakeProfileStore{}
	c := New(&fakeRequestStore{}, profiles)

	result := c.Close(context.Background(), "creator-1", "req-1", nil)

	if result.Outcome != OutcomeSuccess || !result.RequestClosed {
		t.Fatalf("result = %+v, want clean success", result)
	}
	if result.HelpersAwarded {
		t.Error("no helpers were selected, none should be awarded")
	}
	if profiles.batchAwards != nil || profiles.received != nil {
		t.Errorf("no reward calls expected, got batch=%v received=%v", profiles.batchAwards, profiles.received)
	}
}

func TestCloseRequestFailureIsFatal(t *testing.T) {
	closeErr := errors.New("status does not allow")
	profiles := &fakeProfileStore{}
	c := New(&fakeRequestStore{err: closeErr}, profiles)

	result := c.Close(context.Background(), "creator-1", "req-1", []string{"helper-a"})

	if result.Outcome != OutcomeFailed || result.RequestClosed {
		t.Fatalf("result = %+v, want failed and not closed", result)
	}
	if !errors.Is(result.Err, closeErr) {
		t.Errorf("result.Err = %v, want wrapped close error", result.Err)
	}
	if profiles.batchAwards != nil || profiles.received != nil {
		t.Error("no rewards should run when the close itself fails")
	}
}

func TestCloseKudosFailureDegrades(t *testing.T) {
	batchErr := errors.New("profile store down")
	profiles := &fakeProfileStore{batchErr: batchErr}
	c := New(&fakeRequestStore{}, profiles)

	result := c.Close(context.Background(), "creator-1", "req-1", []string{"helper-a"})

	if result.Outcome != OutcomePartialSuccess {
		t.Fatalf("outcome = %v, want partial success", result.Outcome)
	}
	if !result.RequestClosed || result.HelpersAwarded {
		t.Errorf("result = %+v, want closed but helpers unawarded", result)
	}
	if !errors.Is(result.Err, batchErr) {
		t.Errorf("result.Err = %v, want wrapped batch error", result.Err)
	}
	if profiles.received == nil {
		t.Error("received-help should still be recorded after a kudos failure")
	}
}

func TestCloseCreatorBonus(t *testing.T) {
	profiles := &fakeProfileStore{}
	c := New(&fakeRequestStore{creatorBonus: true}, profiles)

	result := c.Close(context.Background(), "creator-1", "req-1", []string{"helper-a"})

	if result.Outcome != OutcomeSuccess || !result.CreatorAwarded {
		t.Fatalf("result = %+v, want success with creator awarded", result)
	}
	if got := profiles.awards["creator-1"]; got != KudosForCreatorResolution {
		t.Errorf("creator bonus = %d, want %d", got, KudosForCreatorResolution)
	}
}

func TestCloseCreatorBonusFailureDegrades(t *testing.T) {
	awardErr := errors.New("profile store down")
	profiles := &fakeProfileStore{awardErr: awardErr}
	c := New(&fakeRequestStore{creatorBonus: true}, profiles)

	result := c.Close(context.Background(), "creator-1", "req-1", nil)

	if result.Outcome != OutcomePartialSuccess || !result.RequestClosed {
		t.Fatalf("result = %+v, want partial success", result)
	}
	if result.CreatorAwarded {
		t.Error("creator should not read as awarded after a failed bonus")
	}
}

func TestCloseReceiveHelpFailure(t *testing.T) {
	receiveErr := errors.New("profile store down")
	profiles := &fakeProfileStore{receiveErr: receiveErr}
	c := New(&fakeRequestStore{}, profiles)

	result := c.Close(context.Background(), "creator-1", "req-1", []string{"helper-a"})

	if result.Outcome != OutcomeFailed {
		t.Fatalf("outcome = %v, want failed", result.Outcome)
	}
	if !result.RequestClosed {
		t.Error("the request stays closed even when the help counter fails")
	}
	if !errors.Is(result.Err, receiveErr) {
		t.Errorf("result.Err = %v, want wrapped receive error", result.Err)
	}
}
