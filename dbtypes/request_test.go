package dbtypes

import (
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func sampleRequest() *Request {
	return &Request{
		RequestID:    "req-1",
		Title:        "Need help soldering",
		Description:  "Bring your own iron",
		RequestTypes: []RequestType{TypeHardware, TypeOther},
		Tags:         []Tag{TagUrgent, TagIndoor},
		Location: Location{
			Latitude:  46.5191,
			Longitude: 6.5668,
			Name:      "Rolex Learning Center",
		},
		LocationName:    "RLC",
		Status:          StatusOpen,
		StartTimeStamp:  time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
		ExpirationTime:  time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
		People:          []string{"helper-a", "helper-b"},
		SelectedHelpers: []string{},
		CreatorID:       "creator-1",
	}
}

func TestRequestDocRoundTrip(t *testing.T) {
	want := sampleRequest()

	got, err := RequestFromDoc(want.ToDoc())
	if err != nil {
		t.Fatalf("RequestFromDoc: %v", err)
	}

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestRequestDocRoundTripFromInterfaceLists(t *testing.T) {
	// Firestore hands lists back as []interface{}; make sure decoding
	// doesn't depend on the []string shape ToDoc produces.
	doc := sampleRequest().ToDoc()
	doc["requestType"] = []interface{}{"HARDWARE", "OTHER"}
	doc["tags"] = []interface{}{"URGENT", "INDOOR"}
	doc["people"] = []interface{}{"helper-a", "helper-b"}
	doc["selectedHelpers"] = []interface{}{}

	got, err := RequestFromDoc(doc)
	if err != nil {
		t.Fatalf("RequestFromDoc: %v", err)
	}
	if diff := cmp.Diff(sampleRequest(), got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestRequestFromDocEnumNamesOnWire(t *testing.T) {
	doc := sampleRequest().ToDoc()

	if got := doc["status"]; got != "OPEN" {
		t.Errorf("status on the wire = %v, want symbolic name OPEN", got)
	}
	loc, ok := doc["location"].(map[string]interface{})
	if !ok {
		t.Fatalf("location on the wire = %T, want nested map", doc["location"])
	}
	if loc["name"] != "Rolex Learning Center" {
		t.Errorf("location.name = %v", loc["name"])
	}
}

func TestRequestFromDocMissingField(t *testing.T) {
	doc := sampleRequest().ToDoc()
	delete(doc, "creatorId")

	if _, err := RequestFromDoc(doc); err == nil {
		t.Error("want error for missing creatorId, got nil")
	}
}

func TestRequestFromDocBadStatus(t *testing.T) {
	doc := sampleRequest().ToDoc()
	doc["status"] = "DONE"

	_, err := RequestFromDoc(doc)
	if err == nil {
		t.Fatal("want error for unknown status, got nil")
	}
	if !strings.Contains(err.Error(), "DONE") {
		t.Errorf("error should name the bad value, got %v", err)
	}
}

func TestRequestFromDocToleratesMissingLocation(t *testing.T) {
	doc := sampleRequest().ToDoc()
	delete(doc, "location")

	got, err := RequestFromDoc(doc)
	if err != nil {
		t.Fatalf("RequestFromDoc: %v", err)
	}
	if got.Location != (Location{}) {
		t.Errorf("location = %+v, want zero location", got.Location)
	}
}

func TestRequestFromDocToleratesMissingSelectedHelpers(t *testing.T) {
	doc := sampleRequest().ToDoc()
	delete(doc, "selectedHelpers")

	got, err := RequestFromDoc(doc)
	if err != nil {
		t.Fatalf("RequestFromDoc: %v", err)
	}
	if len(got.SelectedHelpers) != 0 {
		t.Errorf("selectedHelpers = %v, want empty", got.SelectedHelpers)
	}
}

func TestViewStatusTimeWindow(t *testing.T) {
	start := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	expiration := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		status RequestStatus
		now    time.Time
		want   RequestStatus
	}{
		{"before start", StatusOpen, start.Add(-time.Hour), StatusOpen},
		{"at start", StatusOpen, start, StatusInProgress},
		{"inside window", StatusOpen, start.Add(time.Hour), StatusInProgress},
		{"at expiration", StatusOpen, expiration, StatusCompleted},
		{"after expiration", StatusOpen, expiration.Add(time.Hour), StatusCompleted},
		{"stored in-progress past expiration", StatusInProgress, expiration.Add(time.Minute), StatusCompleted},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := sampleRequest()
			r.Status = tc.status
			r.StartTimeStamp = start
			r.ExpirationTime = expiration
			if got := r.ViewStatus(tc.now); got != tc.want {
				t.Errorf("ViewStatus(%v) = %v, want %v", tc.now, got, tc.want)
			}
		})
	}
}

func TestViewStatusTerminalStable(t *testing.T) {
	times := []time.Time{
		time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 3, 1, 11, 0, 0, 0, time.UTC),
		time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	for _, status := range []RequestStatus{StatusCancelled, StatusArchived, StatusCompleted} {
		r := sampleRequest()
		r.Status = status
		for _, now := range times {
			if got := r.ViewStatus(now); got != status {
				t.Errorf("ViewStatus(%v) with stored %v = %v, want stored status", now, status, got)
			}
		}
	}
}

func TestViewStatusCollapsedWindow(t *testing.T) {
	// start == expiration == now must read COMPLETED, not IN_PROGRESS.
	t0 := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	r := sampleRequest()
	r.Status = StatusOpen
	r.StartTimeStamp = t0
	r.ExpirationTime = t0

	if got := r.ViewStatus(t0); got != StatusCompleted {
		t.Errorf("ViewStatus at collapsed window = %v, want COMPLETED", got)
	}
}

func TestParseEnums(t *testing.T) {
	if _, err := ParseRequestStatus("IN_PROGRESS"); err != nil {
		t.Errorf("ParseRequestStatus(IN_PROGRESS): %v", err)
	}
	if _, err := ParseRequestStatus("in_progress"); err == nil {
		t.Error("ParseRequestStatus should be case-sensitive")
	}
	if _, err := ParseRequestType("LOST_AND_FOUND"); err != nil {
		t.Errorf("ParseRequestType(LOST_AND_FOUND): %v", err)
	}
	if _, err := ParseTag("GROUP_WORK"); err != nil {
		t.Errorf("ParseTag(GROUP_WORK): %v", err)
	}
	if _, err := ParseTag("BOGUS"); err == nil {
		t.Error("ParseTag(BOGUS) should fail")
	}
}

func TestStatusPredicates(t *testing.T) {
	for _, s := range []RequestStatus{StatusOpen, StatusInProgress} {
		if !s.Live() || s.Terminal() {
			t.Errorf("%v should be live and not terminal", s)
		}
	}
	for _, s := range []RequestStatus{StatusArchived, StatusCompleted, StatusCancelled} {
		if s.Live() || !s.Terminal() {
			t.Errorf("%v should be terminal and not live", s)
		}
	}
}
