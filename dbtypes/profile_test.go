package dbtypes

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func sampleProfile() *UserProfile {
	return &UserProfile{
		ID:             "user-1",
		Name:           "Ada",
		LastName:       "Lovelace",
		Email:          "ada@example.edu",
		PhotoURL:       "https://storage.googleapis.com/photos/user-1.jpg",
		Kudos:          3,
		HelpReceived:   2,
		FollowerCount:  5,
		FollowingCount: 1,
		Section:        SectionComputerScience,
		ArrivalDate:    time.Date(2024, 9, 16, 0, 0, 0, 0, time.UTC),
	}
}

func TestProfileDocRoundTrip(t *testing.T) {
	want := sampleProfile()

	got, err := ProfileFromDoc(want.ToDoc())
	if err != nil {
		t.Fatalf("ProfileFromDoc: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestProfileDocNullsEmptyEmail(t *testing.T) {
	p := sampleProfile().Blurred()
	doc := p.ToDoc()

	if doc["email"] != nil {
		t.Errorf("blurred email on the wire = %v, want null", doc["email"])
	}

	got, err := ProfileFromDoc(doc)
	if err != nil {
		t.Fatalf("ProfileFromDoc: %v", err)
	}
	if got.Email != "" {
		t.Errorf("decoded blurred email = %q, want empty", got.Email)
	}
}

func TestProfileDocSearchShadows(t *testing.T) {
	doc := sampleProfile().ToDoc()
	if doc["nameLowercase"] != "ada" || doc["lastNameLowercase"] != "lovelace" {
		t.Errorf("search shadow fields = %v / %v", doc["nameLowercase"], doc["lastNameLowercase"])
	}
}

func TestProfileFromDocDefaultsCounters(t *testing.T) {
	doc := sampleProfile().ToDoc()
	delete(doc, "helpReceived")
	delete(doc, "followerCount")
	delete(doc, "followingCount")

	got, err := ProfileFromDoc(doc)
	if err != nil {
		t.Fatalf("ProfileFromDoc: %v", err)
	}
	if got.HelpReceived != 0 || got.FollowerCount != 0 || got.FollowingCount != 0 {
		t.Errorf("missing counters should default to zero, got %+v", got)
	}
}

func TestProfileFromDocRejectsNegativeCounters(t *testing.T) {
	doc := sampleProfile().ToDoc()
	doc["kudos"] = int64(-1)

	if _, err := ProfileFromDoc(doc); err == nil {
		t.Error("want error for negative kudos, got nil")
	}
}

func TestNormalizeSection(t *testing.T) {
	tests := []struct {
		raw  string
		want UserSection
	}{
		{"COMPUTER_SCIENCE", SectionComputerScience},
		{"computer_science", SectionComputerScience},
		{"Computer Science", SectionComputerScience},
		{"Neuro-X", SectionNeuroX},
		{"", SectionNone},
		{"OTHER", SectionNone},
		{"other", SectionNone},
		{"UNDERWATER_BASKET_WEAVING", SectionNone},
	}
	for _, tc := range tests {
		if got := NormalizeSection(tc.raw); got != tc.want {
			t.Errorf("NormalizeSection(%q) = %v, want %v", tc.raw, got, tc.want)
		}
	}
}
