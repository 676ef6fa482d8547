// Package dbtypes holds the plain records stored in Firestore, together
// with their document codecs.
//
// The field contract here is shared with the status-updater job, which is a
// separate process reading and writing the same collections. Enum values are
// stored under their symbolic names, timestamps as native Firestore
// timestamps, and the location as a nested map. Do not rename fields without
// updating both sides.
package dbtypes

import (
	"fmt"
	"time"
)

// RequestStatus is the lifecycle state of a help request.
type RequestStatus string

const (
	StatusOpen       RequestStatus = "OPEN"
	StatusInProgress RequestStatus = "IN_PROGRESS"
	StatusArchived   RequestStatus = "ARCHIVED"
	StatusCompleted  RequestStatus = "COMPLETED"
	StatusCancelled  RequestStatus = "CANCELLED"
)

// ParseRequestStatus maps a stored symbolic name back to a status.
func ParseRequestStatus(s string) (RequestStatus, error) {
	switch RequestStatus(s) {
	case StatusOpen, StatusInProgress, StatusArchived, StatusCompleted, StatusCancelled:
		return RequestStatus(s), nil
	}
	return "", fmt.Errorf("unknown request status %q", s)
}

// Terminal reports whether the status admits no further acceptance or
// closure. ARCHIVED, COMPLETED, and CANCELLED are terminal.
func (s RequestStatus) Terminal() bool {
	return s == StatusArchived || s == StatusCompleted || s == StatusCancelled
}

// Live is the complement of Terminal for valid statuses.
func (s RequestStatus) Live() bool {
	return s == StatusOpen || s == StatusInProgress
}

// RequestType is a category tag for a request.
type RequestType string

const (
	TypeStudying     RequestType = "STUDYING"
	TypeStudyGroup   RequestType = "STUDY_GROUP"
	TypeHangingOut   RequestType = "HANGING_OUT"
	TypeEating       RequestType = "EATING"
	TypeSport        RequestType = "SPORT"
	TypeHardware     RequestType = "HARDWARE"
	TypeLostAndFound RequestType = "LOST_AND_FOUND"
	TypeOther        RequestType = "OTHER"
)

func ParseRequestType(s string) (RequestType, error) {
	switch RequestType(s) {
	case TypeStudying, TypeStudyGroup, TypeHangingOut, TypeEating, TypeSport, TypeHardware, TypeLostAndFound, TypeOther:
		return RequestType(s), nil
	}
	return "", fmt.Errorf("unknown request type %q", s)
}

// Tag is a free-form attribute of a request.
type Tag string

const (
	TagUrgent    Tag = "URGENT"
	TagEasy      Tag = "EASY"
	TagGroupWork Tag = "GROUP_WORK"
	TagSoloWork  Tag = "SOLO_WORK"
	TagOutdoor   Tag = "OUTDOOR"
	TagIndoor    Tag = "INDOOR"
)

func ParseTag(s string) (Tag, error) {
	switch Tag(s) {
	case TagUrgent, TagEasy, TagGroupWork, TagSoloWork, TagOutdoor, TagIndoor:
		return Tag(s), nil
	}
	return "", fmt.Errorf("unknown tag %q", s)
}

// Location is a point of interest attached to a request.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Name      string  `json:"name"`
}

// Request is a help-request posting.
type Request struct {
	RequestID   string `json:"requestId"`
	Title       string `json:"title"`
	Description string `json:"description"`

	RequestTypes []RequestType `json:"requestType"`
	Tags         []Tag         `json:"tags"`

	Location     Location `json:"location"`
	LocationName string   `json:"locationName"`

	Status         RequestStatus `json:"status"`
	StartTimeStamp time.Time     `json:"startTimeStamp"`
	ExpirationTime time.Time     `json:"expirationTime"`

	// People holds the user IDs that accepted the request. It is managed as
	// a set: accept and cancel-acceptance are union and difference, never
	// positional edits.
	People []string `json:"people"`

	// SelectedHelpers records which helpers were awarded kudos at closure.
	// Empty until the request is closed.
	SelectedHelpers []string `json:"selectedHelpers"`

	CreatorID string `json:"creatorId"`
}

// ViewStatus derives the status to display at the given instant without
// touching storage. Explicitly set terminal statuses always win; otherwise
// the time window decides. A request whose expiration is not after now shows
// COMPLETED even if its start lies in the future, so a window with
// start == expiration collapses to COMPLETED at the boundary.
func (r *Request) ViewStatus(now time.Time) RequestStatus {
	switch {
	case r.Status.Terminal():
		return r.Status
	case !r.ExpirationTime.After(now):
		return StatusCompleted
	case r.StartTimeStamp.After(now):
		return StatusOpen
	default:
		return StatusInProgress
	}
}

// HasHelper reports whether userID is in the accepted-helpers set.
func (r *Request) HasHelper(userID string) bool {
	for _, p := range r.People {
		if p == userID {
			return true
		}
	}
	return false
}

// ToDoc serializes the request into its Firestore document shape.
func (r *Request) ToDoc() map[string]interface{} {
	types := make([]string, 0, len(r.RequestTypes))
	for _, t := range r.RequestTypes {
		types = append(types, string(t))
	}
	tags := make([]string, 0, len(r.Tags))
	for _, t := range r.Tags {
		tags = append(tags, string(t))
	}

	return map[string]interface{}{
		"requestId":   r.RequestID,
		"title":       r.Title,
		"description": r.Description,
		"requestType": types,
		"location": map[string]interface{}{
			"latitude":  r.Location.Latitude,
			"longitude": r.Location.Longitude,
			"name":      r.Location.Name,
		},
		"locationName":    r.LocationName,
		"status":          string(r.Status),
		"startTimeStamp":  r.StartTimeStamp,
		"expirationTime":  r.ExpirationTime,
		"people":          append([]string{}, r.People...),
		"selectedHelpers": append([]string{}, r.SelectedHelpers...),
		"tags":            tags,
		"creatorId":       r.CreatorID,
	}
}

// RequestFromDoc decodes a Firestore document into a Request. The stored
// status is preserved as-is; callers that want the display status apply
// ViewStatus themselves.
func RequestFromDoc(data map[string]interface{}) (*Request, error) {
	r := &Request{}

	var err error
	if r.RequestID, err = docString(data, "requestId"); err != nil {
		return nil, err
	}
	if r.Title, err = docString(data, "title"); err != nil {
		return nil, err
	}
	if r.Description, err = docString(data, "description"); err != nil {
		return nil, err
	}
	if r.LocationName, err = docString(data, "locationName"); err != nil {
		return nil, err
	}
	if r.CreatorID, err = docString(data, "creatorId"); err != nil {
		return nil, err
	}

	rawStatus, err := docString(data, "status")
	if err != nil {
		return nil, err
	}
	if r.Status, err = ParseRequestStatus(rawStatus); err != nil {
		return nil, fmt.Errorf("field status: %w", err)
	}

	if r.StartTimeStamp, err = docTime(data, "startTimeStamp"); err != nil {
		return nil, err
	}
	if r.ExpirationTime, err = docTime(data, "expirationTime"); err != nil {
		return nil, err
	}

	rawTypes, err := docStringList(data, "requestType")
	if err != nil {
		return nil, err
	}
	for _, s := range rawTypes {
		t, err := ParseRequestType(s)
		if err != nil {
			return nil, fmt.Errorf("field requestType: %w", err)
		}
		r.RequestTypes = append(r.RequestTypes, t)
	}

	rawTags, err := docStringList(data, "tags")
	if err != nil {
		return nil, err
	}
	for _, s := range rawTags {
		t, err := ParseTag(s)
		if err != nil {
			return nil, fmt.Errorf("field tags: %w", err)
		}
		r.Tags = append(r.Tags, t)
	}

	if r.People, err = docStringList(data, "people"); err != nil {
		return nil, err
	}

	// selectedHelpers was introduced with the closure workflow; older
	// documents don't carry it.
	if _, ok := data["selectedHelpers"]; ok {
		if r.SelectedHelpers, err = docStringList(data, "selectedHelpers"); err != nil {
			return nil, err
		}
	}

	// A missing or malformed location decodes to the zero location rather
	// than failing the whole document.
	if loc, ok := data["location"].(map[string]interface{}); ok {
		lat, _ := loc["latitude"].(float64)
		lon, _ := loc["longitude"].(float64)
		name, _ := loc["name"].(string)
		r.Location = Location{Latitude: lat, Longitude: lon, Name: name}
	}

	return r, nil
}
