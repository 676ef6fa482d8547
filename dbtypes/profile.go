package dbtypes

import (
	"fmt"
	"strings"
	"time"
)

// UserSection is the campus section a user belongs to.
type UserSection string

const (
	SectionNone                UserSection = "NONE"
	SectionArchitecture        UserSection = "ARCHITECTURE"
	SectionChemistry           UserSection = "CHEMISTRY_AND_CHEMICAL_ENGINEERING"
	SectionCivilEngineering    UserSection = "CIVIL_ENGINEERING"
	SectionCommunication       UserSection = "COMMUNICATION_SCIENCE"
	SectionComputerScience     UserSection = "COMPUTER_SCIENCE"
	SectionDigitalHumanities   UserSection = "DIGITAL_HUMANITIES"
	SectionElectrical          UserSection = "ELECTRICAL_ENGINEERING"
	SectionEnvironmental       UserSection = "ENVIRONMENTAL_SCIENCES_AND_ENGINEERING"
	SectionFinancial           UserSection = "FINANCIAL_ENGINEERING"
	SectionLifeSciences        UserSection = "LIFE_SCIENCES_ENGINEERING"
	SectionManagement          UserSection = "MANAGEMENT_OF_TECHNOLOGY"
	SectionMaterials           UserSection = "MATERIALS_SCIENCE_AND_ENGINEERING"
	SectionMathematics         UserSection = "MATHEMATICS"
	SectionMechanical          UserSection = "MECHANICAL_ENGINEERING"
	SectionMicroengineering    UserSection = "MICROENGINEERING"
	SectionNeuroX              UserSection = "NEURO_X"
	SectionPhysics             UserSection = "PHYSICS"
	SectionQuantumEngineering  UserSection = "QUANTUM_SCIENCE_AND_ENGINEERING"
)

var sectionLabels = map[UserSection]string{
	SectionNone:               "None",
	SectionArchitecture:       "Architecture",
	SectionChemistry:          "Chemistry and Chemical Engineering",
	SectionCivilEngineering:   "Civil Engineering",
	SectionCommunication:      "Communication Science",
	SectionComputerScience:    "Computer Science",
	SectionDigitalHumanities:  "Digital Humanities",
	SectionElectrical:         "Electrical Engineering",
	SectionEnvironmental:      "Environmental Sciences and Engineering",
	SectionFinancial:          "Financial Engineering",
	SectionLifeSciences:       "Life Sciences Engineering",
	SectionManagement:         "Management of Technology",
	SectionMaterials:          "Materials Science and Engineering",
	SectionMathematics:        "Mathematics",
	SectionMechanical:         "Mechanical Engineering",
	SectionMicroengineering:   "Microengineering",
	SectionNeuroX:             "Neuro-X",
	SectionPhysics:            "Physics",
	SectionQuantumEngineering: "Quantum Science and Engineering",
}

// Label returns the human-readable section name.
func (s UserSection) Label() string {
	if l, ok := sectionLabels[s]; ok {
		return l
	}
	return sectionLabels[SectionNone]
}

// NormalizeSection maps a stored section value onto a known section. Blank
// values, the legacy "OTHER" value, and anything unrecognized collapse to
// NONE. Matching is case-insensitive and accepts either the symbolic name or
// the display label, since early app versions wrote labels.
func NormalizeSection(raw string) UserSection {
	if raw == "" || strings.EqualFold(raw, "OTHER") {
		return SectionNone
	}
	for s, label := range sectionLabels {
		if strings.EqualFold(raw, string(s)) || strings.EqualFold(raw, label) {
			return s
		}
	}
	return SectionNone
}

// UserProfile is one user's profile record.
//
// Each logical profile has two physical documents: a private one (the full
// record, readable only by its owner) and a public mirror with the email
// nulled out. The same codec serves both; blurring happens in the data layer
// at write time.
type UserProfile struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	LastName string `json:"lastName"`

	// Email is empty on public copies and on profiles whose owner chose not
	// to share it; it encodes as an explicit null in that case.
	Email string `json:"email,omitempty"`

	// PhotoURL points at the profile photo object, empty if unset.
	PhotoURL string `json:"photo,omitempty"`

	Kudos        int64 `json:"kudos"`
	HelpReceived int64 `json:"helpReceived"`

	FollowerCount  int64 `json:"followerCount"`
	FollowingCount int64 `json:"followingCount"`

	Section     UserSection `json:"section"`
	ArrivalDate time.Time   `json:"arrivalDate"`
}

// ToDoc serializes the profile into its Firestore document shape. The
// lowercased name shadow fields exist solely for case-insensitive search
// queries and are recomputed on every write.
func (p *UserProfile) ToDoc() map[string]interface{} {
	var email interface{}
	if p.Email != "" {
		email = p.Email
	}
	var photo interface{}
	if p.PhotoURL != "" {
		photo = p.PhotoURL
	}

	return map[string]interface{}{
		"id":                p.ID,
		"name":              p.Name,
		"lastName":          p.LastName,
		"email":             email,
		"photo":             photo,
		"kudos":             p.Kudos,
		"helpReceived":      p.HelpReceived,
		"followerCount":     p.FollowerCount,
		"followingCount":    p.FollowingCount,
		"section":           string(p.Section),
		"arrivalDate":       p.ArrivalDate,
		"nameLowercase":     strings.ToLower(p.Name),
		"lastNameLowercase": strings.ToLower(p.LastName),
	}
}

// Blurred returns the public-mirror view of the profile.
func (p *UserProfile) Blurred() *UserProfile {
	public := *p
	public.Email = ""
	return &public
}

// ProfileFromDoc decodes a Firestore document into a UserProfile. Counters
// default to zero and a missing arrival date to the zero time, matching what
// documents written before those fields existed look like.
func ProfileFromDoc(data map[string]interface{}) (*UserProfile, error) {
	p := &UserProfile{}

	var err error
	if p.ID, err = docString(data, "id"); err != nil {
		return nil, err
	}
	if p.Name, err = docString(data, "name"); err != nil {
		return nil, err
	}
	if p.LastName, err = docString(data, "lastName"); err != nil {
		return nil, err
	}
	if p.Email, err = docOptionalString(data, "email"); err != nil {
		return nil, err
	}
	if p.PhotoURL, err = docOptionalString(data, "photo"); err != nil {
		return nil, err
	}

	rawSection, err := docOptionalString(data, "section")
	if err != nil {
		return nil, err
	}
	p.Section = NormalizeSection(rawSection)

	p.Kudos = docCount(data, "kudos")
	p.HelpReceived = docCount(data, "helpReceived")
	p.FollowerCount = docCount(data, "followerCount")
	p.FollowingCount = docCount(data, "followingCount")

	if t, ok := data["arrivalDate"].(time.Time); ok {
		p.ArrivalDate = t
	}

	if p.Kudos < 0 || p.HelpReceived < 0 {
		return nil, fmt.Errorf("profile %s: negative counters (kudos=%d helpReceived=%d)", p.ID, p.Kudos, p.HelpReceived)
	}

	return p, nil
}
