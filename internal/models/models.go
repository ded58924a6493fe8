package models

import (
	"regexp"
	"strings"
)

// Application is one submission of the apply form. It lives for a single request.
type Application struct {
	FullName   string    `json:"fullName"`
	Email      string    `json:"email"`
	Phone      string    `json:"phone,omitempty"`
	Country    string    `json:"country"`
	Education  Education `json:"education,omitempty"`
	Skills     string    `json:"skills,omitempty"`
	Experience string    `json:"experience,omitempty"`
	Pitch      string    `json:"pitch"`
}

type Education string

const (
	EducationHighSchool Education = "high-school"
	EducationBachelor   Education = "bachelor"
	EducationMaster     Education = "master"
	EducationPhD        Education = "phd"
	EducationOther      Education = "other"
)

var educationLabels = map[Education]string{
	EducationHighSchool: "High School",
	EducationBachelor:   "Bachelor's Degree",
	EducationMaster:     "Master's Degree",
	EducationPhD:        "PhD",
	EducationOther:      "Other",
}

func (e Education) Known() bool {
	_, ok := educationLabels[e]
	return ok
}

// Label is the human-readable form; unknown values are shown as submitted.
func (e Education) Label() string {
	if label, ok := educationLabels[e]; ok {
		return label
	}
	return string(e)
}

// RequiredFields lists form field names in the order they are reported.
var RequiredFields = []string{"fullName", "email", "country", "pitch"}

const (
	NotProvided  = "Not provided"
	NotSpecified = "Not specified"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

func ValidEmail(email string) bool {
	return emailPattern.MatchString(email)
}

func (a Application) field(name string) string {
	switch name {
	case "fullName":
		return a.FullName
	case "email":
		return a.Email
	case "country":
		return a.Country
	case "pitch":
		return a.Pitch
	}
	return ""
}

// MissingFields returns the required fields that are empty or whitespace.
func (a Application) MissingFields() []string {
	var missing []string
	for _, name := range RequiredFields {
		if strings.TrimSpace(a.field(name)) == "" {
			missing = append(missing, name)
		}
	}
	return missing
}

func OrDefault(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
