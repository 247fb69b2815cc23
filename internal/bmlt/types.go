package bmlt

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Venue type codes used by the root server.
const (
	VenueTypeInPerson = 1
	VenueTypeVirtual  = 2
	VenueTypeHybrid   = 3
)

// Service body type codes.
const (
	ServiceBodyTypeArea   = "AS"
	ServiceBodyTypeRegion = "RS"
)

// Config holds root server API configuration.
type Config struct {
	BaseURL    string        `yaml:"base_url"`
	Username   string        `yaml:"username"`
	Password   string        `yaml:"password"`
	Timeout    time.Duration `yaml:"-"`
	MaxRetries int           `yaml:"max_retries"`
}

// ServiceBody is a service body record from the root server.
type ServiceBody struct {
	ID              int    `json:"id"`
	ParentID        int    `json:"parentId,omitempty"`
	Name            string `json:"name"`
	Description     string `json:"description,omitempty"`
	Type            string `json:"type"`
	WorldID         string `json:"worldId,omitempty"`
	AdminUserID     int    `json:"adminUserId"`
	AssignedUserIDs []int  `json:"assignedUserIds"`
}

// ServiceBodyCreate is the payload for creating a service body.
type ServiceBodyCreate struct {
	Name            string `json:"name"`
	Description     string `json:"description"`
	Type            string `json:"type"`
	WorldID         string `json:"worldId,omitempty"`
	AdminUserID     int    `json:"adminUserId"`
	AssignedUserIDs []int  `json:"assignedUserIds"`
}

// Format is a meeting format record. Multiple formats may share a
// NAWS world code, so code lookups yield sets of ids.
type Format struct {
	ID      int    `json:"id"`
	WorldID string `json:"worldId,omitempty"`
	Type    string `json:"type,omitempty"`
}

// Meeting is a meeting record from the root server.
type Meeting struct {
	ID                 int     `json:"id"`
	ServiceBodyID      int     `json:"serviceBodyId"`
	FormatIDs          []int   `json:"formatIds"`
	VenueType          int     `json:"venueType"`
	Day                int     `json:"day"`
	StartTime          string  `json:"startTime"`
	Duration           string  `json:"duration"`
	Name               string  `json:"name"`
	WorldID            string  `json:"worldId,omitempty"`
	Latitude           float64 `json:"latitude"`
	Longitude          float64 `json:"longitude"`
	Published          bool    `json:"published"`
	LocationText       string  `json:"location_text,omitempty"`
	LocationInfo       string  `json:"location_info,omitempty"`
	LocationStreet     string  `json:"location_street,omitempty"`
	LocationMunicipality string `json:"location_municipality,omitempty"`
	LocationProvince   string  `json:"location_province,omitempty"`
	LocationPostalCode string  `json:"location_postal_code_1,omitempty"`
	LocationNation     string  `json:"location_nation,omitempty"`
	VirtualMeetingLink string  `json:"virtual_meeting_link,omitempty"`
	PhoneMeetingNumber string  `json:"phone_meeting_number,omitempty"`
}

// MeetingCreate is the payload for creating a meeting.
type MeetingCreate struct {
	ServiceBodyID      int     `json:"serviceBodyId"`
	FormatIDs          []int   `json:"formatIds"`
	VenueType          int     `json:"venueType"`
	Day                int     `json:"day"`
	StartTime          string  `json:"startTime"`
	Duration           string  `json:"duration"`
	Name               string  `json:"name"`
	WorldID            string  `json:"worldId,omitempty"`
	Latitude           float64 `json:"latitude"`
	Longitude          float64 `json:"longitude"`
	Published          bool    `json:"published"`
	LocationText       string  `json:"location_text,omitempty"`
	LocationInfo       string  `json:"location_info,omitempty"`
	LocationStreet     string  `json:"location_street,omitempty"`
	LocationCitySubsection string `json:"location_city_subsection,omitempty"`
	LocationMunicipality string `json:"location_municipality,omitempty"`
	LocationProvince   string  `json:"location_province,omitempty"`
	LocationPostalCode string  `json:"location_postal_code_1,omitempty"`
	LocationNation     string  `json:"location_nation,omitempty"`
	VirtualMeetingLink string  `json:"virtual_meeting_link,omitempty"`
	PhoneMeetingNumber string  `json:"phone_meeting_number,omitempty"`
}

// User is an authenticated root server user.
type User struct {
	ID          int    `json:"id"`
	Username    string `json:"username"`
	Type        string `json:"type"`
	DisplayName string `json:"displayName,omitempty"`
}

// tokenResponse is the auth token grant.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresAt   int64  `json:"expires_at"`
	TokenType   string `json:"token_type"`
	UserID      int    `json:"userId"`
}

// APIError is a structured error response from the root server,
// carrying an optional machine message and per-field validation errors.
type APIError struct {
	StatusCode int
	Message    string              `json:"message"`
	Errors     map[string][]string `json:"errors"`
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("root server error (status %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("root server error (status %d)", e.StatusCode)
}

// Flatten reduces the error to a single human-readable string:
// the machine message if present, otherwise the field errors joined
// in field order, otherwise the bare status.
func (e *APIError) Flatten() string {
	if len(e.Errors) > 0 {
		fields := make([]string, 0, len(e.Errors))
		for f := range e.Errors {
			fields = append(fields, f)
		}
		sort.Strings(fields)
		var parts []string
		for _, f := range fields {
			parts = append(parts, fmt.Sprintf("%s: %s", f, strings.Join(e.Errors[f], "; ")))
		}
		return strings.Join(parts, ", ")
	}
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("request failed with status %d", e.StatusCode)
}
