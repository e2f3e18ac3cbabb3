package profile

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// ErrInvalidPreferences wraps every validation failure.
var ErrInvalidPreferences = errors.New("invalid preferences")

const (
	maxListEntries = 20
	maxEntryLen    = 60
	maxShortText   = 200
	maxLongText    = 1000
)

var clockTime = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)

// Preferences is the typed preference profile attached to a user.
type Preferences struct {
	Dietary            []string       `json:"dietary,omitempty"`
	Religious          string         `json:"religious,omitempty"`
	CommunicationStyle string         `json:"communicationStyle,omitempty"`
	Interests          []string       `json:"interests,omitempty"`
	FamilyDetails      string         `json:"familyDetails,omitempty"`
	SleepSchedule      *SleepSchedule `json:"sleepSchedule,omitempty"`
}

// SleepSchedule times are 24h HH:MM in the assistant timezone.
type SleepSchedule struct {
	Bedtime  string `json:"bedtime,omitempty"`
	WakeTime string `json:"wakeTime,omitempty"`
}

// IsZero reports whether no preference is set.
func (p Preferences) IsZero() bool {
	return len(p.Dietary) == 0 && p.Religious == "" && p.CommunicationStyle == "" &&
		len(p.Interests) == 0 && p.FamilyDetails == "" && p.SleepSchedule == nil
}

// Normalize trims whitespace and drops empty list entries.
func (p Preferences) Normalize() Preferences {
	p.Dietary = cleanList(p.Dietary)
	p.Interests = cleanList(p.Interests)
	p.Religious = strings.TrimSpace(p.Religious)
	p.CommunicationStyle = strings.TrimSpace(p.CommunicationStyle)
	p.FamilyDetails = strings.TrimSpace(p.FamilyDetails)
	if p.SleepSchedule != nil {
		s := SleepSchedule{
			Bedtime:  strings.TrimSpace(p.SleepSchedule.Bedtime),
			WakeTime: strings.TrimSpace(p.SleepSchedule.WakeTime),
		}
		if s == (SleepSchedule{}) {
			p.SleepSchedule = nil
		} else {
			p.SleepSchedule = &s
		}
	}
	return p
}

func cleanList(in []string) []string {
	var out []string
	for _, v := range in {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// Validate checks lengths and time formats.
func (p Preferences) Validate() error {
	var errs []error
	check := func(field, v string, max int) {
		if utf8.RuneCountInString(v) > max {
			errs = append(errs, fmt.Errorf("%s longer than %d characters", field, max))
		}
	}
	checkList := func(field string, vs []string) {
		if len(vs) > maxListEntries {
			errs = append(errs, fmt.Errorf("%s has %d entries, at most %d allowed", field, len(vs), maxListEntries))
		}
		for _, v := range vs {
			check(field+" entry", v, maxEntryLen)
		}
	}

	checkList("dietary", p.Dietary)
	checkList("interests", p.Interests)
	check("religious", p.Religious, maxShortText)
	check("communicationStyle", p.CommunicationStyle, maxShortText)
	check("familyDetails", p.FamilyDetails, maxLongText)
	if s := p.SleepSchedule; s != nil {
		if s.Bedtime != "" && !clockTime.MatchString(s.Bedtime) {
			errs = append(errs, fmt.Errorf("sleepSchedule.bedtime %q is not HH:MM", s.Bedtime))
		}
		if s.WakeTime != "" && !clockTime.MatchString(s.WakeTime) {
			errs = append(errs, fmt.Errorf("sleepSchedule.wakeTime %q is not HH:MM", s.WakeTime))
		}
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidPreferences, errors.Join(errs...))
}

// Decode strictly parses a preferences document received from a client:
// unknown fields are rejected, values are normalized and validated.
func Decode(data []byte) (Preferences, error) {
	var p Preferences
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&p); err != nil {
		return Preferences{}, fmt.Errorf("%w: %w", ErrInvalidPreferences, err)
	}
	p = p.Normalize()
	if err := p.Validate(); err != nil {
		return Preferences{}, err
	}
	return p, nil
}
