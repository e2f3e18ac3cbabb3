package profile

import (
	"errors"
	"strings"
	"testing"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{"empty object", `{}`, false},
		{"full", `{"dietary":["vegan"],"religious":"none","communicationStyle":"casual","interests":["jazz"],"familyDetails":"married","sleepSchedule":{"bedtime":"22:00","wakeTime":"07:00"}}`, false},
		{"unknown field", `{"favoriteColor":"blue"}`, true},
		{"wrong type", `{"dietary":"vegan"}`, true},
		{"bad wake time", `{"sleepSchedule":{"wakeTime":"7am"}}`, true},
		{"too many interests", `{"interests":[` + strings.TrimSuffix(strings.Repeat(`"a",`, maxListEntries+1), ",") + `]}`, true},
		{"long religious", `{"religious":"` + strings.Repeat("r", maxShortText+1) + `"}`, true},
		{"not json", `dietary=vegan`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.body))
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidPreferences) {
					t.Errorf("error = %v, want ErrInvalidPreferences", err)
				}
				return
			}
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestNormalize_DropsEmptySleepSchedule(t *testing.T) {
	p := Preferences{SleepSchedule: &SleepSchedule{Bedtime: "  "}}.Normalize()
	if p.SleepSchedule != nil {
		t.Errorf("SleepSchedule = %+v, want nil", p.SleepSchedule)
	}
	if !p.IsZero() {
		t.Error("expected zero after normalize")
	}
}
