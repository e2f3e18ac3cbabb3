package assistant

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Action type tags as they appear in model replies.
const (
	ActionAddToList         = "add_to_list"
	ActionCreateAppointment = "create_appointment"
	ActionCreateContact     = "create_contact"
)

var (
	// ErrUnknownAction is returned by DecodeAction for an unrecognised type tag.
	ErrUnknownAction = errors.New("unknown action type")
	// ErrMalformedAction is returned when an action's data does not match its type.
	ErrMalformedAction = errors.New("malformed action")
)

// RawAction is an action exactly as received, before validation.
type RawAction struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Action is one of AddToList, CreateAppointment or CreateContact.
type Action interface {
	Kind() string
	validate() error
}

// ItemInput is one item of an add_to_list action. A bare JSON string is
// accepted as an item with only a name.
type ItemInput struct {
	Name     string   `json:"name"`
	Category string   `json:"category,omitempty"`
	Quantity *float64 `json:"quantity,omitempty"`
	Unit     string   `json:"unit,omitempty"`
	Amount   *float64 `json:"amount,omitempty"`
	Currency string   `json:"currency,omitempty"`
	Priority string   `json:"priority,omitempty"`
}

func (i *ItemInput) UnmarshalJSON(data []byte) error {
	if bytes.HasPrefix(bytes.TrimSpace(data), []byte(`"`)) {
		var name string
		if err := json.Unmarshal(data, &name); err != nil {
			return err
		}
		*i = ItemInput{Name: name}
		return nil
	}
	type plain ItemInput
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*i = ItemInput(p)
	return nil
}

type AddToList struct {
	ListType string      `json:"listType,omitempty"`
	Items    []ItemInput `json:"items"`
}

func (AddToList) Kind() string { return ActionAddToList }

func (a AddToList) validate() error {
	if len(a.Items) == 0 {
		return errors.New("items: at least one item is required")
	}
	for i, it := range a.Items {
		if strings.TrimSpace(it.Name) == "" {
			return fmt.Errorf("items[%d]: name is required", i)
		}
	}
	return nil
}

type AppointmentInput struct {
	Title       string `json:"title"`
	Date        string `json:"date,omitempty"`
	Description string `json:"description,omitempty"`
	Recurrence  string `json:"recurrence,omitempty"`
}

type CreateAppointment struct {
	Appointment AppointmentInput `json:"appointment"`
}

func (CreateAppointment) Kind() string { return ActionCreateAppointment }

func (a CreateAppointment) validate() error {
	if strings.TrimSpace(a.Appointment.Title) == "" {
		return errors.New("appointment.title is required")
	}
	switch a.Appointment.Recurrence {
	case "", "daily", "weekly", "monthly", "yearly":
		return nil
	default:
		return fmt.Errorf("appointment.recurrence %q is not supported", a.Appointment.Recurrence)
	}
}

type ContactInput struct {
	Name    string `json:"name"`
	Company string `json:"company,omitempty"`
	Title   string `json:"title,omitempty"`
	Email   string `json:"email,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Website string `json:"website,omitempty"`
	Address string `json:"address,omitempty"`
	Notes   string `json:"notes,omitempty"`
}

type FollowUpInput struct {
	Title string `json:"title,omitempty"`
	Date  string `json:"date,omitempty"`
}

type CreateContact struct {
	Contact  ContactInput   `json:"contact"`
	Reminder *FollowUpInput `json:"reminder,omitempty"`
}

func (CreateContact) Kind() string { return ActionCreateContact }

func (a CreateContact) validate() error {
	c := a.Contact
	if strings.TrimSpace(c.Name) == "" && strings.TrimSpace(c.Company) == "" &&
		strings.TrimSpace(c.Email) == "" && strings.TrimSpace(c.Phone) == "" {
		return errors.New("contact needs at least a name, company, email or phone")
	}
	return nil
}

// DecodeAction validates a raw action into its concrete variant.
func DecodeAction(raw RawAction) (Action, error) {
	var a Action
	switch raw.Type {
	case ActionAddToList:
		var v AddToList
		if err := decodeData(raw.Data, &v); err != nil {
			return nil, err
		}
		a = v
	case ActionCreateAppointment:
		var v CreateAppointment
		if err := decodeData(raw.Data, &v); err != nil {
			return nil, err
		}
		a = v
	case ActionCreateContact:
		var v CreateContact
		if err := decodeData(raw.Data, &v); err != nil {
			return nil, err
		}
		a = v
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, raw.Type)
	}
	if err := a.validate(); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrMalformedAction, raw.Type, err)
	}
	return a, nil
}

func decodeData(data json.RawMessage, v any) error {
	if len(bytes.TrimSpace(data)) == 0 || bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return fmt.Errorf("%w: missing data", ErrMalformedAction)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedAction, err)
	}
	return nil
}
