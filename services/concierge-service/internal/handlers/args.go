package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ordinalArg accepts an appointment number sent as 2, "2" or "#2".
type ordinalArg string

func (o *ordinalArg) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*o = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*o = ordinalArg(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("appointment_number must be a number or string")
	}
	*o = ordinalArg(n.String())
	return nil
}

type identifyArgs struct {
	PhoneNumber string `json:"phone_number" validate:"required"`
}

type fetchSlotsArgs struct {
	Date string `json:"date" validate:"required"`
}

type bookArgs struct {
	Name          string `json:"name" validate:"required"`
	ContactNumber string `json:"contact_number" validate:"required"`
	Date          string `json:"date" validate:"required"`
	TimeStr       string `json:"time_str" validate:"required"`
}

type retrieveArgs struct {
	ContactNumber string `json:"contact_number"`
}

type modifyArgs struct {
	AppointmentNumber ordinalArg `json:"appointment_number" validate:"required"`
	NewDate           string     `json:"new_date" validate:"required"`
	NewTime           string     `json:"new_time" validate:"required"`
}

type cancelArgs struct {
	AppointmentNumber ordinalArg `json:"appointment_number" validate:"required"`
}

type summarizeArgs struct {
	Summary string `json:"summary"`
}

type createSessionRequest struct {
	RoomName string `json:"room_name" validate:"omitempty,max=128"`
}

// missingFields lists the json names of the fields that failed validation.
func missingFields(err error) []string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	out := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, fe.Field())
	}
	return out
}
