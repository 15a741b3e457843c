package model

import "time"

const (
	StatusBooked    = "booked"
	StatusCancelled = "cancelled"
)

// SlotLayout is the wire form of an appointment slot: UTC with zero seconds.
const SlotLayout = "2006-01-02T15:04:00Z"

type Appointment struct {
	ID              string
	UserName        string
	ContactNumber   string
	AppointmentSlot time.Time
	Status          string
	CancelledAt     *time.Time
	CreatedAt       time.Time
}

// SlotString renders the slot in SlotLayout.
func (a Appointment) SlotString() string {
	return a.AppointmentSlot.UTC().Format(SlotLayout)
}

// Profile is the identity view returned by a phone-number lookup.
type Profile struct {
	UserName      string `json:"user_name"`
	ContactNumber string `json:"contact_number"`
}

// CollisionWindow is the half-width of the window around a slot in which another booked
// slot collides. Bounds are inclusive: 29 minutes apart collide, 30 do not.
const CollisionWindow = 29 * time.Minute
