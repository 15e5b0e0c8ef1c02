package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// TimeSlot is one of the four fixed daily facility bands.
type TimeSlot string

const (
	SlotMorning   TimeSlot = "09:00-11:00"
	SlotAfternoon TimeSlot = "12:00-14:00"
	SlotEvening   TimeSlot = "15:00-17:00"
	SlotNight     TimeSlot = "18:00-20:00"
)

var slotLabels = map[TimeSlot]string{
	SlotMorning:   "Morning (9 AM - 11 AM)",
	SlotAfternoon: "Afternoon (12 PM - 2 PM)",
	SlotEvening:   "Evening (3 PM - 5 PM)",
	SlotNight:     "Night (6 PM - 8 PM)",
}

// TimeSlotOption is the listing form of a slot.
type TimeSlotOption struct {
	Value TimeSlot `json:"value"`
	Label string   `json:"label"`
}

// TimeSlots returns the slots in chronological order.
func TimeSlots() []TimeSlotOption {
	order := []TimeSlot{SlotMorning, SlotAfternoon, SlotEvening, SlotNight}
	out := make([]TimeSlotOption, len(order))
	for i, s := range order {
		out[i] = TimeSlotOption{Value: s, Label: slotLabels[s]}
	}
	return out
}

func (s TimeSlot) Valid() bool {
	_, ok := slotLabels[s]
	return ok
}

// Label is the human readable band, or the raw value for unknown slots.
func (s TimeSlot) Label() string {
	if l, ok := slotLabels[s]; ok {
		return l
	}
	return string(s)
}

const dateLayout = "2006-01-02"

// Date is a calendar date without time of day, serialized as YYYY-MM-DD.
type Date struct {
	time.Time
}

func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", s)
	}
	return Date{t}, nil
}

func (d Date) String() string { return d.Format(dateLayout) }

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Value stores the date as its YYYY-MM-DD string, which Postgres casts to DATE.
func (d Date) Value() (driver.Value, error) {
	return d.String(), nil
}

func (d *Date) Scan(src any) error {
	switch v := src.(type) {
	case time.Time:
		*d = Date{time.Date(v.Year(), v.Month(), v.Day(), 0, 0, 0, 0, time.UTC)}
		return nil
	case string:
		parsed, err := ParseDate(v)
		*d = parsed
		return err
	case []byte:
		parsed, err := ParseDate(string(v))
		*d = parsed
		return err
	default:
		return fmt.Errorf("cannot scan %T into Date", src)
	}
}
