package booking

import (
	"fmt"
	"strings"
	"time"
)

// SlotStatus is the tri-state of a single request field.
type SlotStatus string

const (
	StatusUnset     SlotStatus = "unset"
	StatusSet       SlotStatus = "set"
	StatusAmbiguous SlotStatus = "ambiguous"
)

// Field names as they appear in interpreter output and clarification routing.
const (
	FieldStartDate     = "start_date"
	FieldStartTime     = "start_time"
	FieldDurationHours = "duration_hours"
	FieldCapacity      = "capacity"
	FieldEquipment     = "equipment"
	FieldRequester     = "requester_name"
)

// requiredOrder governs clarification priority: time-related fields
// first, then capacity, then requester name. Equipment is optional.
var requiredOrder = []string{
	FieldStartDate,
	FieldStartTime,
	FieldDurationHours,
	FieldCapacity,
	FieldRequester,
}

type StringSlot struct {
	Value  string     `json:"value,omitempty"`
	Status SlotStatus `json:"status"`
}

type IntSlot struct {
	Value  int        `json:"value,omitempty"`
	Status SlotStatus `json:"status"`
}

type FloatSlot struct {
	Value  float64    `json:"value,omitempty"`
	Status SlotStatus `json:"status"`
}

type EquipmentSlot struct {
	Items  []string   `json:"items,omitempty"`
	Status SlotStatus `json:"status"`
}

// SlotSet is the structured booking request built up across turns.
type SlotSet struct {
	StartDate     StringSlot    `json:"start_date"`
	StartTime     StringSlot    `json:"start_time"`
	DurationHours FloatSlot     `json:"duration_hours"`
	Capacity      IntSlot       `json:"capacity"`
	Equipment     EquipmentSlot `json:"equipment"`
	Requester     StringSlot    `json:"requester_name"`
}

// Extraction is one partial SlotSet as returned by the interpreter.
// Nil pointers mean "no information extracted" for that field.
type Extraction struct {
	StartDate     *string  `json:"start_date"`
	StartTime     *string  `json:"start_time"`
	DurationHours *float64 `json:"duration_hours"`
	Capacity      *int     `json:"capacity"`
	Equipment     []string `json:"equipment"`
	Requester     *string  `json:"requester_name"`

	AmbiguousFields []string `json:"ambiguous_fields"`
}

// Empty reports whether the extraction carries no field at all.
func (e Extraction) Empty() bool {
	return e.StartDate == nil &&
		e.StartTime == nil &&
		e.DurationHours == nil &&
		e.Capacity == nil &&
		e.Equipment == nil &&
		e.Requester == nil
}

// noPreferenceTokens are equipment values that mean "no requirement".
// They normalize to the empty set before completeness evaluation.
var noPreferenceTokens = map[string]bool{
	"none":          true,
	"no":            true,
	"nothing":       true,
	"no preference": true,
	"any":           true,
	"n/a":           true,
}

// NormalizeEquipment lowercases and trims requested equipment and
// strips no-preference tokens. The result may be empty, which is a
// valid value, not a missing one.
func NormalizeEquipment(items []string) []string {
	out := make([]string, 0, len(items))
	seen := make(map[string]bool, len(items))
	for _, it := range items {
		v := strings.ToLower(strings.TrimSpace(it))
		if v == "" || noPreferenceTokens[v] || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

// Apply overlays an extraction onto the slot set. Set fields override,
// nil fields leave the slot untouched, and fields the interpreter
// flagged ambiguous stay pending confirmation.
func (s *SlotSet) Apply(e Extraction) {
	ambiguous := make(map[string]bool, len(e.AmbiguousFields))
	for _, f := range e.AmbiguousFields {
		ambiguous[f] = true
	}
	status := func(field string) SlotStatus {
		if ambiguous[field] {
			return StatusAmbiguous
		}
		return StatusSet
	}

	if e.StartDate != nil {
		s.StartDate = StringSlot{Value: strings.TrimSpace(*e.StartDate), Status: status(FieldStartDate)}
	}
	if e.StartTime != nil {
		s.StartTime = StringSlot{Value: strings.TrimSpace(*e.StartTime), Status: status(FieldStartTime)}
	}
	if e.DurationHours != nil {
		s.DurationHours = FloatSlot{Value: *e.DurationHours, Status: status(FieldDurationHours)}
	}
	if e.Capacity != nil {
		s.Capacity = IntSlot{Value: *e.Capacity, Status: status(FieldCapacity)}
	}
	if e.Equipment != nil {
		s.Equipment = EquipmentSlot{Items: NormalizeEquipment(e.Equipment), Status: status(FieldEquipment)}
	}
	if e.Requester != nil {
		s.Requester = StringSlot{Value: strings.TrimSpace(*e.Requester), Status: status(FieldRequester)}
	}
}

// Evaluate computes the ordered list of missing or ambiguous required
// fields and whether the request is complete. Pure function over the
// slot set.
//
// A field counts as missing when unset, empty while required,
// ambiguous, or numerically non-positive. Equipment is never missing:
// an empty set means "no requirement".
func Evaluate(s SlotSet) (missing []string, complete bool) {
	for _, field := range requiredOrder {
		if !fieldComplete(s, field) {
			missing = append(missing, field)
		}
	}
	return missing, len(missing) == 0
}

func fieldComplete(s SlotSet, field string) bool {
	switch field {
	case FieldStartDate:
		return s.StartDate.Status == StatusSet && s.StartDate.Value != ""
	case FieldStartTime:
		return s.StartTime.Status == StatusSet && s.StartTime.Value != ""
	case FieldDurationHours:
		return s.DurationHours.Status == StatusSet && s.DurationHours.Value > 0
	case FieldCapacity:
		return s.Capacity.Status == StatusSet && s.Capacity.Value > 0
	case FieldRequester:
		return s.Requester.Status == StatusSet && s.Requester.Value != ""
	default:
		return true
	}
}

// Interval returns the concrete [start, end) interval the slot set
// describes. Requires date, time and duration to be complete.
func (s SlotSet) Interval(loc *time.Location) (start, end time.Time, err error) {
	if loc == nil {
		loc = time.UTC
	}
	start, err = time.ParseInLocation("2006-01-02 15:04", s.StartDate.Value+" "+s.StartTime.Value, loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("parse start instant: %w", err)
	}
	if s.DurationHours.Value <= 0 {
		return time.Time{}, time.Time{}, fmt.Errorf("non-positive duration %v", s.DurationHours.Value)
	}
	end = start.Add(time.Duration(s.DurationHours.Value * float64(time.Hour)))
	return start, end, nil
}
