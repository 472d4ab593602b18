package interpreter

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"time"

	"roomclerk/internal/booking"
)

// MockInterpreter is a deterministic keyword extractor used in tests
// and when no model key is configured. It understands enough phrasing
// for local demos; it is not an NLU replacement.
type MockInterpreter struct{}

func NewMockInterpreter() *MockInterpreter { return &MockInterpreter{} }

var (
	capacityRe = regexp.MustCompile(`(?i)(\d+)\s+(?:people|persons|attendees|seats)`)
	durationRe = regexp.MustCompile(`(?i)for\s+([\d.]+)\s+hours?`)
	halfHourRe = regexp.MustCompile(`(?i)for\s+half\s+an?\s+hour`)
	timeRe     = regexp.MustCompile(`(?i)\bat\s+(\d{1,2})(?::(\d{2}))?\s*(am|pm)?\b`)
	nameRe     = regexp.MustCompile(`(?i)(?:i'?m|i am|my name is|this is)\s+([A-Za-z][A-Za-z-]*)`)
	dateRe     = regexp.MustCompile(`\b(\d{4}-\d{2}-\d{2})\b`)
)

var knownEquipment = []string{
	"projector", "whiteboard", "screen", "video conferencing", "speakerphone", "tv",
}

func (m *MockInterpreter) Interpret(ctx context.Context, history []Turn, now time.Time) (Result, error) {
	select {
	case <-ctx.Done():
		return Result{}, ctx.Err()
	default:
	}

	// Only the user side carries extractable facts.
	var text strings.Builder
	for _, t := range history {
		if t.Speaker == SpeakerUser {
			text.WriteString(t.Text)
			text.WriteString("\n")
		}
	}
	full := text.String()
	lower := strings.ToLower(full)

	var res Result

	if mm := capacityRe.FindStringSubmatch(full); mm != nil {
		if n, err := strconv.Atoi(mm[1]); err == nil && n > 0 {
			res.Fields.Capacity = &n
		}
	}
	if mm := durationRe.FindStringSubmatch(full); mm != nil {
		if h, err := strconv.ParseFloat(mm[1], 64); err == nil && h > 0 {
			res.Fields.DurationHours = &h
		}
	} else if halfHourRe.MatchString(full) {
		h := 0.5
		res.Fields.DurationHours = &h
	}

	if mm := dateRe.FindStringSubmatch(full); mm != nil {
		res.Fields.StartDate = &mm[1]
	} else if strings.Contains(lower, "tomorrow") {
		d := now.AddDate(0, 0, 1).Format("2006-01-02")
		res.Fields.StartDate = &d
	} else if strings.Contains(lower, "today") {
		d := now.Format("2006-01-02")
		res.Fields.StartDate = &d
	}

	if mm := timeRe.FindStringSubmatch(full); mm != nil {
		hour, _ := strconv.Atoi(mm[1])
		minute := 0
		if mm[2] != "" {
			minute, _ = strconv.Atoi(mm[2])
		}
		meridiem := strings.ToLower(mm[3])
		switch meridiem {
		case "pm":
			if hour < 12 {
				hour += 12
			}
		case "am":
			if hour == 12 {
				hour = 0
			}
		default:
			if hour >= 1 && hour <= 12 {
				// No AM/PM: keep the value but flag it for confirmation.
				res.Fields.AmbiguousFields = append(res.Fields.AmbiguousFields, booking.FieldStartTime)
				res.ClarificationNeeded = true
				res.ClarificationQuestion = "Did you mean AM or PM for the start time?"
			}
		}
		if hour >= 0 && hour <= 23 && minute >= 0 && minute <= 59 {
			v := twoDigit(hour) + ":" + twoDigit(minute)
			res.Fields.StartTime = &v
		}
	}

	if mm := nameRe.FindStringSubmatch(full); mm != nil {
		res.Fields.Requester = &mm[1]
	}

	var equipment []string
	for _, eq := range knownEquipment {
		if strings.Contains(lower, eq) {
			equipment = append(equipment, eq)
		}
	}
	if equipment != nil {
		res.Fields.Equipment = equipment
	} else if strings.Contains(lower, "no equipment") || strings.Contains(lower, "nothing special") {
		res.Fields.Equipment = []string{}
	}

	return res, nil
}

func twoDigit(n int) string {
	if n < 10 {
		return "0" + strconv.Itoa(n)
	}
	return strconv.Itoa(n)
}
