package ums

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// MinimumPercent is the attendance a student must keep to sit exams.
const MinimumPercent = 75.0

const (
	StatusSafe   = "safe"
	StatusDanger = "danger"
)

type SubjectSummary struct {
	Name     string  `json:"name"`
	Held     int     `json:"held"`
	Attended int     `json:"attended"`
	Percent  float64 `json:"percent"`
	Status   string  `json:"status"`
}

// Summary leaves Percent, Status and Message empty when no subject was counted.
type Summary struct {
	Subjects []SubjectSummary `json:"subjects"`
	Held     int              `json:"held"`
	Attended int              `json:"attended"`
	Percent  string           `json:"percent,omitempty"`
	Status   string           `json:"status,omitempty"`
	Message  string           `json:"message,omitempty"`
}

// summaryIndices is looser than ColumnIndices, monthly views label the
// columns "Total" and "Present" instead of "Held" and "Attended".
func summaryIndices(headers []string) (held int, attended int) {
	held = -1
	attended = -1
	for i, h := range headers {
		lower := strings.ToLower(h)
		isHeld := strings.Contains(lower, "held") ||
			(strings.Contains(lower, "total") &&
				!strings.Contains(lower, "present") &&
				!strings.Contains(lower, "attended"))
		if held < 0 && isHeld {
			held = i
		}
		if attended < 0 && (strings.Contains(lower, "attended") || strings.Contains(lower, "present")) {
			attended = i
		}
	}
	if held < 0 && len(headers) >= 3 {
		held = len(headers) - 3
	}
	if attended < 0 && len(headers) >= 2 {
		attended = len(headers) - 2
	}
	if held == attended {
		held = len(headers) - 3
		attended = len(headers) - 2
	}
	return held, attended
}

func skipInSummary(subject string) bool {
	return strings.ToLower(subject) == "total" ||
		strings.Contains(strings.ToLower(subject), "general proficiency") ||
		strings.Contains(strings.ToUpper(subject), "GP")
}

// leadingInt parses the leading digits of a cell, "12 (2)" is 12.
func leadingInt(cell string) int {
	cell = strings.TrimSpace(cell)
	end := 0
	for end < len(cell) && cell[end] >= '0' && cell[end] <= '9' {
		end++
	}
	n, err := strconv.Atoi(cell[:end])
	if err != nil {
		return 0
	}
	return n
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}

// Summarize computes the overall attendance of a table and how many classes
// can be missed (or must be attended) to stay at MinimumPercent.
func Summarize(headers []string, rows [][]string) Summary {
	heldIdx, attendedIdx := summaryIndices(headers)

	summary := Summary{Subjects: []SubjectSummary{}}
	for _, row := range rows {
		if len(row) < 2 || skipInSummary(row[0]) {
			continue
		}

		held := 0
		attended := 0
		heldCell, heldOk := cellIndex(heldIdx, len(row))
		attendedCell, attendedOk := cellIndex(attendedIdx, len(row))
		if heldOk && attendedOk {
			held = leadingInt(row[heldCell])
			attended = leadingInt(row[attendedCell])
		}

		percent := 0.0
		if held > 0 {
			percent = round2(float64(attended) / float64(held) * 100)
		}
		status := StatusDanger
		if percent >= MinimumPercent {
			status = StatusSafe
		}

		summary.Subjects = append(summary.Subjects, SubjectSummary{
			Name:     row[0],
			Held:     held,
			Attended: attended,
			Percent:  percent,
			Status:   status,
		})
		summary.Held += held
		summary.Attended += attended
	}

	if len(summary.Subjects) == 0 {
		return summary
	}

	overall := 0.0
	if summary.Held > 0 {
		overall = round2(float64(summary.Attended) / float64(summary.Held) * 100)
	}
	summary.Percent = FormatPercent(summary.Held, summary.Attended)

	held := float64(summary.Held)
	attended := float64(summary.Attended)
	if overall < MinimumPercent {
		needed := int(math.Ceil((0.75*held - attended) / 0.25))
		summary.Status = StatusDanger
		summary.Message = fmt.Sprintf("Attend next %d classes to reach 75%%", needed)
		return summary
	}

	summary.Status = StatusSafe
	bunkable := int(math.Floor((attended - 0.75*held) / 0.75))
	if bunkable > 0 {
		summary.Message = fmt.Sprintf("Safe to bunk %d classes", bunkable)
	} else {
		summary.Message = "Don't miss the next class!"
	}
	return summary
}
