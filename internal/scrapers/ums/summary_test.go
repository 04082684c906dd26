package ums

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSummarize(t *testing.T) {
	testCases := []struct {
		name     string
		headers  []string
		rows     [][]string
		held     int
		attended int
		percent  string
		status   string
		message  string
		subjects int
	}{
		{
			name:     "below minimum",
			headers:  AggregateHeaders,
			rows:     [][]string{{"Maths", "10", "6", "60.00"}},
			held:     10,
			attended: 6,
			percent:  "60.00",
			status:   StatusDanger,
			// (7.5 - 6) / 0.25
			message:  "Attend next 6 classes to reach 75%",
			subjects: 1,
		},
		{
			name:    "safe with bunkable classes",
			headers: AggregateHeaders,
			rows: [][]string{
				{"Maths", "15", "13", "86.67"},
				{"Physics", "5", "5", "100.00"},
				{"Total", "20", "18", "90.00"},
				{"General Proficiency", "4", "0", "0.00"},
				{"GP-101", "4", "0", "0.00"},
			},
			held:     20,
			attended: 18,
			percent:  "90.00",
			status:   StatusSafe,
			// (18 - 15) / 0.75
			message:  "Safe to bunk 4 classes",
			subjects: 2,
		},
		{
			name:     "exactly at minimum",
			headers:  AggregateHeaders,
			rows:     [][]string{{"Maths", "4", "3", "75.00"}},
			held:     4,
			attended: 3,
			percent:  "75.00",
			status:   StatusSafe,
			message:  "Don't miss the next class!",
			subjects: 1,
		},
		{
			name:     "monthly layout with present column",
			headers:  []string{"Subject", "Total", "Present", "%"},
			rows:     [][]string{{"Maths", "8 ", "8(L)", ""}},
			held:     8,
			attended: 8,
			percent:  "100.00",
			status:   StatusSafe,
			message:  "Safe to bunk 2 classes",
			subjects: 1,
		},
		{
			name:     "no rows",
			headers:  AggregateHeaders,
			rows:     nil,
			subjects: 0,
		},
		{
			name:     "only skipped rows",
			headers:  AggregateHeaders,
			rows:     [][]string{{"Total", "0", "0", "0.00"}},
			subjects: 0,
		},
		{
			name:     "headerless table reads from the end of the row",
			headers:  []string{},
			rows:     [][]string{{"Maths", "10", "8", "80"}},
			held:     10,
			attended: 8,
			percent:  "80.00",
			status:   StatusSafe,
			// (8 - 7.5) / 0.75
			message:  "Don't miss the next class!",
			subjects: 1,
		},
	}

	for _, test := range testCases {
		t.Run(test.name, func(t *testing.T) {
			summary := Summarize(test.headers, test.rows)
			require.Equal(t, test.held, summary.Held)
			require.Equal(t, test.attended, summary.Attended)
			require.Equal(t, test.percent, summary.Percent)
			require.Equal(t, test.status, summary.Status)
			require.Equal(t, test.message, summary.Message)
			require.Len(t, summary.Subjects, test.subjects)
		})
	}
}

func TestSummarySubjectStatus(t *testing.T) {
	summary := Summarize(AggregateHeaders, [][]string{
		{"Maths", "3", "2", "66.67"},
		{"Physics", "0", "0", "0.00"},
	})
	require.Equal(t, SubjectSummary{
		Name: "Maths", Held: 3, Attended: 2, Percent: 66.67, Status: StatusDanger,
	}, summary.Subjects[0])
	require.Equal(t, 0.0, summary.Subjects[1].Percent)
}
