package commands

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"umsassist-backend/internal/scrapers/ums"

	"github.com/antzucaro/matchr"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

// subjects scoring at or below this are never considered a match
const subjectMatchThreshold = 0.8

var (
	attendanceLogin loginFlags
	sessionYear     *string
	semester        *string
	year            *string
	month           *int
	subject         *string
)

func init() {
	attendanceLogin = addLoginFlags(attendanceCmd)
	currentYear := strconv.Itoa(time.Now().Year())
	sessionYear = attendanceCmd.Flags().String("session-year", currentYear, "Academic session year.")
	semester = attendanceCmd.Flags().String("semester", "", "Semester id, see the semesters command.")
	year = attendanceCmd.Flags().String("year", currentYear, "Calendar year of the month.")
	month = attendanceCmd.Flags().Int("month", 0, "Month 1-12, 0 fetches and sums every month.")
	subject = attendanceCmd.Flags().String("subject", "", "Only print the subject closest to this name.")
	rootCmd.AddCommand(attendanceCmd)
}

// filterSubject keeps the rows whose subject is the best fuzzy match of name.
func filterSubject(rows [][]string, name string) [][]string {
	target := strings.ToLower(strings.TrimSpace(name))
	best := subjectMatchThreshold
	var out [][]string
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		similarity := matchr.JaroWinkler(strings.ToLower(row[0]), target, false)
		if similarity > best {
			best = similarity
			out = [][]string{row}
			continue
		}
		if similarity == best && out != nil {
			out = append(out, row)
		}
	}
	return out
}

var attendanceCmd = &cobra.Command{
	Use:   "attendance --roll <roll no> --dob <dd/mm/yyyy> [--month <1-12>]",
	Short: "Logs in and prints attendance for one month or the whole semester.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if *month < 0 || *month > 12 {
			return fmt.Errorf("month must be between 0 and 12, got %d", *month)
		}

		client, result, err := attendanceLogin.login(cmd.Context())
		if err != nil {
			return err
		}

		query := ums.AttendanceQuery{
			SessionYear: *sessionYear,
			SemesterId:  *semester,
			Year:        *year,
			MonthId:     *month,
			RollNo:      *attendanceLogin.rollNo,
			DateOfBirth: *attendanceLogin.dob,
		}

		var headers []string
		var rows [][]string
		if *month == 0 {
			aggregate, err := client.AllMonths(cmd.Context(), result.Hidden, query)
			if err != nil {
				return err
			}
			if aggregate.Partial() {
				fmt.Printf("warning: months %v could not be fetched and are left out\n", aggregate.FailedMonths)
			}
			headers = ums.AggregateHeaders
			rows = aggregate.Rows
		} else {
			attendance, err := client.Attendance(cmd.Context(), result.Hidden, query)
			if err != nil {
				return err
			}
			headers = attendance.Headers
			rows = attendance.Rows
		}

		if *subject != "" {
			rows = filterSubject(rows, *subject)
			if len(rows) == 0 {
				return fmt.Errorf("no subject looks like %q", *subject)
			}
		}

		t := newTable()
		header := table.Row{}
		for _, h := range headers {
			header = append(header, h)
		}
		t.AppendHeader(header)
		for _, row := range rows {
			tableRow := table.Row{}
			for _, cell := range row {
				tableRow = append(tableRow, cell)
			}
			t.AppendRow(tableRow)
		}
		t.Render()

		summary := ums.Summarize(headers, rows)
		if summary.Message == "" {
			fmt.Println("no classes recorded")
			return nil
		}
		fmt.Printf("overall %s%% (%d/%d): %s\n", summary.Percent, summary.Attended, summary.Held, summary.Message)
		return nil
	},
}
