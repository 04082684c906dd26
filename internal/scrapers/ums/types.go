package ums

import (
	"errors"
	"fmt"
	"umsassist-backend/pkg/htmlutil"
)

var (
	ErrUpstreamUnavailable = errors.New("ums: upstream unavailable")
	ErrCaptchaNotFound     = errors.New("ums: could not find CAPTCHA image")
	ErrInvalidCaptcha      = errors.New("ums: invalid captcha")
	ErrSessionIncomplete   = errors.New("ums: session is missing hidden fields")
)

// LoginRejectedError is returned when the portal neither complained about the
// captcha nor echoed the roll number back.
type LoginRejectedError struct {
	// Snippet is the beginning of the response body, never the whole page.
	Snippet string
}

func (e *LoginRejectedError) Error() string {
	return fmt.Sprintf("ums: login rejected: %q", e.Snippet)
}

// hidden field ids, these are both the element ids on the result page and
// the keys of HiddenFields.
const (
	FieldCollegeId          = "hdnCollegeId"
	FieldBranchId           = "hdnBranchId"
	FieldCourseId           = "hdnCourseId"
	FieldStudentAdmissionId = "hdnStudentAdmissionId"
)

var hiddenFieldIds = []string{
	FieldCollegeId,
	FieldBranchId,
	FieldCourseId,
	FieldStudentAdmissionId,
}

// HiddenFields are the internal portal identifiers scraped from the login
// result page, every attendance query needs all of them.
type HiddenFields map[string]string

// Complete reports whether all hidden fields needed for attendance queries are present.
func (h HiddenFields) Complete() bool {
	for _, id := range hiddenFieldIds {
		if h[id] == "" {
			return false
		}
	}
	return true
}

type Profile struct {
	StudentName string `json:"student_name"`
	FatherName  string `json:"father_name"`
	CourseName  string `json:"course_name"`
	BranchName  string `json:"branch_name"`
}

type InitResult struct {
	CaptchaImage []byte
}

type LoginRequest struct {
	RollNo      string
	DateOfBirth string
	Captcha     string
}

type LoginResult struct {
	Profile      Profile
	Hidden       HiddenFields
	SessionYears []htmlutil.Option
	Years        []htmlutil.Option
}

// AttendanceQuery holds the user supplied parameters of an attendance
// lookup, the rest come from HiddenFields.
type AttendanceQuery struct {
	SessionYear string
	SemesterId  string
	Year        string
	// MonthId is 1-12, 0 means every month of the year aggregated.
	MonthId     int
	RollNo      string
	DateOfBirth string
}

type Table struct {
	Headers []string
	Rows    [][]string
}

type MonthAttendance struct {
	// HTML is the upstream response body as returned.
	HTML string
	Table
}

// AggregateHeaders are the column names of Aggregate.Rows.
var AggregateHeaders = []string{
	"Subject",
	"Total Classes Held",
	"Total Classes Attended",
	"Attended %",
}

type Aggregate struct {
	// Rows are [subject, held, attended, percent].
	Rows         [][]string
	FailedMonths []int
}

func (a Aggregate) Partial() bool {
	return len(a.FailedMonths) > 0
}
