package service

import (
	"net/http"
	"strconv"
	"umsassist-backend/internal/scrapers/ums"
)

func (s *Service) handleSemesters(w http.ResponseWriter, r *http.Request) {
	entry, err := s.registry.Get(r.URL.Query().Get("session_id"))
	if err != nil {
		s.writeError(w, report_api_semesters, err)
		return
	}
	if entry.Hidden[ums.FieldBranchId] == "" {
		writeBadRequest(w, msgBranchNotFound)
		return
	}

	semesters, err := entry.Client.Semesters(r.Context(), entry.Hidden)
	if err != nil {
		s.writeError(w, report_api_semesters, err)
		return
	}
	writeRawJSON(w, http.StatusOK, semesters)
}

type attendanceRequest struct {
	SessionId   string     `json:"session_id"`
	SessionYear flexString `json:"session_year"`
	SemesterId  flexString `json:"semester_id"`
	Year        flexString `json:"year"`
	MonthId     flexString `json:"month_id"`
	RollNo      flexString `json:"roll_no"`
	Dob         flexString `json:"dob"`
}

type monthResponse struct {
	Html           string      `json:"html"`
	AttendanceData [][]string  `json:"attendance_data"`
	Headers        []string    `json:"headers"`
	Summary        ums.Summary `json:"summary"`
}

type aggregateResponse struct {
	Html           string      `json:"html"`
	AttendanceData [][]string  `json:"attendance_data"`
	Headers        []string    `json:"headers"`
	Partial        bool        `json:"partial"`
	FailedMonths   []int       `json:"failed_months"`
	Summary        ums.Summary `json:"summary"`
}

func parseMonth(month flexString) (int, bool) {
	id, err := strconv.Atoi(month.String())
	if err != nil || id < 0 || id > 12 {
		return 0, false
	}
	return id, true
}

func (s *Service) handleAttendance(w http.ResponseWriter, r *http.Request) {
	var req attendanceRequest
	err := decodeBody(w, r, &req)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	entry, err := s.registry.Get(req.SessionId)
	if err != nil {
		s.writeError(w, report_api_attendance, err)
		return
	}
	month, ok := parseMonth(req.MonthId)
	if !ok {
		writeBadRequest(w, "month_id must be a number from 0 to 12")
		return
	}

	currentYear := strconv.Itoa(s.time.Now().Year())
	query := ums.AttendanceQuery{
		SessionYear: req.SessionYear.String(),
		SemesterId:  req.SemesterId.String(),
		Year:        req.Year.String(),
		MonthId:     month,
		RollNo:      req.RollNo.String(),
		DateOfBirth: req.Dob.String(),
	}
	if query.SessionYear == "" {
		query.SessionYear = currentYear
	}
	if query.Year == "" {
		query.Year = currentYear
	}

	if month == 0 {
		aggregate, err := entry.Client.AllMonths(r.Context(), entry.Hidden, query)
		if err != nil {
			s.writeError(w, report_api_attendance, err)
			return
		}
		if aggregate.Partial() {
			s.tel.ReportWarning(report_api_attendance, "partial aggregate", aggregate.FailedMonths)
		}
		writeJSON(w, http.StatusOK, aggregateResponse{
			Html:           "",
			AttendanceData: aggregate.Rows,
			Headers:        ums.AggregateHeaders,
			Partial:        aggregate.Partial(),
			FailedMonths:   aggregate.FailedMonths,
			Summary:        ums.Summarize(ums.AggregateHeaders, aggregate.Rows),
		})
		return
	}

	attendance, err := entry.Client.Attendance(r.Context(), entry.Hidden, query)
	if err != nil {
		s.writeError(w, report_api_attendance, err)
		return
	}
	writeJSON(w, http.StatusOK, monthResponse{
		Html:           attendance.HTML,
		AttendanceData: attendance.Rows,
		Headers:        attendance.Headers,
		Summary:        ums.Summarize(attendance.Headers, attendance.Rows),
	})
}
