// Package umstest provides an in-process stand-in for the UMS portal.
package umstest

import (
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
)

// CaptchaImage is the body served for the captcha image.
var CaptchaImage = []byte("\x89PNG\r\n\x1a\nstub-captcha")

const sessionCookie = "ASP.NET_SessionId"

// Portal serves the subset of the UMS portal the scraper uses.
type Portal struct {
	RollNo      string
	DateOfBirth string
	Captcha     string
	StudentName string
	// Hidden fields rendered on the details page, a field set to "" is left out.
	Hidden map[string]string
	// Semesters is served verbatim as the semester list.
	Semesters string
	// Months maps a month id to the attendance markup of that month, months
	// without an entry get a page without a table.
	Months map[int]string
	// FailMonths respond with 500.
	FailMonths map[int]bool
	// WrapJSON serves attendance markup as a JSON string.
	WrapJSON bool
	// LoginStatus, when set, answers login submissions with a maintenance
	// page and this status.
	LoginStatus int

	Server *httptest.Server

	hits       atomic.Int64
	mutex      sync.Mutex
	monthsSeen []int
	lastQuery  url.Values
}

// NewPortal starts a portal with a valid student and registers its shutdown with t.
func NewPortal(t testing.TB) *Portal {
	p := &Portal{
		RollNo:      "2301234",
		DateOfBirth: "01/01/2005",
		Captcha:     "AB12C",
		StudentName: "Asha Rawat",
		Hidden: map[string]string{
			"hdnCollegeId":          "33",
			"hdnBranchId":           "14",
			"hdnCourseId":           "1",
			"hdnStudentAdmissionId": "99871",
		},
		Semesters:  `[{"Id":101,"Name":"Semester 1"},{"Id":102,"Name":"Semester 2"}]`,
		Months:     map[int]string{},
		FailMonths: map[int]bool{},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ums/Student/Public/ViewDetail", p.viewDetail)
	mux.HandleFunc("/ums/Student/Master/GetCaptchaimage", p.captcha)
	mux.HandleFunc("/ums/Admission/Master/GetCourseBranchDurationForAttendance", p.semesters)
	mux.HandleFunc("/ums/Student/Public/ShowStudentAttendanceListByRollNoDOB", p.attendance)

	p.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p.hits.Add(1)
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(p.Server.Close)
	return p
}

func (p *Portal) URL() string {
	return p.Server.URL
}

// Hits is the number of requests the portal has received.
func (p *Portal) Hits() int64 {
	return p.hits.Load()
}

// MonthsSeen are the MonthId values of every attendance request so far.
func (p *Portal) MonthsSeen() []int {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return append([]int(nil), p.monthsSeen...)
}

// LastAttendanceQuery is the query string of the latest attendance request.
func (p *Portal) LastAttendanceQuery() url.Values {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return p.lastQuery
}

func hasSession(r *http.Request) bool {
	cookie, err := r.Cookie(sessionCookie)
	return err == nil && cookie.Value != ""
}

func (p *Portal) viewDetail(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet {
		http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: "stub-session", Path: "/"})
		fmt.Fprint(w, `<html><body><form method="post">
			<input id="RollNo" name="RollNo">
			<img src="/ums/Content/logo.png">
			<img id="imgCaptcha" src="/ums/Student/Master/GetCaptchaimage?t=1">
		</form></body></html>`)
		return
	}

	if p.LoginStatus != 0 {
		w.WriteHeader(p.LoginStatus)
		fmt.Fprint(w, `<html><body>Service Unavailable - maintenance</body></html>`)
		return
	}

	err := r.ParseForm()
	if err != nil || !hasSession(r) {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	if r.PostForm.Get("Captcha") != p.Captcha {
		fmt.Fprint(w, `<html><body><span class="error">Invalid Captcha</span></body></html>`)
		return
	}
	if r.PostForm.Get("RollNo") != p.RollNo || r.PostForm.Get("DateOfBirth") != p.DateOfBirth {
		fmt.Fprint(w, `<html><body><span class="error">No record found.</span></body></html>`)
		return
	}

	hidden := ""
	for id, value := range p.Hidden {
		if value == "" {
			continue
		}
		hidden += fmt.Sprintf(`<input type="hidden" id="%s" value="%s">`, id, html.EscapeString(value))
	}
	fmt.Fprintf(w, `<html><body>
		<table><tr><td>Roll No</td><td>%s</td></tr></table>
		<label id="lblStudentName"> %s </label>
		<label id="lblFatherName">Ramesh Rawat</label>
		<label id="CourseName">B.Tech</label>
		%s
		<select id="SessionYear">
			<option value="">--Select--</option>
			<option value="2024">2024-25</option>
			<option value="2025">2025-26</option>
		</select>
		<select id="Year">
			<option value="">--Select--</option>
			<option value="2025">2025</option>
		</select>
	</body></html>`, html.EscapeString(p.RollNo), html.EscapeString(p.StudentName), hidden)
}

func (p *Portal) captcha(w http.ResponseWriter, r *http.Request) {
	if !hasSession(r) {
		http.Error(w, "no session", http.StatusForbidden)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Write(CaptchaImage)
}

func (p *Portal) semesters(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("BranchId") != p.Hidden["hdnBranchId"] {
		http.Error(w, "unknown branch", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprint(w, p.Semesters)
}

func (p *Portal) attendance(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	month, err := strconv.Atoi(query.Get("MonthId"))
	if err != nil {
		http.Error(w, "bad month", http.StatusBadRequest)
		return
	}
	p.mutex.Lock()
	p.monthsSeen = append(p.monthsSeen, month)
	p.lastQuery = query
	p.mutex.Unlock()

	if query.Get("BranchId") != p.Hidden["hdnBranchId"] || query.Get("RollNo") != p.RollNo {
		http.Error(w, "bad query", http.StatusBadRequest)
		return
	}
	if p.FailMonths[month] {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	markup, ok := p.Months[month]
	if !ok {
		markup = `<div>No Record Found</div>`
	}
	if p.WrapJSON {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(markup)
		return
	}
	fmt.Fprint(w, markup)
}

// MonthTable renders an attendance table in the layout the portal uses,
// each row is [subject, held, attended].
func MonthTable(rows ...[3]string) string {
	out := `<table><thead><tr><th>Subject</th><th>Total Classes Held</th><th>Total Classes Attended</th><th>Attended %</th></tr></thead><tbody>`
	for _, row := range rows {
		out += fmt.Sprintf(
			"<tr><td>%s</td><td>%s</td><td>%s</td><td>-</td></tr>",
			html.EscapeString(row[0]), row[1], row[2],
		)
	}
	return out + "</tbody></table>"
}
