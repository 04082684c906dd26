package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
	"umsassist-backend/internal/components/chrono"
	"umsassist-backend/internal/components/telemetry"
	"umsassist-backend/internal/leaderboard"
	"umsassist-backend/internal/scrapers/ums"
	"umsassist-backend/internal/scrapers/ums/umstest"
	"umsassist-backend/internal/session"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

// countingStore counts calls so tests can assert a request never reached the store.
type countingStore struct {
	leaderboard.Store
	upserts atomic.Int64
}

func (s *countingStore) Upsert(ctx context.Context, entry leaderboard.Entry) error {
	s.upserts.Add(1)
	return s.Store.Upsert(ctx, entry)
}

type testEnv struct {
	portal *umstest.Portal
	server *httptest.Server
	store  *countingStore
	tel    telemetry.RecorderAPI
}

func setupWithStore(t *testing.T, store leaderboard.Store) *testEnv {
	portal := umstest.NewPortal(t)
	tel := telemetry.NewRecorderAPI()
	clock := chrono.FixedImpl{At: time.Date(2025, 9, 15, 12, 0, 0, 0, time.UTC)}

	counting := &countingStore{Store: store}
	registry := session.NewRegistry(session.Options{}, clock, tel)
	service, err := NewService(
		registry,
		counting,
		WithPortalOptions(ums.Options{BaseUrl: portal.URL(), Timeout: 5 * time.Second}),
		WithStoreBackend(leaderboard.BackendSqlite),
		WithCustomChronoAPI(clock),
		WithCustomTelemetryAPI(tel),
	)
	require.NoError(t, err)

	server := httptest.NewServer(service.Handler())
	t.Cleanup(server.Close)

	return &testEnv{
		portal: portal,
		server: server,
		store:  counting,
		tel:    tel,
	}
}

func setup(t *testing.T) *testEnv {
	store, err := leaderboard.OpenSqlite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return setupWithStore(t, store)
}

func (e *testEnv) do(t *testing.T, method, path string, body any) (int, []byte) {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	}
	req, err := http.NewRequest(method, e.server.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	out, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	return res.StatusCode, out
}

func decode[T any](t *testing.T, body []byte) T {
	var out T
	require.NoError(t, json.Unmarshal(body, &out), string(body))
	return out
}

func (e *testEnv) initSession(t *testing.T) string {
	status, body := e.do(t, "GET", "/api/init", nil)
	require.Equal(t, http.StatusOK, status, string(body))
	res := decode[initResponse](t, body)
	require.NotEmpty(t, res.SessionId)
	return res.SessionId
}

func (e *testEnv) login(t *testing.T) string {
	id := e.initSession(t)
	status, body := e.do(t, "POST", "/api/login", map[string]any{
		"session_id":   id,
		"login_id":     e.portal.RollNo,
		"password":     e.portal.DateOfBirth,
		"captcha_text": e.portal.Captcha,
	})
	require.Equal(t, http.StatusOK, status, string(body))
	return id
}

func TestHealth(t *testing.T) {
	env := setup(t)
	res, err := http.Get(env.server.URL + "/")
	require.NoError(t, err)
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)

	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Equal(t, "UMS Backend Running", string(body))
	require.True(t, strings.HasPrefix(res.Header.Get("Content-Type"), "text/plain"))
}

func TestInit(t *testing.T) {
	env := setup(t)
	status, body := env.do(t, "GET", "/api/init", nil)
	require.Equal(t, http.StatusOK, status)

	res := decode[initResponse](t, body)
	require.NotEmpty(t, res.SessionId)
	encoded, found := strings.CutPrefix(res.CaptchaImage, "data:image/png;base64,")
	require.True(t, found)
	image, err := base64.StdEncoding.DecodeString(encoded)
	require.NoError(t, err)
	require.Equal(t, umstest.CaptchaImage, image)
}

func TestInitUpstreamDown(t *testing.T) {
	env := setup(t)
	env.portal.Server.Close()

	status, body := env.do(t, "GET", "/api/init", nil)
	require.Equal(t, http.StatusInternalServerError, status)
	require.NotEmpty(t, decode[errorResponse](t, body).Error)
	require.NotEmpty(t, env.tel.Find("broken", report_api_init))
}

func TestLoginSuccess(t *testing.T) {
	env := setup(t)
	id := env.initSession(t)

	status, body := env.do(t, "POST", "/api/login", map[string]any{
		"session_id": id,
		// numbers are accepted for the roll number
		"login_id":     2301234,
		"password":     env.portal.DateOfBirth,
		"captcha_text": env.portal.Captcha,
	})
	require.Equal(t, http.StatusOK, status, string(body))

	res := decode[map[string]any](t, body)
	require.Equal(t, true, res["success"])
	require.Equal(t, "Login Successful", res["message"])
	diff := cmp.Diff(map[string]any{
		"hdnCollegeId":          "33",
		"hdnBranchId":           "14",
		"hdnCourseId":           "1",
		"hdnStudentAdmissionId": "99871",
	}, res["hidden_fields"])
	if diff != "" {
		t.Fatal(diff)
	}
	require.Equal(t, "Asha Rawat", res["student_data"].(map[string]any)["student_name"])
	require.Equal(t, []any{
		map[string]any{"Value": "2024", "Text": "2024-25"},
		map[string]any{"Value": "2025", "Text": "2025-26"},
	}, res["session_years"])
}

func TestLoginInvalidCaptcha(t *testing.T) {
	env := setup(t)
	id := env.initSession(t)

	status, body := env.do(t, "POST", "/api/login", map[string]any{
		"session_id":   id,
		"login_id":     env.portal.RollNo,
		"password":     env.portal.DateOfBirth,
		"captcha_text": "nope",
	})
	require.Equal(t, http.StatusUnauthorized, status)
	require.JSONEq(t, `{"success":false,"message":"Invalid CAPTCHA"}`, string(body))
}

func TestLoginRejected(t *testing.T) {
	env := setup(t)
	id := env.initSession(t)

	status, body := env.do(t, "POST", "/api/login", map[string]any{
		"session_id":   id,
		"login_id":     env.portal.RollNo,
		"password":     "31/12/1999",
		"captcha_text": env.portal.Captcha,
	})
	require.Equal(t, http.StatusUnauthorized, status)
	res := decode[failureResponse](t, body)
	require.False(t, res.Success)
	require.Equal(t, msgLoginRejected, res.Message)
	require.Contains(t, res.DebugHtmlSnippet, "No record found.")
}

func TestLoginPortalMaintenance(t *testing.T) {
	env := setup(t)
	env.portal.LoginStatus = http.StatusServiceUnavailable
	id := env.initSession(t)

	status, body := env.do(t, "POST", "/api/login", map[string]any{
		"session_id":   id,
		"login_id":     env.portal.RollNo,
		"password":     env.portal.DateOfBirth,
		"captcha_text": env.portal.Captcha,
	})
	require.Equal(t, http.StatusInternalServerError, status, string(body))
	require.NotContains(t, string(body), msgLoginRejected)
}

func TestInvalidSessionNeverReachesPortal(t *testing.T) {
	env := setup(t)
	hits := env.portal.Hits()

	testCases := []struct {
		method string
		path   string
		body   any
	}{
		{method: "POST", path: "/api/login", body: map[string]any{
			"session_id": "missing", "login_id": "1", "password": "x", "captcha_text": "y",
		}},
		{method: "GET", path: "/api/semesters?session_id=missing"},
		{method: "GET", path: "/api/semesters"},
		{method: "POST", path: "/api/attendance", body: map[string]any{
			"session_id": "missing", "month_id": 0,
		}},
		{method: "POST", path: "/api/attendance", body: map[string]any{
			"month_id": "3",
		}},
		{method: "POST", path: "/api/logout", body: map[string]any{"session_id": "missing"}},
	}
	for _, test := range testCases {
		status, body := env.do(t, test.method, test.path, test.body)
		require.Equal(t, http.StatusBadRequest, status, test.path)
		require.JSONEq(t, `{"error":"Invalid or expired session"}`, string(body), test.path)
	}
	require.Equal(t, hits, env.portal.Hits())
}

func TestSemesters(t *testing.T) {
	env := setup(t)

	// a session that has not logged in has no branch id
	id := env.initSession(t)
	status, body := env.do(t, "GET", "/api/semesters?session_id="+id, nil)
	require.Equal(t, http.StatusBadRequest, status)
	require.JSONEq(t, `{"error":"Branch ID not found. Please login again."}`, string(body))

	id = env.login(t)
	status, body = env.do(t, "GET", "/api/semesters?session_id="+id, nil)
	require.Equal(t, http.StatusOK, status)
	require.JSONEq(t, env.portal.Semesters, string(body))
}

func TestAttendanceAllMonths(t *testing.T) {
	env := setup(t)
	env.portal.Months[1] = umstest.MonthTable([3]string{"Maths", "10", "8"})
	env.portal.Months[2] = umstest.MonthTable([3]string{"Maths", "5", "5"})
	id := env.login(t)

	status, body := env.do(t, "POST", "/api/attendance", map[string]any{
		"session_id":   id,
		"session_year": 2025,
		"semester_id":  101,
		"year":         "2025",
		"month_id":     0,
		"roll_no":      env.portal.RollNo,
		"dob":          env.portal.DateOfBirth,
	})
	require.Equal(t, http.StatusOK, status, string(body))

	res := decode[aggregateResponse](t, body)
	require.Equal(t, "", res.Html)
	require.Equal(t, [][]string{{"Maths", "15", "13", "86.67"}}, res.AttendanceData)
	require.Equal(t, []string{"Subject", "Total Classes Held", "Total Classes Attended", "Attended %"}, res.Headers)
	require.False(t, res.Partial)
	require.Empty(t, res.FailedMonths)
	require.Equal(t, "86.67", res.Summary.Percent)
	require.Equal(t, ums.StatusSafe, res.Summary.Status)
}

func TestAttendanceAllMonthsPartial(t *testing.T) {
	env := setup(t)
	env.portal.Months[1] = umstest.MonthTable([3]string{"Maths", "10", "8"})
	env.portal.Months[2] = umstest.MonthTable([3]string{"Maths", "5", "5"})
	env.portal.FailMonths[2] = true
	env.portal.FailMonths[11] = true
	id := env.login(t)

	status, body := env.do(t, "POST", "/api/attendance", map[string]any{
		"session_id":  id,
		"semester_id": "101",
		"month_id":    "0",
		"roll_no":     env.portal.RollNo,
		"dob":         env.portal.DateOfBirth,
	})
	require.Equal(t, http.StatusOK, status, string(body))

	res := decode[aggregateResponse](t, body)
	require.Equal(t, [][]string{{"Maths", "10", "8", "80.00"}}, res.AttendanceData)
	require.True(t, res.Partial)
	require.Equal(t, []int{2, 11}, res.FailedMonths)
}

func TestAttendanceSingleMonth(t *testing.T) {
	env := setup(t)
	env.portal.WrapJSON = true
	env.portal.Months[9] = umstest.MonthTable(
		[3]string{"Maths", "10", "7"},
		[3]string{"Total", "10", "7"},
	)
	id := env.login(t)

	status, body := env.do(t, "POST", "/api/attendance", map[string]any{
		"session_id":  id,
		"semester_id": "101",
		"month_id":    9,
		"roll_no":     env.portal.RollNo,
		"dob":         env.portal.DateOfBirth,
	})
	require.Equal(t, http.StatusOK, status, string(body))

	res := decode[map[string]any](t, body)
	require.NotEmpty(t, res["html"])
	require.NotContains(t, res, "partial")
	require.Equal(t, []any{
		[]any{"Maths", "10", "7", "-"},
		[]any{"Total", "10", "7", "-"},
	}, res["attendance_data"])

	summary := decode[monthResponse](t, body).Summary
	require.Equal(t, "70.00", summary.Percent)
	require.Equal(t, "Attend next 2 classes to reach 75%", summary.Message)
}

func TestAttendanceDefaultsToCurrentYear(t *testing.T) {
	env := setup(t)
	id := env.login(t)

	status, body := env.do(t, "POST", "/api/attendance", map[string]any{
		"session_id": id,
		"month_id":   1,
		"roll_no":    env.portal.RollNo,
	})
	require.Equal(t, http.StatusOK, status, string(body))
	res := decode[monthResponse](t, body)
	require.Empty(t, res.AttendanceData)
	require.NotNil(t, res.AttendanceData)

	query := env.portal.LastAttendanceQuery()
	require.Equal(t, "2025", query.Get("SessionYear"))
	require.Equal(t, "2025", query.Get("Year"))
	require.Equal(t, "1", query.Get("MonthId"))
	require.Equal(t, "99871", query.Get("StudentAdmissionId"))
}

func TestAttendanceBadMonth(t *testing.T) {
	env := setup(t)
	id := env.login(t)

	for _, month := range []any{13, -1, "abc", nil} {
		status, _ := env.do(t, "POST", "/api/attendance", map[string]any{
			"session_id": id,
			"month_id":   month,
		})
		require.Equal(t, http.StatusBadRequest, status, fmt.Sprint(month))
	}
}

func TestAttendanceIncompleteSession(t *testing.T) {
	env := setup(t)
	delete(env.portal.Hidden, "hdnStudentAdmissionId")
	id := env.login(t)

	status, body := env.do(t, "POST", "/api/attendance", map[string]any{
		"session_id": id,
		"month_id":   0,
	})
	require.Equal(t, http.StatusBadRequest, status)
	require.JSONEq(t, `{"error":"Session details not found. Please login again."}`, string(body))
}

func TestLogout(t *testing.T) {
	env := setup(t)
	id := env.initSession(t)

	status, _ := env.do(t, "POST", "/api/logout", map[string]any{"session_id": id})
	require.Equal(t, http.StatusOK, status)
	status, _ = env.do(t, "GET", "/api/semesters?session_id="+id, nil)
	require.Equal(t, http.StatusBadRequest, status)
}

func TestLeaderboardJoinMissingData(t *testing.T) {
	env := setup(t)

	testCases := []map[string]any{
		{"roll_no": "2301234", "name": "Asha"},
		{"roll_no": "2301234", "name": "Asha", "percentage": nil},
		{"roll_no": "2301234", "name": "Asha", "percentage": ""},
		{"name": "Asha", "percentage": 90},
		{"roll_no": "2301234", "name": "", "percentage": 90},
	}
	for _, body := range testCases {
		status, res := env.do(t, "POST", "/api/leaderboard/join", body)
		require.Equal(t, http.StatusBadRequest, status)
		require.JSONEq(t, `{"error":"Missing data"}`, string(res))
	}
	require.Zero(t, env.store.upserts.Load())
}

func TestLeaderboardJoinInvalidPercentage(t *testing.T) {
	env := setup(t)

	for _, percentage := range []any{"lots", 101, -5, true} {
		status, _ := env.do(t, "POST", "/api/leaderboard/join", map[string]any{
			"roll_no": "2301234", "name": "Asha", "percentage": percentage,
		})
		require.Equal(t, http.StatusBadRequest, status, fmt.Sprint(percentage))
	}
	require.Zero(t, env.store.upserts.Load())
}

func TestLeaderboard(t *testing.T) {
	env := setup(t)

	joins := []map[string]any{
		{"roll_no": "1", "name": "Asha", "percentage": 81.5},
		{"roll_no": 2, "name": "Vikram", "percentage": "92.25"},
		{"roll_no": "3", "name": "Meera", "percentage": 0},
		{"roll_no": "1", "name": "Asha", "percentage": 95},
	}
	for _, join := range joins {
		status, body := env.do(t, "POST", "/api/leaderboard/join", join)
		require.Equal(t, http.StatusOK, status, string(body))
		require.JSONEq(t, `{"success":true,"message":"Joined leaderboard!"}`, string(body))
	}

	status, body := env.do(t, "GET", "/api/leaderboard", nil)
	require.Equal(t, http.StatusOK, status)
	require.JSONEq(t, `[
		{"name":"Asha","percentage":95,"roll_no":"1"},
		{"name":"Vikram","percentage":92.25,"roll_no":"2"},
		{"name":"Meera","percentage":0,"roll_no":"3"}
	]`, string(body))
}

func TestLeaderboardUnavailable(t *testing.T) {
	env := setupWithStore(t, leaderboard.Unavailable(fmt.Errorf("connection refused")))

	status, _ := env.do(t, "POST", "/api/leaderboard/join", map[string]any{
		"roll_no": "1", "name": "Asha", "percentage": 90,
	})
	require.Equal(t, http.StatusServiceUnavailable, status)

	status, body := env.do(t, "GET", "/api/leaderboard", nil)
	require.Equal(t, http.StatusServiceUnavailable, status)
	require.Contains(t, decode[errorResponse](t, body).Error, "connection refused")

	status, body = env.do(t, "GET", "/api/debug/store", nil)
	require.Equal(t, http.StatusInternalServerError, status)
	res := decode[map[string]string](t, body)
	require.Equal(t, "Failed", res["status"])
}

func TestDebugStore(t *testing.T) {
	env := setup(t)
	status, body := env.do(t, "GET", "/api/debug/store", nil)
	require.Equal(t, http.StatusOK, status)
	require.JSONEq(t, `{"status":"Connected","backend":"sqlite"}`, string(body))
}

func TestCors(t *testing.T) {
	env := setup(t)
	req, err := http.NewRequest("OPTIONS", env.server.URL+"/api/login", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", "POST")
	req.Header.Set("Access-Control-Request-Headers", "Content-Type")

	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	res.Body.Close()
	require.Equal(t, "*", res.Header.Get("Access-Control-Allow-Origin"))
}

func TestRecoverPanics(t *testing.T) {
	tel := telemetry.NewRecorderAPI()
	s := &Service{tel: tel}
	handler := s.recoverPanics(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/api/init", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.JSONEq(t, `{"error":"internal server error"}`, rec.Body.String())
	require.Len(t, tel.Find("broken", report_api_panic), 1)
}

func TestFlexString(t *testing.T) {
	var req attendanceRequest
	err := json.Unmarshal([]byte(`{"session_year": 2025, "year": " 2024 ", "month_id": null, "semester_id": 1.5}`), &req)
	require.NoError(t, err)
	require.Equal(t, flexString("2025"), req.SessionYear)
	require.Equal(t, flexString("2024"), req.Year)
	require.Equal(t, flexString(""), req.MonthId)
	require.Equal(t, flexString("1.5"), req.SemesterId)

	err = json.Unmarshal([]byte(`{"month_id": true}`), &req)
	require.Error(t, err)
}
