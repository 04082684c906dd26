// client.go contains everything that talks to the UMS portal itself. One Client
// is one browser-like session, cookies are never shared between clients.

package ums

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"
	"umsassist-backend/internal/components/assert"
	"umsassist-backend/internal/components/telemetry"
	"umsassist-backend/pkg/htmlutil"
	"umsassist-backend/pkg/restyutil"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

const (
	report_client_init       = "client.init"
	report_client_login      = "client.login"
	report_client_semesters  = "client.semesters"
	report_client_attendance = "client.attendance"
)

const DefaultBaseUrl = "https://online.uktech.ac.in"

const (
	loginPath      = "/ums/Student/Public/ViewDetail"
	semesterPath   = "/ums/Admission/Master/GetCourseBranchDurationForAttendance"
	attendancePath = "/ums/Student/Public/ShowStudentAttendanceListByRollNoDOB"

	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

type Options struct {
	// BaseUrl defaults to DefaultBaseUrl.
	BaseUrl string
	// Timeout of a single request, defaults to 30 seconds.
	Timeout time.Duration
	// RequestsPerSecond limits the requests of a single client, 0 disables the limit.
	RequestsPerSecond float64
	CloudflareBypass  bool
	// Concurrency of the whole year fan-out, defaults to DefaultConcurrency.
	Concurrency int
	// Dump receives the raw request/response of every portal call when set.
	Dump restyutil.Output
}

func (o Options) withDefaults() Options {
	if o.BaseUrl == "" {
		o.BaseUrl = DefaultBaseUrl
	}
	o.BaseUrl = strings.TrimRight(o.BaseUrl, "/")
	if o.Timeout <= 0 {
		o.Timeout = 30 * time.Second
	}
	if o.Concurrency <= 0 {
		o.Concurrency = DefaultConcurrency
	}
	return o
}

type Client struct {
	baseUrl     *url.URL
	http        *resty.Client
	concurrency int
	tel         telemetry.API
}

func NewClient(opts Options, tel telemetry.API) (*Client, error) {
	assert.NotNil(tel, "telemetry")

	opts = opts.withDefaults()
	tel = telemetry.NewScopedAPI("ums_scraper", tel)

	parsedBaseUrl, err := url.Parse(opts.BaseUrl)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}

	httpClient := resty.New()
	httpClient.SetBaseURL(opts.BaseUrl)
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	httpClient.SetCookieJar(jar)
	if opts.CloudflareBypass {
		httpClient.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(httpClient.GetClient().Transport)
	}

	httpClient.SetHeader("User-Agent", userAgent)
	httpClient.SetRedirectPolicy(resty.DomainCheckRedirectPolicy(parsedBaseUrl.Hostname()))
	httpClient.SetTimeout(opts.Timeout)

	if opts.RequestsPerSecond > 0 {
		// burst >= 1 just means that no requests will be dropped
		burst := int(math.Ceil(opts.RequestsPerSecond))
		rateLimiter := rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
		httpClient.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
			return rateLimiter.Wait(req.Context())
		})
	}

	telemetry.InstrumentResty(httpClient, "umsassist.scrapers.ums", tel)
	restyutil.Dump(httpClient, opts.Dump)

	return &Client{
		baseUrl:     parsedBaseUrl,
		http:        httpClient,
		concurrency: opts.Concurrency,
		tel:         tel,
	}, nil
}

func upstreamError(step string, err error) error {
	return fmt.Errorf("%s: %w: %w", step, ErrUpstreamUnavailable, err)
}

func upstreamStatusError(step string, res *resty.Response) error {
	return fmt.Errorf("%s: %w: status %s", step, ErrUpstreamUnavailable, res.Status())
}

func (c *Client) loginUrl() string {
	return c.baseUrl.String() + loginPath
}

func (c *Client) origin() string {
	return fmt.Sprintf("%s://%s", c.baseUrl.Scheme, c.baseUrl.Host)
}

// Init opens the login page in this client's session and downloads the
// captcha image that belongs to it.
func (c *Client) Init(ctx context.Context) (InitResult, error) {
	res, err := c.http.R().
		SetContext(ctx).
		Get(loginPath)
	if err != nil {
		c.tel.ReportBroken(report_client_init, fmt.Errorf("fetch login page: %w", err))
		return InitResult{}, upstreamError("fetch login page", err)
	}
	if res.IsError() {
		c.tel.ReportBroken(report_client_init, fmt.Errorf("fetch login page: status %s", res.Status()))
		return InitResult{}, upstreamStatusError("fetch login page", res)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
	if err != nil {
		c.tel.ReportBroken(report_client_init, fmt.Errorf("parse login page: %w", err))
		return InitResult{}, upstreamError("parse login page", err)
	}

	src := findCaptchaSrc(doc)
	if src == "" {
		c.tel.ReportBroken(report_client_init, ErrCaptchaNotFound)
		return InitResult{}, ErrCaptchaNotFound
	}
	ref, err := url.Parse(src)
	if err != nil {
		c.tel.ReportBroken(report_client_init, fmt.Errorf("parse captcha src: %w", err), src)
		return InitResult{}, fmt.Errorf("%w: bad src %q", ErrCaptchaNotFound, src)
	}
	captchaUrl := c.baseUrl.ResolveReference(ref).String()

	c.tel.ReportDebug("fetch captcha", captchaUrl)
	res, err = c.http.R().
		SetContext(ctx).
		Get(captchaUrl)
	if err != nil {
		c.tel.ReportBroken(report_client_init, fmt.Errorf("fetch captcha: %w", err))
		return InitResult{}, upstreamError("fetch captcha", err)
	}
	if res.IsError() {
		c.tel.ReportBroken(report_client_init, fmt.Errorf("fetch captcha: status %s", res.Status()))
		return InitResult{}, upstreamStatusError("fetch captcha", res)
	}

	return InitResult{CaptchaImage: res.Body()}, nil
}

func findCaptchaSrc(doc *goquery.Document) string {
	img := doc.Find("img").FilterFunction(func(_ int, s *goquery.Selection) bool {
		return strings.Contains(s.AttrOr("src", ""), captchaSrcMarker)
	}).First()
	if img.Length() == 0 {
		img = doc.Find("img#" + captchaFallbackId).First()
	}
	return strings.TrimSpace(img.AttrOr("src", ""))
}

// Login submits the credentials and the captcha text, the portal answers with
// the student details page when they are correct.
func (c *Client) Login(ctx context.Context, req LoginRequest) (LoginResult, error) {
	res, err := c.http.R().
		SetContext(ctx).
		SetHeader("Referer", c.loginUrl()).
		SetHeader("Origin", c.origin()).
		SetFormData(map[string]string{
			"RollNo":      req.RollNo,
			"DateOfBirth": req.DateOfBirth,
			"Captcha":     req.Captcha,
		}).
		Post(loginPath)
	if err != nil {
		c.tel.ReportBroken(report_client_login, fmt.Errorf("submit: %w", err))
		return LoginResult{}, upstreamError("submit login", err)
	}
	c.tel.ReportDebug("login response", res.Status())
	if res.IsError() {
		c.tel.ReportBroken(report_client_login, fmt.Errorf("submit: status %s", res.Status()))
		return LoginResult{}, upstreamStatusError("submit login", res)
	}

	body := res.Body()
	err = classifyLogin(body, req.RollNo)
	if err != nil {
		c.tel.ReportWarning(report_client_login, err)
		return LoginResult{}, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(body))
	if err != nil {
		c.tel.ReportBroken(report_client_login, fmt.Errorf("parse details page: %w", err))
		return LoginResult{}, upstreamError("parse details page", err)
	}
	result := parseDetailsPage(ctx, doc)
	if !result.Hidden.Complete() {
		c.tel.ReportWarning(report_client_login, fmt.Errorf("details page is missing hidden fields"), result.Hidden)
	}
	return result, nil
}

func labelText(doc *goquery.Document, id string) string {
	label := doc.Find("label#" + id).First()
	if label.Length() == 0 {
		return "Unknown"
	}
	return strings.TrimSpace(label.Text())
}

func parseDetailsPage(ctx context.Context, doc *goquery.Document) LoginResult {
	hidden := HiddenFields{}
	for _, id := range hiddenFieldIds {
		input := doc.Find("input#" + id).First()
		if input.Length() == 0 {
			continue
		}
		hidden[id] = input.AttrOr("value", "")
	}

	return LoginResult{
		Profile: Profile{
			StudentName: labelText(doc, "lblStudentName"),
			FatherName:  labelText(doc, "lblFatherName"),
			CourseName:  labelText(doc, "CourseName"),
			BranchName:  labelText(doc, "BranchName"),
		},
		Hidden:       hidden,
		SessionYears: htmlutil.GetOptions(ctx, doc.Find("select#SessionYear").First()),
		Years:        htmlutil.GetOptions(ctx, doc.Find("select#Year").First()),
	}
}

// Semesters returns the semester list of the student's branch, it is the
// portal's JSON as is.
func (c *Client) Semesters(ctx context.Context, hidden HiddenFields) (json.RawMessage, error) {
	branchId := hidden[FieldBranchId]
	if branchId == "" {
		return nil, fmt.Errorf("%w: %s", ErrSessionIncomplete, FieldBranchId)
	}

	res, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("BranchId", branchId).
		Get(semesterPath)
	if err != nil {
		c.tel.ReportBroken(report_client_semesters, fmt.Errorf("fetch: %w", err))
		return nil, upstreamError("fetch semesters", err)
	}
	if res.IsError() {
		c.tel.ReportBroken(report_client_semesters, fmt.Errorf("fetch: status %s", res.Status()))
		return nil, upstreamStatusError("fetch semesters", res)
	}

	body := res.Body()
	if !json.Valid(body) {
		c.tel.ReportBroken(report_client_semesters, fmt.Errorf("response is not json"), snippet(body, rejectSnippetLength))
		return nil, fmt.Errorf("fetch semesters: %w: response is not json", ErrUpstreamUnavailable)
	}
	return json.RawMessage(body), nil
}

func (c *Client) fetchAttendance(ctx context.Context, hidden HiddenFields, query AttendanceQuery, month int) ([]byte, error) {
	c.tel.ReportDebug("fetch attendance", month)

	res, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"CollegeId":              hidden[FieldCollegeId],
			"CourseId":               hidden[FieldCourseId],
			"BranchId":               hidden[FieldBranchId],
			"StudentAdmissionId":     hidden[FieldStudentAdmissionId],
			"CourseBranchDurationId": query.SemesterId,
			"SessionYear":            query.SessionYear,
			"Year":                   query.Year,
			"MonthId":                strconv.Itoa(month),
			"RollNo":                 query.RollNo,
			"DateOfBirth":            query.DateOfBirth,
		}).
		Get(attendancePath)
	if err != nil {
		return nil, upstreamError("fetch attendance", err)
	}
	if res.IsError() {
		return nil, upstreamStatusError("fetch attendance", res)
	}
	return res.Body(), nil
}

// Attendance fetches the attendance table of a single month.
func (c *Client) Attendance(ctx context.Context, hidden HiddenFields, query AttendanceQuery) (MonthAttendance, error) {
	if !hidden.Complete() {
		return MonthAttendance{}, ErrSessionIncomplete
	}

	body, err := c.fetchAttendance(ctx, hidden, query, query.MonthId)
	if err != nil {
		c.tel.ReportBroken(report_client_attendance, err, query.MonthId)
		return MonthAttendance{}, err
	}

	table := ExtractTable(body)
	if len(table.Headers) == 0 && len(table.Rows) == 0 {
		c.tel.ReportDebug("no table in attendance response", query.MonthId, snippet(body, 500))
	}
	return MonthAttendance{
		HTML:  string(body),
		Table: table,
	}, nil
}

// AllMonths fetches every month of the year and sums the counters per subject.
func (c *Client) AllMonths(ctx context.Context, hidden HiddenFields, query AttendanceQuery) (Aggregate, error) {
	if !hidden.Complete() {
		return Aggregate{}, ErrSessionIncomplete
	}

	fetch := func(ctx context.Context, month int) (Table, error) {
		body, err := c.fetchAttendance(ctx, hidden, query, month)
		if err != nil {
			return Table{}, err
		}
		return ExtractTable(body), nil
	}
	return AggregateMonths(ctx, AllMonths, fetch, c.concurrency, c.tel), nil
}
