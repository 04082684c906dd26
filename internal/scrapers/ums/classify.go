package ums

import (
	"bytes"
	"strings"
	"unicode/utf8"
)

// The portal does not expose a real API, these markers are the only signals
// it gives. When the portal markup changes, this file is what changes with it.
const (
	// substring of the captcha <img> src on the login page
	captchaSrcMarker = "GetCaptchaimage"
	// element id of the captcha <img> when the src marker is not found
	captchaFallbackId = "imgCaptcha"
	// text present on the login response when the captcha was wrong
	invalidCaptchaMarker = "Invalid Captcha"
	// the number of characters of the login response kept for diagnostics
	rejectSnippetLength = 200
	// subjects containing this (case-insensitive) are summary rows
	totalRowMarker = "total"
)

// classifyLogin decides the outcome of a login submission from the response
// body alone, the portal returns 200 for every outcome.
//
// A page that echoes the roll number back is taken to be the student's
// details page. This is a heuristic, there is nothing more reliable on the page.
func classifyLogin(body []byte, rollNo string) error {
	if bytes.Contains(body, []byte(invalidCaptchaMarker)) {
		return ErrInvalidCaptcha
	}
	if rollNo != "" && bytes.Contains(body, []byte(rollNo)) {
		return nil
	}
	return &LoginRejectedError{Snippet: snippet(body, rejectSnippetLength)}
}

func snippet(body []byte, n int) string {
	if utf8.RuneCount(body) <= n {
		return string(body)
	}
	out := strings.Builder{}
	for i := 0; i < n && len(body) > 0; i++ {
		r, size := utf8.DecodeRune(body)
		out.WriteRune(r)
		body = body[size:]
	}
	return out.String()
}

func isTotalRow(subject string) bool {
	return strings.Contains(strings.ToLower(subject), totalRowMarker)
}
