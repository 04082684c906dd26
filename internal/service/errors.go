package service

import (
	"errors"
	"net/http"
	"umsassist-backend/internal/leaderboard"
	"umsassist-backend/internal/scrapers/ums"
	"umsassist-backend/internal/session"
)

const (
	msgInvalidSession    = "Invalid or expired session"
	msgInvalidCaptcha    = "Invalid CAPTCHA"
	msgLoginRejected     = "Could not fetch details. Check RollNo/DOB."
	msgCaptchaNotFound   = "Could not find CAPTCHA image"
	msgBranchNotFound    = "Branch ID not found. Please login again."
	msgSessionIncomplete = "Session details not found. Please login again."
)

// writeError maps an error from the lower layers to a status code and body,
// anything unknown is a 500 carrying the error text.
func (s *Service) writeError(w http.ResponseWriter, reportId string, err error) {
	var rejected *ums.LoginRejectedError

	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: msgInvalidSession})
	case errors.Is(err, ums.ErrInvalidCaptcha):
		writeJSON(w, http.StatusUnauthorized, failureResponse{Message: msgInvalidCaptcha})
	case errors.As(err, &rejected):
		writeJSON(w, http.StatusUnauthorized, failureResponse{
			Message:          msgLoginRejected,
			DebugHtmlSnippet: rejected.Snippet,
		})
	case errors.Is(err, ums.ErrSessionIncomplete):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: msgSessionIncomplete})
	case errors.Is(err, ums.ErrCaptchaNotFound):
		s.tel.ReportBroken(reportId, err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: msgCaptchaNotFound})
	case errors.Is(err, leaderboard.ErrUnavailable):
		s.tel.ReportBroken(reportId, err)
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
	default:
		s.tel.ReportBroken(reportId, err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
	}
}

func writeBadRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: message})
}
