package service

import (
	"encoding/base64"
	"net/http"
	"umsassist-backend/internal/scrapers/ums"
	"umsassist-backend/pkg/htmlutil"
)

type initResponse struct {
	SessionId    string `json:"session_id"`
	CaptchaImage string `json:"captcha_image"`
}

func (s *Service) handleInit(w http.ResponseWriter, r *http.Request) {
	client, err := ums.NewClient(s.portal, s.tel)
	if err != nil {
		s.writeError(w, report_api_init, err)
		return
	}
	result, err := client.Init(r.Context())
	if err != nil {
		s.writeError(w, report_api_init, err)
		return
	}

	entry := s.registry.Create(client)
	writeJSON(w, http.StatusOK, initResponse{
		SessionId:    entry.Id,
		CaptchaImage: "data:image/png;base64," + base64.StdEncoding.EncodeToString(result.CaptchaImage),
	})
}

type loginRequest struct {
	SessionId   string     `json:"session_id"`
	LoginId     flexString `json:"login_id"`
	Password    flexString `json:"password"`
	CaptchaText string     `json:"captcha_text"`
}

type loginResponse struct {
	Success      bool              `json:"success"`
	Message      string            `json:"message"`
	StudentData  ums.Profile       `json:"student_data"`
	HiddenFields ums.HiddenFields  `json:"hidden_fields"`
	SessionYears []htmlutil.Option `json:"session_years"`
	Years        []htmlutil.Option `json:"years"`
}

// handleLogin takes the roll number as login_id and the date of birth as
// password, those are the names the frontend form uses.
func (s *Service) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	err := decodeBody(w, r, &req)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	entry, err := s.registry.Get(req.SessionId)
	if err != nil {
		s.writeError(w, report_api_login, err)
		return
	}

	result, err := entry.Client.Login(r.Context(), ums.LoginRequest{
		RollNo:      req.LoginId.String(),
		DateOfBirth: req.Password.String(),
		Captcha:     req.CaptchaText,
	})
	if err != nil {
		s.writeError(w, report_api_login, err)
		return
	}
	err = s.registry.Update(entry.Id, result.Profile, result.Hidden)
	if err != nil {
		s.writeError(w, report_api_login, err)
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{
		Success:      true,
		Message:      "Login Successful",
		StudentData:  result.Profile,
		HiddenFields: result.Hidden,
		SessionYears: result.SessionYears,
		Years:        result.Years,
	})
}

type logoutRequest struct {
	SessionId string `json:"session_id"`
}

func (s *Service) handleLogout(w http.ResponseWriter, r *http.Request) {
	var req logoutRequest
	err := decodeBody(w, r, &req)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	if !s.registry.Remove(req.SessionId) {
		writeBadRequest(w, msgInvalidSession)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
