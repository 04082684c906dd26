package service

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"strings"
	"umsassist-backend/internal/leaderboard"
)

type joinRequest struct {
	RollNo     flexString      `json:"roll_no"`
	Name       flexString      `json:"name"`
	Percentage json.RawMessage `json:"percentage"`
}

// parsePercentage accepts a number or a numeric string within 0-100.
func parsePercentage(raw json.RawMessage) (float64, bool) {
	var value flexString
	err := json.Unmarshal(raw, &value)
	if err != nil {
		return 0, false
	}
	percentage, err := strconv.ParseFloat(strings.TrimSuffix(value.String(), "%"), 64)
	if err != nil || math.IsNaN(percentage) || percentage < 0 || percentage > 100 {
		return 0, false
	}
	return percentage, true
}

func isMissing(raw json.RawMessage) bool {
	trimmed := strings.TrimSpace(string(raw))
	return trimmed == "" || trimmed == "null" || trimmed == `""`
}

func (s *Service) handleLeaderboardJoin(w http.ResponseWriter, r *http.Request) {
	var req joinRequest
	err := decodeBody(w, r, &req)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	if req.RollNo == "" || req.Name == "" || isMissing(req.Percentage) {
		writeBadRequest(w, "Missing data")
		return
	}
	percentage, ok := parsePercentage(req.Percentage)
	if !ok {
		writeBadRequest(w, "Invalid percentage")
		return
	}

	err = s.store.Upsert(r.Context(), leaderboard.Entry{
		RollNo:      req.RollNo.String(),
		Name:        req.Name.String(),
		Percentage:  percentage,
		LastUpdated: s.time.Now(),
	})
	if err != nil {
		s.writeError(w, report_api_leaderboard, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Joined leaderboard!",
	})
}

type leaderboardEntry struct {
	Name       string  `json:"name"`
	Percentage float64 `json:"percentage"`
	RollNo     string  `json:"roll_no"`
}

func (s *Service) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	entries, err := s.store.Top(r.Context(), leaderboard.DefaultLimit)
	if err != nil {
		s.writeError(w, report_api_leaderboard, err)
		return
	}

	out := make([]leaderboardEntry, 0, len(entries))
	for _, entry := range entries {
		out = append(out, leaderboardEntry{
			Name:       entry.Name,
			Percentage: entry.Percentage,
			RollNo:     entry.RollNo,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Service) handleDebugStore(w http.ResponseWriter, r *http.Request) {
	err := s.store.Ping(r.Context())
	if err != nil {
		s.tel.ReportWarning(report_api_leaderboard, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"status":  "Failed",
			"error":   err.Error(),
			"backend": s.storeBackend,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "Connected",
		"backend": s.storeBackend,
	})
}
