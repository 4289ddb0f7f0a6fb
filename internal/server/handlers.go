package server

import (
	"encoding/json"
	"net/http"

	"github.com/cjremmett/webtools/internal/applog"
	"github.com/cjremmett/webtools/internal/checkin"
	"github.com/cjremmett/webtools/internal/emailq"
)

func (s *Server) handleCheckin(w http.ResponseWriter, r *http.Request) {
	if !s.deps.Auth.Authorized(r, "gafg_tools") {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	var body struct {
		HTMLSource string `json:"html_source"`
		Sender     string `json:"sender"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.HTMLSource == "" || body.Sender == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	outcome, err := s.deps.Checkin.ProcessEmail(r.Context(), body.HTMLSource, body.Sender)
	if err != nil {
		s.deps.Log.Append(r.Context(), "CHECKIN", applog.LevelError, err.Error())
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	// Early exits still return success so the mail forwarder does not retry.
	if outcome == checkin.OutcomeCheckedIn {
		w.WriteHeader(http.StatusCreated)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleCheckinSettings(w http.ResponseWriter, r *http.Request) {
	if !s.deps.Auth.Authorized(r, "gafg_tools") {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	var u checkin.UserSettings
	if err := json.NewDecoder(r.Body).Decode(&u); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if err := s.deps.Checkin.UpdateUser(r.Context(), u); err != nil {
		s.deps.Log.Append(r.Context(), "CHECKIN", applog.LevelWarning, err.Error())
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleCheckinReminder(w http.ResponseWriter, r *http.Request) {
	if !s.deps.Auth.Authorized(r, "gafg_tools") {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	sent, err := s.deps.Checkin.SendManualReminders(r.Context())
	if err != nil {
		s.deps.Log.Append(r.Context(), "CHECKIN", applog.LevelError, err.Error())
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]int{"reminders_queued": sent})
}

func (s *Server) handleAccessLogs(w http.ResponseWriter, r *http.Request) {
	if !s.deps.Auth.Authorized(r, "gafg_tools") {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	records, err := s.deps.Log.RecentResourceAccess(r.Context(), 500)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	writeJSON(w, records)
}

func (s *Server) handleOutgoingEmails(w http.ResponseWriter, r *http.Request) {
	if !s.deps.Auth.Authorized(r, "email_tools") {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	msgs, err := s.deps.Emails.DrainUnsent(r.Context())
	if err != nil {
		s.deps.Log.Append(r.Context(), "EMAIL_TOOLS", applog.LevelError, err.Error())
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	if msgs == nil {
		msgs = []emailq.Message{}
	}
	writeJSON(w, msgs)
}

func (s *Server) handleChatHistory(w http.ResponseWriter, r *http.Request) {
	if s.deps.History == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	userID := r.URL.Query().Get("userid")
	chatID := r.URL.Query().Get("chatid")
	if userID == "" || chatID == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	turns, found, err := s.deps.History.History(r.Context(), userID, chatID)
	if err != nil {
		s.deps.Log.Append(r.Context(), "AI_TOOLS", applog.LevelError, err.Error())
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	if !found {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	writeJSON(w, turns)
}

func (s *Server) handleChatList(w http.ResponseWriter, r *http.Request) {
	if s.deps.History == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	userID := r.URL.Query().Get("userid")
	if userID == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	summaries, err := s.deps.History.Summaries(r.Context(), userID)
	if err != nil {
		s.deps.Log.Append(r.Context(), "AI_TOOLS", applog.LevelError, err.Error())
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	writeJSON(w, summaries)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
