package checkin

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"
)

const sampleSender = `"Remmett, Christopher" <christopher.remmett@gafg.com>`

const sampleHTML = `Subject: Check in reminder
<a href="https://gafg.iofficeconnect.com/checkin?id=123&amp;token=abc" target="_blank">Check in</a>`

func TestCheckinURL(t *testing.T) {
	url, err := CheckinURL(sampleHTML)
	if err != nil {
		t.Fatalf("CheckinURL error: %v", err)
	}
	want := "https://gafg.iofficeconnect.com/checkin?id=123&token=abc"
	if url != want {
		t.Errorf("url = %q, want %q", url, want)
	}

	if _, err := CheckinURL("no link here"); err == nil {
		t.Error("expected error without link")
	}
}

func TestSenderParsing(t *testing.T) {
	email, err := SenderEmail(sampleSender)
	if err != nil || email != "christopher.remmett@gafg.com" {
		t.Errorf("SenderEmail = %q, %v", email, err)
	}

	first, last, err := SenderName(sampleSender)
	if err != nil || first != "Christopher" || last != "Remmett" {
		t.Errorf("SenderName = %q %q, %v", first, last, err)
	}

	if _, err := SenderEmail("garbage"); err == nil {
		t.Error("expected error for malformed header")
	}
}

func TestValidEmail(t *testing.T) {
	tests := []struct {
		email string
		want  bool
	}{
		{"christopher.remmett@gafg.com", true},
		{"a@gafg.com", false},               // too short
		{"someone@else.com", false},         // wrong domain
		{"bad'char@gafg.com", false},        // injection-unsafe
		{"first.last@gafg.com.evil", false}, // wrong suffix
	}
	for _, tt := range tests {
		if got := ValidEmail(tt.email); got != tt.want {
			t.Errorf("ValidEmail(%q) = %v, want %v", tt.email, got, tt.want)
		}
	}
}

func TestValidName(t *testing.T) {
	if !ValidName("Christopher", "Remmett") {
		t.Error("valid name rejected")
	}
	if ValidName("Chris4", "Remmett") || ValidName("Chris", "O'Brien") {
		t.Error("invalid name accepted")
	}
}

// fakes

type fakeCheckinStore struct {
	users   []UserSettings
	records map[string]bool
	created []string
}

func (s *fakeCheckinStore) Users(_ context.Context, email string) ([]UserSettings, error) {
	var out []UserSettings
	for _, u := range s.users {
		if u.Email == email {
			out = append(out, u)
		}
	}
	return out, nil
}

func (s *fakeCheckinStore) AllUsers(_ context.Context) ([]UserSettings, error) {
	return s.users, nil
}

func (s *fakeCheckinStore) UpsertUser(_ context.Context, u UserSettings) error {
	s.users = append(s.users, u)
	return nil
}

func (s *fakeCheckinStore) RecordExists(_ context.Context, email, date string) (bool, error) {
	return s.records[email+"/"+date], nil
}

func (s *fakeCheckinStore) CreateRecord(_ context.Context, email, date string) error {
	s.records[email+"/"+date] = true
	s.created = append(s.created, email)
	return nil
}

type fakeMailer struct {
	subjects []string
}

func (m *fakeMailer) Add(_ context.Context, module, recipient, subject, body string) (string, error) {
	m.subjects = append(m.subjects, subject)
	return "id", nil
}

type staticTransport struct {
	status int
}

func (t *staticTransport) RoundTrip(*http.Request) (*http.Response, error) {
	return &http.Response{
		StatusCode: t.status,
		Body:       io.NopCloser(strings.NewReader("")),
	}, nil
}

func testService(store *fakeCheckinStore, mailer *fakeMailer, status int) *Service {
	s := NewService(store, mailer)
	s.client = &http.Client{Transport: &staticTransport{status: status}}
	// Pin to a Wednesday so weekday-dependent paths are deterministic.
	s.now = func() time.Time { return time.Date(2026, 8, 26, 9, 0, 0, 0, time.UTC) }
	return s
}

func enabledUser() UserSettings {
	return UserSettings{
		Email: "christopher.remmett@gafg.com", FirstName: "Christopher", LastName: "Remmett",
		Monday: true, Tuesday: true, Wednesday: true, Thursday: true, Friday: true,
	}
}

func TestProcessEmail_ChecksIn(t *testing.T) {
	store := &fakeCheckinStore{users: []UserSettings{enabledUser()}, records: map[string]bool{}}
	mailer := &fakeMailer{}
	s := testService(store, mailer, http.StatusOK)

	out, err := s.ProcessEmail(context.Background(), sampleHTML, sampleSender)
	if err != nil {
		t.Fatalf("ProcessEmail error: %v", err)
	}
	if out != OutcomeCheckedIn {
		t.Errorf("outcome = %q, want checked_in", out)
	}
	if len(store.created) != 1 {
		t.Errorf("created %d records, want 1", len(store.created))
	}
	if len(mailer.subjects) != 1 || !strings.Contains(mailer.subjects[0], "Successful") {
		t.Errorf("mail subjects = %v", mailer.subjects)
	}
}

func TestProcessEmail_FailedUpstream(t *testing.T) {
	store := &fakeCheckinStore{users: []UserSettings{enabledUser()}, records: map[string]bool{}}
	mailer := &fakeMailer{}
	s := testService(store, mailer, http.StatusBadGateway)

	out, _ := s.ProcessEmail(context.Background(), sampleHTML, sampleSender)
	if out != OutcomeCheckinFailed {
		t.Errorf("outcome = %q, want checkin_failed", out)
	}
	if len(mailer.subjects) != 1 || !strings.Contains(mailer.subjects[0], "Failed") {
		t.Errorf("mail subjects = %v", mailer.subjects)
	}
}

func TestProcessEmail_EarlyExits(t *testing.T) {
	disabled := enabledUser()
	disabled.Wednesday = false

	tests := []struct {
		name   string
		store  *fakeCheckinStore
		sender string
		want   Outcome
	}{
		{"bad sender", &fakeCheckinStore{records: map[string]bool{}},
			`"Remmett, Chris4" <christopher.remmett@gafg.com>`, OutcomeRejected},
		{"outside domain", &fakeCheckinStore{records: map[string]bool{}},
			`"Doe, Jane" <jane.doe@other.com>`, OutcomeRejected},
		{"no account", &fakeCheckinStore{records: map[string]bool{}},
			sampleSender, OutcomeNoAccount},
		{"disabled today", &fakeCheckinStore{users: []UserSettings{disabled}, records: map[string]bool{}},
			sampleSender, OutcomeDisabledToday},
		{"already done", &fakeCheckinStore{
			users:   []UserSettings{enabledUser()},
			records: map[string]bool{"christopher.remmett@gafg.com/2026-08-26": true},
		}, sampleSender, OutcomeAlreadyDone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mailer := &fakeMailer{}
			s := testService(tt.store, mailer, http.StatusOK)
			out, err := s.ProcessEmail(context.Background(), sampleHTML, tt.sender)
			if err != nil {
				t.Fatalf("ProcessEmail error: %v", err)
			}
			if out != tt.want {
				t.Errorf("outcome = %q, want %q", out, tt.want)
			}
			if len(mailer.subjects) != 0 {
				t.Errorf("unexpected mail queued: %v", mailer.subjects)
			}
		})
	}
}

func TestUpdateUser_ForcesWeekendOff(t *testing.T) {
	store := &fakeCheckinStore{records: map[string]bool{}}
	s := testService(store, &fakeMailer{}, http.StatusOK)

	u := enabledUser()
	u.Saturday = true
	u.Sunday = true
	if err := s.UpdateUser(context.Background(), u); err != nil {
		t.Fatalf("UpdateUser error: %v", err)
	}
	got := store.users[0]
	if got.Saturday || got.Sunday {
		t.Error("weekend flags should be forced off")
	}

	bad := enabledUser()
	bad.Email = "not-company@example.com"
	if err := s.UpdateUser(context.Background(), bad); err == nil {
		t.Error("expected error for non-company email")
	}
}

func TestSendManualReminders(t *testing.T) {
	auto := enabledUser()
	manual := enabledUser()
	manual.Email = "other.person@gafg.com"
	manual.Wednesday = false

	store := &fakeCheckinStore{users: []UserSettings{auto, manual}, records: map[string]bool{}}
	mailer := &fakeMailer{}
	s := testService(store, mailer, http.StatusOK)

	sent, err := s.SendManualReminders(context.Background())
	if err != nil {
		t.Fatalf("SendManualReminders error: %v", err)
	}
	if sent != 1 {
		t.Errorf("sent = %d, want 1 (only the user with auto check-in off)", sent)
	}
}
