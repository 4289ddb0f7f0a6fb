package checkin

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"
)

// UserSettings is one row of checkin_users: which weekdays the user wants
// to be checked in automatically. Saturday and Sunday exist for debugging
// only and cannot be enabled through the settings endpoint.
type UserSettings struct {
	Email     string `json:"email_address"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Monday    bool   `json:"monday_checkin"`
	Tuesday   bool   `json:"tuesday_checkin"`
	Wednesday bool   `json:"wednesday_checkin"`
	Thursday  bool   `json:"thursday_checkin"`
	Friday    bool   `json:"friday_checkin"`
	Saturday  bool   `json:"saturday_checkin"`
	Sunday    bool   `json:"sunday_checkin"`
}

// EnabledOn reports whether auto check-in is on for the given weekday.
func (u UserSettings) EnabledOn(day time.Weekday) bool {
	switch day {
	case time.Monday:
		return u.Monday
	case time.Tuesday:
		return u.Tuesday
	case time.Wednesday:
		return u.Wednesday
	case time.Thursday:
		return u.Thursday
	case time.Friday:
		return u.Friday
	case time.Saturday:
		return u.Saturday
	case time.Sunday:
		return u.Sunday
	}
	return false
}

type Store interface {
	// Users returns every account for an email. The automation only acts
	// when exactly one exists.
	Users(ctx context.Context, email string) ([]UserSettings, error)
	UpsertUser(ctx context.Context, u UserSettings) error
	AllUsers(ctx context.Context) ([]UserSettings, error)
	RecordExists(ctx context.Context, email, date string) (bool, error)
	CreateRecord(ctx context.Context, email, date string) error
}

// Mailer is the slice of the email queue this package needs.
type Mailer interface {
	Add(ctx context.Context, module, recipient, subject, body string) (string, error)
}

// Outcome says what ProcessEmail decided to do.
type Outcome string

const (
	OutcomeCheckedIn     Outcome = "checked_in"
	OutcomeCheckinFailed Outcome = "checkin_failed"
	OutcomeRejected      Outcome = "rejected"
	OutcomeNoAccount     Outcome = "no_account"
	OutcomeDisabledToday Outcome = "disabled_today"
	OutcomeAlreadyDone   Outcome = "already_done"
)

type Service struct {
	store  Store
	mailer Mailer
	client *http.Client
	now    func() time.Time
}

func NewService(store Store, mailer Mailer) *Service {
	return &Service{
		store:  store,
		mailer: mailer,
		client: &http.Client{Timeout: 30 * time.Second},
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) today() string {
	return s.now().Format("2006-01-02")
}

// ProcessEmail runs the whole flow for one forwarded notification: parse,
// validate the sender, check eligibility for today, record the attempt,
// fire the check-in URL and queue the result email. Every early exit is an
// Outcome, not an error; errors are reserved for infrastructure failures.
func (s *Service) ProcessEmail(ctx context.Context, htmlSource, sender string) (Outcome, error) {
	url, err := CheckinURL(htmlSource)
	if err != nil {
		return OutcomeRejected, nil
	}
	email, err := SenderEmail(sender)
	if err != nil {
		return OutcomeRejected, nil
	}
	first, last, err := SenderName(sender)
	if err != nil {
		return OutcomeRejected, nil
	}

	// A bad sender lands in the inbox for manual inspection; just log it.
	if !ValidEmail(email) || !ValidName(first, last) {
		log.Printf("[checkin] invalid sender, aborting: %s %s %s", email, first, last)
		return OutcomeRejected, nil
	}

	users, err := s.store.Users(ctx, email)
	if err != nil {
		return "", fmt.Errorf("look up check-in user %s: %w", email, err)
	}
	if len(users) != 1 {
		log.Printf("[checkin] %s has %d accounts, not checking in", email, len(users))
		return OutcomeNoAccount, nil
	}
	if !users[0].EnabledOn(s.now().Weekday()) {
		log.Printf("[checkin] %s disabled automatic check-in today", email)
		return OutcomeDisabledToday, nil
	}

	exists, err := s.store.RecordExists(ctx, email, s.today())
	if err != nil {
		return "", fmt.Errorf("check check-in record for %s: %w", email, err)
	}
	if exists {
		log.Printf("[checkin] %s already checked in today", email)
		return OutcomeAlreadyDone, nil
	}
	if err := s.store.CreateRecord(ctx, email, s.today()); err != nil {
		return "", fmt.Errorf("create check-in record for %s: %w", email, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		s.queueResult(ctx, email, first, last, false)
		return OutcomeCheckinFailed, nil
	}
	resp.Body.Close()
	log.Printf("[checkin] called %s, status %d", url, resp.StatusCode)

	ok := resp.StatusCode == http.StatusOK
	s.queueResult(ctx, email, first, last, ok)
	if !ok {
		return OutcomeCheckinFailed, nil
	}
	return OutcomeCheckedIn, nil
}

func (s *Service) queueResult(ctx context.Context, email, first, last string, ok bool) {
	subject := "Automatic iOffice Check-In Successful"
	body := "Hello " + first + " " + last + ",\n\n" +
		"You have been checked into your seat successfully.\n\n" +
		"If you no longer want to be checked in automatically, please visit cjremmett.com/ioffice to configure your account.\n\n" +
		"Thanks,\nAutomated Check-In Bot"
	if !ok {
		subject = "Failed Automatic Check-In"
		body = "Hello " + first + " " + last + ",\n\n" +
			"Automated seat check-in failed. Please manually check in. My apologies for any inconvenience.\n\n" +
			"If you no longer want to be checked in automatically, please visit cjremmett.com/ioffice to configure your account.\n\n" +
			"Thanks,\nAutomated Check-In Bot"
	}
	if _, err := s.mailer.Add(ctx, "CHECKIN", email, subject, body); err != nil {
		log.Printf("[checkin] queue result email for %s failed: %v", email, err)
	}
}

// UpdateUser validates and upserts per-weekday settings. Weekend flags are
// forced off regardless of the request.
func (s *Service) UpdateUser(ctx context.Context, u UserSettings) error {
	if !ValidEmail(u.Email) || !ValidName(u.FirstName, u.LastName) {
		return fmt.Errorf("invalid user settings for %q", u.Email)
	}
	u.Saturday = false
	u.Sunday = false
	if err := s.store.UpsertUser(ctx, u); err != nil {
		return fmt.Errorf("upsert check-in user %s: %w", u.Email, err)
	}
	return nil
}

// SendManualReminders queues a reminder for every user whose automatic
// check-in is off today. Returns how many reminders were queued.
func (s *Service) SendManualReminders(ctx context.Context) (int, error) {
	users, err := s.store.AllUsers(ctx)
	if err != nil {
		return 0, fmt.Errorf("list check-in users: %w", err)
	}
	day := s.now().Weekday()
	var sent int
	for _, u := range users {
		if u.EnabledOn(day) {
			continue
		}
		body := "Hello " + u.FirstName + " " + u.LastName + ",\n\n" +
			"This is a reminder to check into your seat manually today.\n\n" +
			"Thanks,\nAutomated Check-In Bot"
		if _, err := s.mailer.Add(ctx, "CHECKIN", u.Email, "Manual Check-In Reminder", body); err != nil {
			log.Printf("[checkin] queue reminder for %s failed: %v", u.Email, err)
			continue
		}
		sent++
	}
	return sent, nil
}
