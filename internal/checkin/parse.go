// Package checkin automates office seat check-ins. A forwarded
// notification email carries a one-shot check-in URL; users opt in per
// weekday, get checked in at most once per day, and receive a
// confirmation or failure email through the outgoing queue.
package checkin

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	checkinHost   = "https://gafg.iofficeconnect.com"
	companyDomain = "@gafg.com"
)

var (
	emailRe = regexp.MustCompile(`^[a-zA-Z0-9.@]+$`)
	nameRe  = regexp.MustCompile(`^[a-zA-Z]+$`)
)

// CheckinURL extracts the check-in link from the raw email HTML, which
// arrives with headers and quoted-printable noise still attached.
func CheckinURL(htmlSource string) (string, error) {
	_, after, found := strings.Cut(htmlSource, checkinHost)
	if !found {
		return "", fmt.Errorf("no check-in link in email source")
	}
	path, _, found := strings.Cut(after, `" `)
	if !found {
		return "", fmt.Errorf("unterminated check-in link in email source")
	}
	return checkinHost + strings.ReplaceAll(path, "amp;", ""), nil
}

// SenderEmail pulls the address out of a From header like
// "Remmett, Christopher" <christopher.remmett@gafg.com>.
func SenderEmail(sender string) (string, error) {
	_, after, found := strings.Cut(sender, "<")
	if !found || !strings.HasSuffix(after, ">") {
		return "", fmt.Errorf("malformed sender header %q", sender)
	}
	return after[:len(after)-1], nil
}

// SenderName returns (first, last) from the same header format.
func SenderName(sender string) (string, string, error) {
	last, rest, found := strings.Cut(sender, ",")
	if !found {
		return "", "", fmt.Errorf("malformed sender header %q", sender)
	}
	last = strings.TrimPrefix(last, `"`)

	first, _, found := strings.Cut(rest, `"`)
	if !found {
		return "", "", fmt.Errorf("malformed sender header %q", sender)
	}
	return strings.TrimSpace(first), last, nil
}

// ValidEmail gates on the company domain and on characters that are safe to
// interpolate into queries and email bodies.
func ValidEmail(email string) bool {
	return len(email) >= 12 &&
		emailRe.MatchString(email) &&
		strings.HasSuffix(email, companyDomain)
}

// ValidName accepts alphabetic first and last names only.
func ValidName(first, last string) bool {
	return nameRe.MatchString(first) && nameRe.MatchString(last)
}
