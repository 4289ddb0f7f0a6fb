package emailq

import (
	"fmt"

	mailjet "github.com/mailjet/mailjet-apiv3-go/v4"
)

// MailjetSender delivers a single message through the Mailjet v3.1 send API.
type MailjetSender struct {
	client *mailjet.Client
}

func NewMailjetSender(apiKey, apiSecret string) *MailjetSender {
	return &MailjetSender{client: mailjet.NewMailjetClient(apiKey, apiSecret)}
}

func (s *MailjetSender) Send(fromEmail, fromName, toEmail, toName, subject, textPart, htmlPart string) error {
	messages := mailjet.MessagesV31{
		Info: []mailjet.InfoMessagesV31{{
			From: &mailjet.RecipientV31{
				Email: fromEmail,
				Name:  fromName,
			},
			To: &mailjet.RecipientsV31{{
				Email: toEmail,
				Name:  toName,
			}},
			Subject:  subject,
			TextPart: textPart,
			HTMLPart: htmlPart,
		}},
	}
	if _, err := s.client.SendMailV31(&messages); err != nil {
		return fmt.Errorf("mailjet send to %s: %w", toEmail, err)
	}
	return nil
}
