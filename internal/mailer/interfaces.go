package mailer

// Notifier delivers a pre-rendered message to a single recipient.
type Notifier interface {
	Send(toEmail, subject, body string) error
}
