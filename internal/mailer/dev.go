package mailer

import (
	"fmt"

	"github.com/ringring/ringring-server/pkg/logger"
)

// DevNotifier prints messages instead of sending them.
type DevNotifier struct{}

func NewDevNotifier() *DevNotifier {
	return &DevNotifier{}
}

func (d *DevNotifier) Send(toEmail, subject, body string) error {
	logger.Info("[DEV MAIL]",
		"to", toEmail,
		"subject", subject,
	)

	fmt.Printf("\n"+
		"─────────────────────────────────────────────\n"+
		"DEV MAIL\n"+
		"─────────────────────────────────────────────\n"+
		"To: %s\n"+
		"Subject: %s\n"+
		"\n"+
		"%s\n"+
		"─────────────────────────────────────────────\n\n",
		toEmail, subject, body)

	return nil
}
