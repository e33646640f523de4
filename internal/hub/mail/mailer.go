package mail

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Mailer delivers one-time login codes. The SMTP implementation is the
// only production one; tests substitute a capture fake.
type Mailer interface {
	SendLoginCode(ctx context.Context, to, code string, validFor time.Duration) error
}

// buildLoginCodeMessage renders the full RFC822 message for a login
// code email. Kept separate from transport so the content is testable
// without an SMTP server.
func buildLoginCodeMessage(from, to, code string, validFor time.Duration) string {
	headers := []string{
		"From: " + from,
		"To: " + to,
		"Subject: Your ASI AiHub login code",
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=UTF-8",
	}

	body := fmt.Sprintf(
		"Your login code is %s\r\n\r\nIt is valid for %d minutes. If you did not request it, ignore this email.\r\n",
		code,
		int(validFor.Minutes()),
	)

	return strings.Join(headers, "\r\n") + "\r\n\r\n" + body
}
