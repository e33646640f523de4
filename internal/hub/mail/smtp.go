package mail

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"time"
)

// SMTPMailer sends mail through a single configured relay. It speaks
// plain SMTP, upgrades with STARTTLS when the server offers it, and
// authenticates only when credentials are configured (local relays such
// as MailHog take neither).
type SMTPMailer struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string

	// InsecureSkipVerify disables TLS certificate verification. Only
	// for local development relays with self-signed certificates.
	InsecureSkipVerify bool
}

// SendLoginCode delivers a one-time code to the given address. Failures
// are returned as-is; the caller decides whether the request fails (it
// does: there is no retry queue).
func (m *SMTPMailer) SendLoginCode(
	ctx context.Context,
	to, code string,
	validFor time.Duration,
) error {
	msg := buildLoginCodeMessage(m.From, to, code, validFor)

	dialer := &net.Dialer{Timeout: 5 * time.Second}
	if deadline, ok := ctx.Deadline(); ok {
		dialer.Deadline = deadline
	}

	addr := net.JoinHostPort(m.Host, strconv.Itoa(m.Port))
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("mail: dial %s: %w", addr, err)
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, m.Host)
	if err != nil {
		return fmt.Errorf("mail: smtp handshake: %w", err)
	}
	defer func() { _ = client.Quit() }()

	if err := client.Hello("localhost"); err != nil {
		return fmt.Errorf("mail: ehlo: %w", err)
	}

	if ok, _ := client.Extension("STARTTLS"); ok {
		cfg := &tls.Config{
			ServerName:         m.Host,
			InsecureSkipVerify: m.InsecureSkipVerify,
		}
		if err := client.StartTLS(cfg); err != nil {
			return fmt.Errorf("mail: starttls: %w", err)
		}
		// Re-issue EHLO after the TLS upgrade to refresh extensions.
		if err := client.Hello("localhost"); err != nil {
			return fmt.Errorf("mail: ehlo after starttls: %w", err)
		}
	}

	if m.Username != "" {
		if ok, _ := client.Extension("AUTH"); ok {
			auth := smtp.PlainAuth("", m.Username, m.Password, m.Host)
			if err := client.Auth(auth); err != nil {
				return fmt.Errorf("mail: auth: %w", err)
			}
		}
	}

	if err := client.Mail(m.From); err != nil {
		return fmt.Errorf("mail: mail from: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("mail: rcpt to: %w", err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("mail: data: %w", err)
	}
	if _, err := w.Write([]byte(msg)); err != nil {
		return fmt.Errorf("mail: write body: %w", err)
	}
	return w.Close()
}
