// Package notify delivers user notifications.  The worker sends daily
// reminders and monthly reports through a Sender.
package notify

import (
	"context"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/parking-reservation/internal/config"
	"github.com/iliyamo/parking-reservation/internal/logging"
)

// Sender delivers one HTML message.
type Sender interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPSender sends mail through a single SMTP relay.
type SMTPSender struct {
	cfg      config.MailConfig
	sendMail sendMailFunc
	now      func() time.Time
}

func NewSMTPSender(cfg config.MailConfig) *SMTPSender {
	return &SMTPSender{cfg: cfg, sendMail: smtp.SendMail, now: time.Now}
}

func (s *SMTPSender) Send(ctx context.Context, to, subject, htmlBody string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	to = strings.TrimSpace(to)
	if to == "" || strings.ContainsAny(to, "\r\n") {
		return fmt.Errorf("notify: invalid recipient %q", to)
	}
	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	if err := s.sendMail(addr, auth, s.cfg.From, []string{to}, s.message(to, subject, htmlBody)); err != nil {
		return fmt.Errorf("notify: send to %s: %w", to, err)
	}
	return nil
}

func (s *SMTPSender) message(to, subject, htmlBody string) []byte {
	var b strings.Builder
	b.WriteString("From: " + s.cfg.From + "\r\n")
	b.WriteString("To: " + to + "\r\n")
	b.WriteString("Subject: " + mime.QEncoding.Encode("utf-8", subject) + "\r\n")
	b.WriteString("Date: " + s.now().UTC().Format(time.RFC1123Z) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"utf-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(htmlBody)
	return []byte(b.String())
}

// LogSender writes notifications to the log instead of sending them.
// The worker uses it when no SMTP host is configured.
type LogSender struct{ log *zap.Logger }

func NewLogSender(log *zap.Logger) *LogSender {
	return &LogSender{log: logging.OrNop(log).Named("notify")}
}

func (l *LogSender) Send(_ context.Context, to, subject, htmlBody string) error {
	l.log.Info("notification", zap.String("to", to), zap.String("subject", subject), zap.Int("bytes", len(htmlBody)))
	return nil
}

// NewSender picks SMTP when configured and the log sink otherwise.
func NewSender(cfg config.MailConfig, log *zap.Logger) Sender {
	if cfg.Enabled() {
		return NewSMTPSender(cfg)
	}
	return NewLogSender(log)
}
