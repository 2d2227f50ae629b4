// Package alerts delivers scanner alert emails and records each send.
package alerts

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"regexp"
	"time"
)

const (
	maxSubjectLen = 140
	maxBodyLen    = 10000

	defaultSubject = "MarketScanner Alert"
	defaultBody    = "<p>Alert fired</p>"
)

var (
	ErrInvalidRecipient = errors.New("invalid recipient email")

	emailPattern = regexp.MustCompile(`^[^@]+@[^@]+\.[^@]+$`)
)

type Message struct {
	To      string
	Subject string
	HTML    string
}

// Sender delivers one email and returns a provider message ID. The service
// treats delivery as opaque; SMTP, an API relay, or a test fake all fit.
type Sender interface {
	Send(ctx context.Context, msg Message) (string, error)
}

type Service struct {
	sender Sender
	db     *sql.DB // optional send log; nil disables recording
	log    *slog.Logger
	clock  func() time.Time
}

func NewService(sender Sender, db *sql.DB, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{sender: sender, db: db, log: log, clock: time.Now}
}

// Send validates and caps the message, delivers it, and best-effort records
// the send. Returns the provider message ID.
func (s *Service) Send(ctx context.Context, msg Message) (string, error) {
	if !emailPattern.MatchString(msg.To) {
		return "", ErrInvalidRecipient
	}
	if msg.Subject == "" {
		msg.Subject = defaultSubject
	}
	if msg.HTML == "" {
		msg.HTML = defaultBody
	}
	msg.Subject = truncate(msg.Subject, maxSubjectLen)
	msg.HTML = truncate(msg.HTML, maxBodyLen)

	id, err := s.sender.Send(ctx, msg)
	if err != nil {
		return "", err
	}

	if s.db != nil {
		if err := s.record(ctx, msg, id); err != nil {
			s.log.Warn("alert send not recorded", "err", err)
		}
	}
	return id, nil
}

func (s *Service) record(ctx context.Context, msg Message, messageID string) error {
	const q = `
INSERT INTO alert_log (message_id, recipient, subject, sent_at)
VALUES ($1, $2, $3, $4)
`
	_, err := s.db.ExecContext(ctx, q, messageID, msg.To, msg.Subject, s.clock().UTC())
	return err
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
