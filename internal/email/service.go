package email

import (
	"context"
	"fmt"
	"strings"

	"gopkg.in/gomail.v2"

	"github.com/jwalitptl/hospital-api/pkg/logger"
)

type Service interface {
	SendAccessCode(ctx context.Context, msg AccessCodeMessage) error
	SendCustom(ctx context.Context, to string, subject string, content string) error
}

// AccessCodeMessage is everything the issued-code email needs.
type AccessCodeMessage struct {
	To      string
	Name    string
	Kind    string
	Code    string
	SiteURL string
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// Sender is the part of *gomail.Dialer the service uses.
type Sender interface {
	DialAndSend(m ...*gomail.Message) error
}

type SMTPService struct {
	from   string
	sender Sender
}

func NewSMTPService(cfg SMTPConfig) *SMTPService {
	return &SMTPService{
		from:   cfg.From,
		sender: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
	}
}

// NewSMTPServiceWithSender is used by tests to capture messages.
func NewSMTPServiceWithSender(from string, sender Sender) *SMTPService {
	return &SMTPService{from: from, sender: sender}
}

func (s *SMTPService) SendAccessCode(ctx context.Context, msg AccessCodeMessage) error {
	m := BuildAccessCodeMessage(s.from, msg)
	return s.send(ctx, m)
}

func (s *SMTPService) SendCustom(ctx context.Context, to string, subject string, content string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", content)
	return s.send(ctx, m)
}

func (s *SMTPService) send(ctx context.Context, m *gomail.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.sender.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

func BuildAccessCodeMessage(from string, msg AccessCodeMessage) *gomail.Message {
	m := gomail.NewMessage()
	m.SetHeader("From", from)
	m.SetAddressHeader("To", msg.To, msg.Name)
	m.SetHeader("Subject", "Your hospital access code")

	var body strings.Builder
	if msg.Name != "" {
		fmt.Fprintf(&body, "Hello %s,\n\n", msg.Name)
	} else {
		body.WriteString("Hello,\n\n")
	}
	fmt.Fprintf(&body, "Your %s access code is: %s\n\n", msg.Kind, msg.Code)
	body.WriteString("The code does not expire. Keep it private.\n")
	if msg.SiteURL != "" {
		fmt.Fprintf(&body, "\nEnter it at %s\n", msg.SiteURL)
	}
	m.SetBody("text/plain", body.String())

	return m
}

// LogService stands in for SMTP when email is disabled. It records that a
// message would have been sent, without the code.
type LogService struct {
	logger *logger.Logger
}

func NewLogService(log *logger.Logger) *LogService {
	return &LogService{logger: log}
}

func (s *LogService) SendAccessCode(ctx context.Context, msg AccessCodeMessage) error {
	s.logger.Info("Email disabled, skipping access code email", "to", msg.To, "kind", msg.Kind)
	return nil
}

func (s *LogService) SendCustom(ctx context.Context, to string, subject string, content string) error {
	s.logger.Info("Email disabled, skipping email", "to", to, "subject", subject)
	return nil
}
