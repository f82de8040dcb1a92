package email

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"

	"github.com/jwalitptl/hospital-api/pkg/logger"
)

type captureSender struct {
	messages []*gomail.Message
	err      error
}

func (s *captureSender) DialAndSend(m ...*gomail.Message) error {
	if s.err != nil {
		return s.err
	}
	s.messages = append(s.messages, m...)
	return nil
}

func render(t *testing.T, m *gomail.Message) string {
	t.Helper()
	var buf bytes.Buffer
	_, err := m.WriteTo(&buf)
	require.NoError(t, err)
	return buf.String()
}

func TestBuildAccessCodeMessage(t *testing.T) {
	m := BuildAccessCodeMessage("noreply@hospital.example", AccessCodeMessage{
		To:      "jane@example.com",
		Name:    "Jane Roe",
		Kind:    "patient",
		Code:    "ABC234",
		SiteURL: "https://hospital.example/access",
	})

	assert.Equal(t, []string{"Your hospital access code"}, m.GetHeader("Subject"))
	assert.Equal(t, []string{"noreply@hospital.example"}, m.GetHeader("From"))
	require.Len(t, m.GetHeader("To"), 1)
	assert.Contains(t, m.GetHeader("To")[0], "jane@example.com")

	body := render(t, m)
	assert.Contains(t, body, "Hello Jane Roe")
	assert.Contains(t, body, "patient access code is: ABC234")
	assert.Contains(t, body, "https://hospital.example/access")
}

func TestSMTPService_SendAccessCode(t *testing.T) {
	sender := &captureSender{}
	svc := NewSMTPServiceWithSender("noreply@hospital.example", sender)

	err := svc.SendAccessCode(context.Background(), AccessCodeMessage{To: "dr@example.com", Kind: "doctor", Code: "XYZ789"})
	require.NoError(t, err)
	require.Len(t, sender.messages, 1)
	assert.Contains(t, render(t, sender.messages[0]), "XYZ789")
}

func TestSMTPService_Errors(t *testing.T) {
	sender := &captureSender{err: errors.New("connection refused")}
	svc := NewSMTPServiceWithSender("noreply@hospital.example", sender)

	err := svc.SendCustom(context.Background(), "a@example.com", "hi", "body")
	assert.ErrorContains(t, err, "failed to send email")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, svc.SendCustom(ctx, "a@example.com", "hi", "body"), context.Canceled)
}

func TestLogService(t *testing.T) {
	svc := NewLogService(logger.Nop())
	assert.NoError(t, svc.SendAccessCode(context.Background(), AccessCodeMessage{To: "a@example.com"}))
	assert.NoError(t, svc.SendCustom(context.Background(), "a@example.com", "s", "c"))
}
