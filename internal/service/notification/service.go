package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jwalitptl/hospital-api/internal/email"
	"github.com/jwalitptl/hospital-api/internal/model"
	"github.com/jwalitptl/hospital-api/internal/repository"
	"github.com/jwalitptl/hospital-api/pkg/logger"
	"github.com/jwalitptl/hospital-api/pkg/messaging"
	"github.com/jwalitptl/hospital-api/pkg/metrics"
)

// Notifier emails newly issued access codes to their subjects.
type Notifier struct {
	subjects repository.SubjectRepository
	emailSvc email.Service
	broker   messaging.Broker
	channel  string
	siteURL  string
	opener   Opener
	logger   *logger.Logger
	metrics  *metrics.Metrics
}

// Opener decrypts codes from sealed events.
type Opener interface {
	Open(sealed string) (string, error)
}

type Config struct {
	Channel string
	SiteURL string
	Opener  Opener
}

func NewNotifier(
	subjects repository.SubjectRepository,
	emailSvc email.Service,
	broker messaging.Broker,
	config Config,
	log *logger.Logger,
	m *metrics.Metrics,
) *Notifier {
	return &Notifier{
		subjects: subjects,
		emailSvc: emailSvc,
		broker:   broker,
		channel:  config.Channel,
		siteURL:  config.SiteURL,
		opener:   config.Opener,
		logger:   log,
		metrics:  m,
	}
}

// Run consumes the event channel until ctx is cancelled.
func (n *Notifier) Run(ctx context.Context) error {
	n.logger.Info("Starting access code notifier", "channel", n.channel)

	err := messaging.Consume(ctx, n.broker, n.channel, map[string]messaging.Handler{
		model.EventAccessCodeIssued: n.HandleAccessCodeIssued,
	}, func(err error) {
		n.logger.Error(err, "Failed to handle message")
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (n *Notifier) HandleAccessCodeIssued(ctx context.Context, msg messaging.Message) error {
	var event model.AccessCodeIssuedEvent
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		n.metrics.NotificationsSent.WithLabelValues("failed").Inc()
		return fmt.Errorf("invalid payload: %w", err)
	}

	code := event.Code
	if event.Sealed {
		if n.opener == nil {
			n.metrics.NotificationsSent.WithLabelValues("failed").Inc()
			return errors.New("received sealed access code but no payload key is configured")
		}
		plain, err := n.opener.Open(event.Code)
		if err != nil {
			n.metrics.NotificationsSent.WithLabelValues("failed").Inc()
			return fmt.Errorf("failed to open access code: %w", err)
		}
		code = plain
	}

	subject, err := n.lookup(ctx, event.Namespace, event.SubjectID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			n.metrics.NotificationsSent.WithLabelValues("skipped").Inc()
			n.logger.Warn("Access code subject not found, skipping email",
				"namespace", string(event.Namespace),
				"subject_id", event.SubjectID)
			return nil
		}
		n.metrics.NotificationsSent.WithLabelValues("failed").Inc()
		return fmt.Errorf("failed to look up subject: %w", err)
	}

	if subject.Email() == "" {
		n.metrics.NotificationsSent.WithLabelValues("skipped").Inc()
		n.logger.Debug("Subject has no email, skipping", "subject_id", event.SubjectID)
		return nil
	}

	err = n.emailSvc.SendAccessCode(ctx, email.AccessCodeMessage{
		To:      subject.Email(),
		Name:    subject.Name(),
		Kind:    string(event.Namespace),
		Code:    code,
		SiteURL: n.siteURL,
	})
	if err != nil {
		n.metrics.NotificationsSent.WithLabelValues("failed").Inc()
		return err
	}

	n.metrics.NotificationsSent.WithLabelValues("sent").Inc()
	n.logger.Info("Sent access code email",
		"namespace", string(event.Namespace),
		"access_code_id", event.AccessCodeID)
	return nil
}

func (n *Notifier) lookup(ctx context.Context, kind model.SubjectKind, id string) (*model.Subject, error) {
	switch kind {
	case model.SubjectKindPatient:
		p, err := n.subjects.GetPatient(ctx, id)
		if err != nil {
			return nil, err
		}
		return model.PatientSubject(p), nil
	case model.SubjectKindDoctor:
		d, err := n.subjects.GetDoctor(ctx, id)
		if err != nil {
			return nil, err
		}
		return model.DoctorSubject(d), nil
	}
	return nil, fmt.Errorf("unknown subject kind %q", kind)
}
