package notify

import (
	"context"
	"crypto/tls"
	"fmt"
	"log"
	"strings"

	"github.com/mohammad-safakhou/newsgpt/config"
	"github.com/mohammad-safakhou/newsgpt/internal/metrics"
	"github.com/mohammad-safakhou/newsgpt/utils"
	"github.com/wneessen/go-mail"
)

const (
	maxSubjectLen  = 120
	defaultSubject = "News Summary"
)

// Outcome classifies a send attempt.
type Outcome string

const (
	Sent          Outcome = "sent"
	MissingConfig Outcome = "missing_config"
	NoRecipients  Outcome = "no_recipients"
	NothingToSend Outcome = "nothing_to_send"
	Failed        Outcome = "failed"
)

// Status is the result of a send. It is shown to the user as-is.
type Status struct {
	Outcome    Outcome
	Recipients int
	Missing    []string
	Err        error
}

func (s Status) OK() bool { return s.Outcome == Sent }

func (s Status) String() string {
	switch s.Outcome {
	case Sent:
		return fmt.Sprintf("✅ Sent to %d recipient(s).", s.Recipients)
	case MissingConfig:
		return fmt.Sprintf("❌ Missing SMTP config (%s).", strings.Join(s.Missing, "/"))
	case NoRecipients:
		return "❌ No valid email addresses."
	case NothingToSend:
		return "❌ No AI output yet. Ask the assistant to summarize/translate first."
	default:
		return fmt.Sprintf("❌ Send failed: %v", s.Err)
	}
}

// Deliverer hands a finished message to the mail transport.
type Deliverer func(ctx context.Context, cfg config.SMTPConfig, msg *mail.Msg) error

// LastResponder exposes the text to mail out.
type LastResponder interface {
	LastResponse() string
}

type Sender struct {
	cfg     config.SMTPConfig
	deliver Deliverer
	logger  *log.Logger
}

func NewSender(cfg config.SMTPConfig, logger *log.Logger) *Sender {
	if logger == nil {
		logger = log.New(log.Writer(), "[MAIL] ", log.LstdFlags)
	}
	return &Sender{cfg: cfg, deliver: dialAndSend, logger: logger}
}

// WithDeliverer swaps the transport, mainly for tests.
func (s *Sender) WithDeliverer(d Deliverer) *Sender {
	s.deliver = d
	return s
}

// SubjectFromBody takes the first line of body, capped at 120 characters.
func SubjectFromBody(body string) string {
	subject := utils.Truncate(utils.FirstLine(body), maxSubjectLen)
	if subject == "" {
		return defaultSubject
	}
	return subject
}

// Send mails body to every recipient in one message. It never panics or
// returns an error; failures are described by the Status.
func (s *Sender) Send(ctx context.Context, subject, body string, recipients []string) (status Status) {
	defer func() {
		metrics.Emails.WithLabelValues(string(status.Outcome)).Inc()
		if !status.OK() {
			s.logger.Printf("send not completed: %s", status)
		}
	}()

	if missing := s.cfg.Missing(); len(missing) > 0 {
		return Status{Outcome: MissingConfig, Missing: missing}
	}
	if len(recipients) == 0 {
		return Status{Outcome: NoRecipients}
	}
	if strings.TrimSpace(subject) == "" {
		subject = SubjectFromBody(body)
	}

	msg := mail.NewMsg()
	if err := msg.From(s.cfg.FromAddress()); err != nil {
		return Status{Outcome: Failed, Err: fmt.Errorf("from address: %w", err)}
	}
	if err := msg.To(recipients...); err != nil {
		return Status{Outcome: Failed, Err: fmt.Errorf("recipients: %w", err)}
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, body)

	if err := s.deliver(ctx, s.cfg, msg); err != nil {
		return Status{Outcome: Failed, Recipients: len(recipients), Err: err}
	}
	s.logger.Printf("sent %q to %d recipient(s)", subject, len(recipients))
	return Status{Outcome: Sent, Recipients: len(recipients)}
}

// SendLastResponse mails the session's last assistant answer. A blank
// subject is derived from the answer's first line.
func (s *Sender) SendLastResponse(ctx context.Context, state LastResponder, subject string, recipients []string) Status {
	text := state.LastResponse()
	if strings.TrimSpace(text) == "" {
		metrics.Emails.WithLabelValues(string(NothingToSend)).Inc()
		return Status{Outcome: NothingToSend}
	}
	return s.Send(ctx, subject, text, recipients)
}

// dialAndSend opens one STARTTLS session, authenticates, sends and closes.
func dialAndSend(ctx context.Context, cfg config.SMTPConfig, msg *mail.Msg) error {
	client, err := mail.NewClient(cfg.Host,
		mail.WithPort(cfg.Port),
		mail.WithTLSPolicy(mail.TLSMandatory),
		mail.WithTLSConfig(&tls.Config{ServerName: cfg.Host, InsecureSkipVerify: cfg.InsecureSkipVerify}),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(cfg.Username),
		mail.WithPassword(cfg.Password),
	)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}
