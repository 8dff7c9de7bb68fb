package mail

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mailgun/mailgun-go/v4"
)

const (
	newPasswordSubject  = "Support Portal - New Password"
	newPasswordTemplate = "new-password"
)

// ErrDelivery wraps every failure to hand a message to the mail provider.
var ErrDelivery = errors.New("email delivery failed")

type Email struct {
	Subject      string
	Body         string
	From         string
	To           []string
	Template     string
	TemplateVars map[string]any
}

type Mailgun struct {
	domain  string
	apiKey  string
	apiBase string
	timeout time.Duration
}

func NewMailer(domain, apiKey, apiBase string) *Mailgun {
	return &Mailgun{
		domain:  domain,
		apiKey:  apiKey,
		apiBase: apiBase,
		timeout: 10 * time.Second,
	}
}

func (m *Mailgun) client() *mailgun.MailgunImpl {
	mg := mailgun.NewMailgun(m.domain, m.apiKey)
	if m.apiBase != "" {
		mg.SetAPIBase(m.apiBase)
	}
	return mg
}

func (m *Mailgun) send(ctx context.Context, message *mailgun.Message) error {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	if _, _, err := m.client().Send(ctx, message); err != nil {
		return fmt.Errorf("%w: %w", ErrDelivery, err)
	}
	return nil
}

func (m *Mailgun) SendTemplatedMail(ctx context.Context, e *Email) error {
	message := m.client().NewMessage(e.From, e.Subject, e.Body, e.To...)
	message.SetTemplate(e.Template)

	for k, v := range e.TemplateVars {
		if err := message.AddTemplateVariable(k, v); err != nil {
			return fmt.Errorf("%w: template variable %s: %w", ErrDelivery, k, err)
		}
	}

	return m.send(ctx, message)
}

// SendNewPasswordEmail delivers a freshly generated password. The plain text
// body is the fallback when the template is missing on the mailgun side.
func (m *Mailgun) SendNewPasswordEmail(ctx context.Context, firstName, password, email string) error {
	return m.SendTemplatedMail(ctx, NewPasswordEmail(m.domain, firstName, password, email))
}

func NewPasswordEmail(domain, firstName, password, email string) *Email {
	return &Email{
		Subject:  newPasswordSubject,
		From:     fmt.Sprintf("Support Portal <no-reply@%s>", domain),
		To:       []string{email},
		Body:     fmt.Sprintf("Hello %s,\n\nYour new account password is: %s\n\nThe Support Team", firstName, password),
		Template: newPasswordTemplate,
		TemplateVars: map[string]any{
			"firstName": firstName,
			"password":  password,
		},
	}
}
