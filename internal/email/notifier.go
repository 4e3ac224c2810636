package email

import (
	"bytes"
	"context"
	"fmt"
	"html/template"

	"gopkg.in/gomail.v2"
)

// Notifier sends outbound mail to patients. Callers treat delivery as
// best-effort; a failed send is logged, never propagated to the client.
type Notifier interface {
	SendTemplated(ctx context.Context, to, subject, tmpl string, data any) error
}

type gomailNotifier struct {
	dialer *gomail.Dialer
	from   string
}

func NewNotifier(host string, port int, username, password, from string) Notifier {
	return &gomailNotifier{
		dialer: gomail.NewDialer(host, port, username, password),
		from:   from,
	}
}

func (n *gomailNotifier) SendTemplated(ctx context.Context, to, subject, tmpl string, data any) error {
	t, err := template.New("email").Parse(tmpl)
	if err != nil {
		return fmt.Errorf("failed to parse email template: %w", err)
	}
	var body bytes.Buffer
	if err := t.Execute(&body, data); err != nil {
		return fmt.Errorf("failed to render email template: %w", err)
	}

	m := gomail.NewMessage()
	m.SetHeader("From", n.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", body.String())

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := n.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

// ProcessingNoticeTemplate is sent when staff updates a prescription with
// notification requested.
const ProcessingNoticeTemplate = `
<p>Bonjour {{.FirstName}},</p>
<p>Votre ordonnance n°{{.SequenceNumber}} est en cours de traitement par
notre équipe. Nous vous contacterons dès qu'elle sera prête.</p>
<p>Votre pharmacie</p>
`
