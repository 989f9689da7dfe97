package outreach

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"text/template"

	"gopkg.in/gomail.v2"

	"leadhunt-engine/internal/domain"
)

type Message struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

type Sender interface {
	Send(ctx context.Context, m Message) error
}

// Templates render the subject and body from a Lead.
type Templates struct {
	subject *template.Template
	body    *template.Template
}

func ParseTemplates(subject, body string) (*Templates, error) {
	s, err := template.New("subject").Option("missingkey=error").Parse(subject)
	if err != nil {
		return nil, fmt.Errorf("subject template: %w", err)
	}
	b, err := template.New("body").Option("missingkey=error").Parse(body)
	if err != nil {
		return nil, fmt.Errorf("body template: %w", err)
	}
	return &Templates{subject: s, body: b}, nil
}

func (t *Templates) Render(l domain.Lead) (Message, error) {
	var subj, body bytes.Buffer
	if err := t.subject.Execute(&subj, l); err != nil {
		return Message{}, fmt.Errorf("render subject: %w", err)
	}
	if err := t.body.Execute(&body, l); err != nil {
		return Message{}, fmt.Errorf("render body: %w", err)
	}
	return Message{
		To:      l.Email,
		Subject: strings.Join(strings.Fields(subj.String()), " "),
		Body:    body.String(),
	}, nil
}

// SMTPSender delivers plain-text mail through one SMTP relay.
type SMTPSender struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
}

func (s *SMTPSender) Send(ctx context.Context, m Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := gomail.NewMessage()
	if s.FromName != "" {
		msg.SetAddressHeader("From", s.From, s.FromName)
	} else {
		msg.SetHeader("From", s.From)
	}
	msg.SetHeader("To", m.To)
	msg.SetHeader("Subject", m.Subject)
	msg.SetBody("text/plain", m.Body)

	d := gomail.NewDialer(s.Host, s.Port, s.Username, s.Password)
	if err := d.DialAndSend(msg); err != nil {
		return domain.Collab("smtp", "send", err)
	}
	return nil
}
