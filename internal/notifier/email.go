package notifier

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net"
	"net/mail"
	"net/smtp"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"github.com/good-yellow-bee/vitalguard/internal/models"
)

const (
	smtpsPort       = 465
	smtpDialTimeout = 15 * time.Second
)

// EmailConfig holds SMTP settings. Recipients are resolved per alert by
// the dispatcher.
type EmailConfig struct {
	Host     string
	Port     int // 465 uses implicit TLS, anything else STARTTLS when offered
	Username string
	Password string
	From     string // "Name <addr>" or a bare address
}

// Validate checks that the config can be used to send mail.
func (c *EmailConfig) Validate() error {
	switch {
	case c.Host == "":
		return errors.New("smtp host is required")
	case c.Port <= 0:
		return errors.New("smtp port is required")
	case c.From == "":
		return errors.New("from address is required")
	}
	if _, err := mail.ParseAddress(c.From); err != nil {
		return fmt.Errorf("invalid from address %q: %w", c.From, err)
	}
	return nil
}

// EmailNotifier mails a multipart (plain + HTML) alert to caregivers.
type EmailNotifier struct {
	config    EmailConfig
	from      *mail.Address
	templates *Templates
}

// NewEmailNotifier validates cfg and loads the alert templates.
func NewEmailNotifier(cfg EmailConfig) (*EmailNotifier, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid email config: %w", err)
	}
	from, _ := mail.ParseAddress(cfg.From)

	templates, err := LoadTemplates()
	if err != nil {
		return nil, fmt.Errorf("load templates: %w", err)
	}
	return &EmailNotifier{config: cfg, from: from, templates: templates}, nil
}

func (e *EmailNotifier) Channel() string {
	return models.ChannelEmail
}

// Send delivers one message addressed to all recipients.
func (e *EmailNotifier) Send(ctx context.Context, recipients []string, alert *models.Alert) error {
	if len(recipients) == 0 {
		return errors.New("no recipients")
	}

	data := AlertToTemplateData(alert)
	htmlBody, err := e.templates.RenderHTML(data)
	if err != nil {
		return fmt.Errorf("render html: %w", err)
	}
	plainBody, err := e.templates.RenderPlain(data)
	if err != nil {
		return fmt.Errorf("render plain: %w", err)
	}

	msg, err := e.compose(alert, mailSubject(alert, data.DeviceName), recipients, plainBody, htmlBody)
	if err != nil {
		return fmt.Errorf("compose message: %w", err)
	}
	return e.deliver(ctx, recipients, msg)
}

func (e *EmailNotifier) Close() error {
	return nil
}

// mailSubject is the subject line for an alert.
func mailSubject(alert *models.Alert, deviceName string) string {
	return fmt.Sprintf("[%s] VitalGuard: %s - %s", strings.ToUpper(string(alert.Severity)), alert.Title, deviceName)
}

// compose builds a multipart/alternative message. Critical and emergency
// alerts carry high-priority headers.
func (e *EmailNotifier) compose(alert *models.Alert, subject string, recipients []string, plain, html string) ([]byte, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	parts := []struct{ contentType, content string }{
		{"text/plain; charset=UTF-8", plain},
		{"text/html; charset=UTF-8", html},
	}
	for _, p := range parts {
		w, err := mw.CreatePart(textproto.MIMEHeader{
			"Content-Type":              {p.contentType},
			"Content-Transfer-Encoding": {"quoted-printable"},
		})
		if err != nil {
			return nil, err
		}
		qp := quotedprintable.NewWriter(w)
		if _, err := qp.Write([]byte(p.content)); err != nil {
			return nil, err
		}
		if err := qp.Close(); err != nil {
			return nil, err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	var msg bytes.Buffer
	header := func(key, value string) {
		fmt.Fprintf(&msg, "%s: %s\r\n", key, value)
	}
	header("From", e.from.String())
	header("To", strings.Join(recipients, ", "))
	header("Subject", mime.QEncoding.Encode("utf-8", subject))
	header("Date", time.Now().Format(time.RFC1123Z))
	header("MIME-Version", "1.0")
	header("X-VitalGuard-Alert", alert.ID)
	if alert.Severity == models.SeverityCritical || alert.Severity == models.SeverityEmergency {
		header("X-Priority", "1")
		header("Importance", "high")
	}
	header("Content-Type", "multipart/alternative; boundary="+mw.Boundary())
	msg.WriteString("\r\n")
	msg.Write(body.Bytes())
	return msg.Bytes(), nil
}

func (e *EmailNotifier) deliver(ctx context.Context, recipients []string, msg []byte) error {
	client, err := e.dial(ctx)
	if err != nil {
		return fmt.Errorf("connect smtp %s:%d: %w", e.config.Host, e.config.Port, err)
	}
	defer client.Close()

	if e.config.Username != "" && e.config.Password != "" {
		auth := smtp.PlainAuth("", e.config.Username, e.config.Password, e.config.Host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}
	if err := client.Mail(e.from.Address); err != nil {
		return fmt.Errorf("smtp MAIL FROM: %w", err)
	}
	for _, rcpt := range recipients {
		if err := client.Rcpt(rcpt); err != nil {
			return fmt.Errorf("smtp RCPT TO %s: %w", rcpt, err)
		}
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp DATA: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finish message: %w", err)
	}
	return client.Quit()
}

// dial opens the SMTP session, upgrading with STARTTLS on submission ports.
// The context deadline bounds the whole conversation.
func (e *EmailNotifier) dial(ctx context.Context) (*smtp.Client, error) {
	addr := net.JoinHostPort(e.config.Host, strconv.Itoa(e.config.Port))
	tlsConfig := &tls.Config{ServerName: e.config.Host, MinVersion: tls.VersionTLS12}
	dialer := &net.Dialer{Timeout: smtpDialTimeout}

	var (
		conn net.Conn
		err  error
	)
	if e.config.Port == smtpsPort {
		conn, err = (&tls.Dialer{NetDialer: dialer, Config: tlsConfig}).DialContext(ctx, "tcp", addr)
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return nil, err
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(conn, e.config.Host)
	if err != nil {
		conn.Close()
		return nil, err
	}
	if e.config.Port != smtpsPort {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(tlsConfig); err != nil {
				client.Close()
				return nil, fmt.Errorf("starttls: %w", err)
			}
		}
	}
	return client, nil
}
