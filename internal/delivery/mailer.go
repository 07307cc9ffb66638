package delivery

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"html/template"
	"net/smtp"
	"strings"
	"time"

	"seatflow/internal/shared/config"
	"seatflow/pkg/logger"
)

// Attachment is a file attached to an outgoing email
type Attachment struct {
	Filename string
	MimeType string
	Data     []byte
}

// Message is an outgoing email
type Message struct {
	To          string
	Subject     string
	HTMLBody    string
	Attachments []Attachment
}

// Mailer sends emails
type Mailer interface {
	Send(ctx context.Context, msg *Message) error
}

// SMTPMailer sends email over SMTP with STARTTLS
type SMTPMailer struct {
	config config.EmailConfig
	now    func() time.Time
}

func NewSMTPMailer(cfg config.EmailConfig) *SMTPMailer {
	return &SMTPMailer{config: cfg, now: time.Now}
}

func (m *SMTPMailer) Send(ctx context.Context, msg *Message) error {
	addr := fmt.Sprintf("%s:%d", m.config.SMTPHost, m.config.SMTPPort)
	var auth smtp.Auth
	if m.config.SMTPUsername != "" {
		auth = smtp.PlainAuth("", m.config.SMTPUsername, m.config.SMTPPassword, m.config.SMTPHost)
	}

	if err := m.sendWithSTARTTLS(addr, auth, msg.To, m.buildMessage(msg)); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	logger.GetDefault().InfoWithContext(ctx, "email sent", map[string]interface{}{
		"to":      msg.To,
		"subject": msg.Subject,
	})
	return nil
}

func (m *SMTPMailer) sendWithSTARTTLS(addr string, auth smtp.Auth, to string, message []byte) error {
	client, err := smtp.Dial(addr)
	if err != nil {
		return fmt.Errorf("failed to connect to SMTP server: %w", err)
	}
	defer client.Quit()

	if ok, _ := client.Extension("STARTTLS"); ok {
		if err = client.StartTLS(&tls.Config{ServerName: m.config.SMTPHost}); err != nil {
			return fmt.Errorf("failed to start TLS: %w", err)
		}
	}

	if auth != nil {
		if err = client.Auth(auth); err != nil {
			return fmt.Errorf("failed to authenticate: %w", err)
		}
	}

	if err = client.Mail(m.config.FromEmail); err != nil {
		return fmt.Errorf("failed to set sender: %w", err)
	}
	if err = client.Rcpt(to); err != nil {
		return fmt.Errorf("failed to set recipient: %w", err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("failed to get data writer: %w", err)
	}
	if _, err = w.Write(message); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	return w.Close()
}

// buildMessage creates a multipart/mixed message with an HTML part and attachments
func (m *SMTPMailer) buildMessage(msg *Message) []byte {
	now := m.now()
	boundary := fmt.Sprintf("boundary_%d", now.UnixNano())

	var body bytes.Buffer
	fmt.Fprintf(&body, "From: %s <%s>\r\n", m.config.FromName, m.config.FromEmail)
	fmt.Fprintf(&body, "To: %s\r\n", msg.To)
	fmt.Fprintf(&body, "Subject: %s\r\n", msg.Subject)
	fmt.Fprintf(&body, "Date: %s\r\n", now.Format(time.RFC1123Z))
	body.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&body, "Content-Type: multipart/mixed; boundary=%s\r\n\r\n", boundary)

	fmt.Fprintf(&body, "--%s\r\nContent-Type: text/html; charset=UTF-8\r\n\r\n%s\r\n", boundary, msg.HTMLBody)
	for _, att := range msg.Attachments {
		fmt.Fprintf(&body, "--%s\r\n", boundary)
		fmt.Fprintf(&body, "Content-Type: %s; name=\"%s\"\r\n", att.MimeType, att.Filename)
		body.WriteString("Content-Transfer-Encoding: base64\r\n")
		fmt.Fprintf(&body, "Content-Disposition: attachment; filename=\"%s\"\r\n\r\n", att.Filename)
		body.WriteString(wrapBase64(base64.StdEncoding.EncodeToString(att.Data)))
		body.WriteString("\r\n")
	}
	fmt.Fprintf(&body, "--%s--\r\n", boundary)
	return body.Bytes()
}

// wrapBase64 splits encoded data into 76 character lines
func wrapBase64(encoded string) string {
	var b strings.Builder
	for len(encoded) > 76 {
		b.WriteString(encoded[:76])
		b.WriteString("\r\n")
		encoded = encoded[76:]
	}
	b.WriteString(encoded)
	return b.String()
}

// LogMailer logs emails instead of sending them; used when SMTP is not configured
type LogMailer struct{}

func NewLogMailer() *LogMailer {
	return &LogMailer{}
}

func (LogMailer) Send(ctx context.Context, msg *Message) error {
	logger.GetDefault().InfoWithContext(ctx, "email (smtp disabled)", map[string]interface{}{
		"to":          msg.To,
		"subject":     msg.Subject,
		"attachments": len(msg.Attachments),
	})
	return nil
}

// NewMailer picks SMTP when a host is configured
func NewMailer(cfg config.EmailConfig) Mailer {
	if cfg.SMTPHost == "" {
		return NewLogMailer()
	}
	return NewSMTPMailer(cfg)
}

var ticketEmailTemplate = template.Must(template.New("tickets").Parse(`<html>
<body style="font-family: Arial, sans-serif; color: #333;">
  <h2>Your tickets are ready</h2>
  <p>Thank you for your purchase. Order <strong>{{.Reference}}</strong> is paid.</p>
  <table style="border-collapse: collapse;">
    <tr><th align="left">Seat</th><th align="left">Category</th><th align="right">Price</th></tr>
    {{range .Tickets}}<tr><td>{{.Seat}}</td><td>{{.Category}}</td><td align="right">{{.Price.StringFixed 2}}</td></tr>
    {{end}}
  </table>
  <p>Total paid: <strong>{{.Total.StringFixed 2}} {{.Currency}}</strong></p>
  <p>The attached PDF holds one page per ticket. Show the QR code at the entrance.</p>
</body>
</html>`))

// TicketEmail builds the email carrying the tickets of req
func TicketEmail(req *Request, pdf []byte) (*Message, error) {
	var html bytes.Buffer
	if err := ticketEmailTemplate.Execute(&html, req); err != nil {
		return nil, fmt.Errorf("failed to render ticket email: %w", err)
	}
	return &Message{
		To:       req.Email,
		Subject:  fmt.Sprintf("Your tickets - order %s", req.Reference),
		HTMLBody: html.String(),
		Attachments: []Attachment{{
			Filename: fmt.Sprintf("tickets-%s.pdf", req.Reference),
			MimeType: "application/pdf",
			Data:     pdf,
		}},
	}, nil
}
