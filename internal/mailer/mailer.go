// mailer — граница уведомлений: отправка письма с подтверждением e-mail.
// Сервис лишь собирает payload и ссылку подтверждения; сбой доставки
// возвращается как ошибка и никогда не глотается молча.
package mailer

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
	"net/url"
	"text/template"

	"github.com/mefissto/appshell/auth-service/internal/config"
	logctx "github.com/mefissto/appshell/auth-service/internal/pkg/log"
	"github.com/mefissto/appshell/auth-service/internal/pkg/redact"
)

// Mailer отправляет шаблонизированные письма подтверждения.
type Mailer interface {
	SendVerificationEmail(ctx context.Context, to, name, link string) error
}

// VerificationLink собирает URL подтверждения: base URL + e-mail и сырой
// токен в query-параметрах. Токен в ссылке — единственное место, где он
// существует в открытом виде за пределами письма.
func VerificationLink(baseURL, email, rawToken string) string {
	q := url.Values{}
	q.Set("email", email)
	q.Set("token", rawToken)
	return baseURL + "?" + q.Encode()
}

const verificationSubject = "Confirm your email"

// Тело письма нарочно простое: plaintext со ссылкой.
var verificationTmpl = template.Must(template.New("verification").Parse(
	`Hi {{.Name}},

Please confirm your email address by following the link below:

{{.Link}}

If you did not create an account, ignore this message.
`))

// SMTPMailer отправляет письма через SMTP (PLAIN auth, STARTTLS на стороне
// net/smtp при поддержке сервером).
type SMTPMailer struct {
	cfg config.SMTPConfig
}

// NewSMTP создаёт SMTP-отправитель.
func NewSMTP(cfg config.SMTPConfig) *SMTPMailer {
	return &SMTPMailer{cfg: cfg}
}

func (m *SMTPMailer) SendVerificationEmail(ctx context.Context, to, name, link string) error {
	const op = "mailer.SendVerificationEmail"

	body, err := renderVerification(name, link)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	msg := bytes.Buffer{}
	fmt.Fprintf(&msg, "From: %s\r\n", m.cfg.From)
	fmt.Fprintf(&msg, "To: %s\r\n", to)
	fmt.Fprintf(&msg, "Subject: %s\r\n", verificationSubject)
	msg.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n")
	msg.WriteString(body)

	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}

	if err := smtp.SendMail(m.cfg.Addr(), auth, m.cfg.From, []string{to}, msg.Bytes()); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	logctx.From(ctx).Info("verification_email_sent",
		slog.String("to", redact.Email(to)),
	)

	return nil
}

// LogMailer — заглушка для local-окружения: пишет факт «отправки» в лог
// и всегда успешна. Сырой токен из ссылки в лог не попадает.
type LogMailer struct{}

func (LogMailer) SendVerificationEmail(ctx context.Context, to, _ string, _ string) error {
	logctx.From(ctx).Info("verification_email_skipped",
		slog.String("to", redact.Email(to)),
	)

	return nil
}

func renderVerification(name, link string) (string, error) {
	var buf bytes.Buffer
	err := verificationTmpl.Execute(&buf, struct {
		Name string
		Link string
	}{Name: name, Link: link})
	if err != nil {
		return "", err
	}

	return buf.String(), nil
}
