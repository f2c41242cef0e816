package mailer

import (
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"

	"github.com/otakudescriptor/api/internal/config"
	"github.com/otakudescriptor/api/internal/pkg/logger"
	"github.com/otakudescriptor/api/internal/pkg/metrics"
)

// compile-time interface check
var _ Mailer = (*SMTPMailer)(nil)

// SMTPMailer delivers mail over SMTP with STARTTLS. An unconfigured mailer
// (missing credentials) logs a warning and reports every send as failed.
type SMTPMailer struct {
	cfg config.SMTPConfig
	log *logger.Logger
}

// NewSMTPMailer creates a mailer from SMTP configuration
func NewSMTPMailer(cfg config.SMTPConfig, log *logger.Logger) *SMTPMailer {
	return &SMTPMailer{cfg: cfg, log: log}
}

// SendLoginLink mails the magic login link carrying the account's API key
func (m *SMTPMailer) SendLoginLink(email, apiKey, baseURL string) bool {
	link := fmt.Sprintf("%s/?api_key=%s", strings.TrimRight(baseURL, "/"), apiKey)
	body := loginBody(link, apiKey)
	ok := m.send(email, "Your OtakuDescriptor Access", body)
	metrics.RecordEmailSent(KindLogin, ok)
	return ok
}

// SendVerificationLink mails the link that completes a password registration
func (m *SMTPMailer) SendVerificationLink(email, verificationToken, baseURL string) bool {
	link := fmt.Sprintf("%s/api/auth/verify-email?token=%s", strings.TrimRight(baseURL, "/"), verificationToken)
	body := verificationBody(link)
	ok := m.send(email, "Confirm Your OtakuDescriptor Account", body)
	metrics.RecordEmailSent(KindVerification, ok)
	return ok
}

// SendPasswordReset mails a password reset link
func (m *SMTPMailer) SendPasswordReset(email, resetToken, baseURL string) bool {
	link := fmt.Sprintf("%s/reset-password.html?token=%s", strings.TrimRight(baseURL, "/"), resetToken)
	body := resetBody(link)
	ok := m.send(email, "Reset Your OtakuDescriptor Password", body)
	metrics.RecordEmailSent(KindReset, ok)
	return ok
}

// send performs the SMTP conversation: dial with a bounded timeout, STARTTLS,
// authenticate, deliver. Failures are logged and reported as false.
func (m *SMTPMailer) send(to, subject, htmlBody string) bool {
	if m.cfg.Username == "" || m.cfg.Password == "" {
		m.log.Warn("SMTP not configured, cannot send email")
		return false
	}

	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)

	conn, err := net.DialTimeout("tcp", addr, m.cfg.Timeout)
	if err != nil {
		m.log.WithFields(map[string]interface{}{"server": addr}).
			ErrorWithErr(err, "SMTP dial failed")
		return false
	}
	defer conn.Close()

	// A slow server must not stall the request past the configured timeout
	if err := conn.SetDeadline(time.Now().Add(m.cfg.Timeout)); err != nil {
		m.log.ErrorWithErr(err, "SMTP set deadline failed")
		return false
	}

	client, err := smtp.NewClient(conn, m.cfg.Host)
	if err != nil {
		m.log.ErrorWithErr(err, "SMTP handshake failed")
		return false
	}
	defer client.Close()

	if ok, _ := client.Extension("STARTTLS"); ok {
		if err := client.StartTLS(&tls.Config{ServerName: m.cfg.Host}); err != nil {
			m.log.ErrorWithErr(err, "SMTP STARTTLS failed")
			return false
		}
	}

	auth := smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	if err := client.Auth(auth); err != nil {
		m.log.ErrorWithErr(err, "SMTP authentication failed")
		return false
	}

	if err := client.Mail(m.cfg.From); err != nil {
		m.log.ErrorWithErr(err, "SMTP MAIL FROM failed")
		return false
	}
	if err := client.Rcpt(to); err != nil {
		m.log.ErrorWithErr(err, "SMTP RCPT TO failed")
		return false
	}

	wc, err := client.Data()
	if err != nil {
		m.log.ErrorWithErr(err, "SMTP DATA failed")
		return false
	}
	if _, err := wc.Write(message(m.cfg.From, to, subject, htmlBody)); err != nil {
		m.log.ErrorWithErr(err, "SMTP message write failed")
		return false
	}
	if err := wc.Close(); err != nil {
		m.log.ErrorWithErr(err, "SMTP message close failed")
		return false
	}

	_ = client.Quit()

	m.log.WithFields(map[string]interface{}{"to": to, "subject": subject}).
		Info("Email sent")
	return true
}

func message(from, to, subject, htmlBody string) []byte {
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + to + "\r\n")
	b.WriteString("Subject: " + subject + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(htmlBody)
	b.WriteString("\r\n")
	return []byte(b.String())
}

func loginBody(link, apiKey string) string {
	return fmt.Sprintf(`<html><body style="font-family: Arial, sans-serif; color: #333;">
<div style="max-width: 600px; margin: 0 auto; padding: 20px; border: 1px solid #eee; border-radius: 10px;">
<h2 style="color: #FF6B6B;">Welcome to OtakuDescriptor</h2>
<p>You requested to log in. Click the button below to access your account:</p>
<div style="text-align: center; margin: 30px 0;">
<a href="%s" style="background-color: #FF6B6B; color: white; padding: 12px 24px; text-decoration: none; border-radius: 5px; font-weight: bold;">Log In</a>
</div>
<p>Or copy your API Key directly:</p>
<code style="background: #f4f4f4; padding: 5px 10px; border-radius: 4px; display: block; text-align: center;">%s</code>
<p style="font-size: 0.9em; color: #888;">If you didn't request this email, you can safely ignore it.</p>
</div></body></html>`, link, apiKey)
}

func verificationBody(link string) string {
	return fmt.Sprintf(`<html><body style="font-family: Arial, sans-serif; color: #333;">
<div style="max-width: 600px; margin: 0 auto; padding: 20px; border: 1px solid #eee; border-radius: 10px;">
<h2 style="color: #FF6B6B;">Confirm Your Account</h2>
<p>Click the button below to verify your email address and activate your account:</p>
<div style="text-align: center; margin: 30px 0;">
<a href="%s" style="background-color: #FF6B6B; color: white; padding: 12px 24px; text-decoration: none; border-radius: 5px; font-weight: bold;">Verify Email</a>
</div>
<p style="font-size: 0.9em; color: #888;">This link expires in 24 hours. If you didn't create an account, you can safely ignore this email.</p>
</div></body></html>`, link)
}

func resetBody(link string) string {
	return fmt.Sprintf(`<html><body style="font-family: Arial, sans-serif; color: #333;">
<div style="max-width: 600px; margin: 0 auto; padding: 20px; border: 1px solid #eee; border-radius: 10px;">
<h2 style="color: #FF6B6B;">Reset Your Password</h2>
<p>Click the button below to choose a new password:</p>
<div style="text-align: center; margin: 30px 0;">
<a href="%s" style="background-color: #FF6B6B; color: white; padding: 12px 24px; text-decoration: none; border-radius: 5px; font-weight: bold;">Reset Password</a>
</div>
<p style="font-size: 0.9em; color: #888;">If you didn't request a password reset, you can safely ignore this email.</p>
</div></body></html>`, link)
}
