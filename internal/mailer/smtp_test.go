package mailer

import (
	"testing"
	"time"

	"github.com/otakudescriptor/api/internal/config"
	"github.com/otakudescriptor/api/internal/pkg/logger"
)

func TestUnconfiguredMailerReportsFailure(t *testing.T) {
	log := logger.New(logger.Config{Level: "error", Format: "json"})
	m := NewSMTPMailer(config.SMTPConfig{Timeout: time.Second}, log)

	if m.SendLoginLink("user@example.com", "some-key", "http://localhost:8080") {
		t.Error("Unconfigured mailer must report login link send as failed")
	}
	if m.SendVerificationLink("user@example.com", "some-token", "http://localhost:8080") {
		t.Error("Unconfigured mailer must report verification send as failed")
	}
	if m.SendPasswordReset("user@example.com", "some-token", "http://localhost:8080") {
		t.Error("Unconfigured mailer must report reset send as failed")
	}
}
