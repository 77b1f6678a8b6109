package email

import (
	"context"
	"errors"
	"fmt"
)

// Sender define la interfaz para envio de correos de verificacion.
type Sender interface {
	SendVerification(ctx context.Context, toEmail string, verificationLink string) error
}

const verificationSubject = "Please verify your account"

type disabledSender struct {
	reason string
}

func NewDisabledSender(reason string) Sender {
	return &disabledSender{reason: reason}
}

func (s *disabledSender) SendVerification(_ context.Context, _ string, _ string) error {
	if s.reason == "" {
		return errors.New("email sender disabled")
	}
	return errors.New(s.reason)
}

func verificationHTML(link string) string {
	return fmt.Sprintf(`<a href="%s">Click this link to verify your account</a>`, link)
}

func verificationText(link string) string {
	return fmt.Sprintf("Open this link to verify your account:\n%s\n", link)
}
