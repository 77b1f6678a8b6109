package email

import (
	"context"
	"fmt"
	"strings"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

const sendGridMailEndpoint = "/v3/mail/send"

// SendGridSender envia correos usando la API v3 de SendGrid.
type SendGridSender struct {
	baseURL  string
	apiKey   string
	from     string
	fromName string
}

func NewSendGridSender(baseURL, apiKey, from, fromName string) (*SendGridSender, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("sendgrid api key is required")
	}
	if strings.TrimSpace(from) == "" {
		return nil, fmt.Errorf("email from is required")
	}
	if baseURL == "" {
		baseURL = "https://api.sendgrid.com"
	}
	return &SendGridSender{
		baseURL:  strings.TrimRight(baseURL, "/"),
		apiKey:   apiKey,
		from:     from,
		fromName: fromName,
	}, nil
}

func (s *SendGridSender) SendVerification(ctx context.Context, toEmail string, verificationLink string) error {
	if strings.TrimSpace(toEmail) == "" {
		return fmt.Errorf("to email is required")
	}

	message := mail.NewSingleEmail(
		mail.NewEmail(s.fromName, s.from),
		verificationSubject,
		mail.NewEmail("", toEmail),
		verificationText(verificationLink),
		verificationHTML(verificationLink),
	)

	request := sendgrid.GetRequest(s.apiKey, sendGridMailEndpoint, s.baseURL)
	request.Method = rest.Post
	request.Body = mail.GetRequestBody(message)

	resp, err := sendgrid.MakeRequestWithContext(ctx, request)
	if err != nil {
		return fmt.Errorf("sendgrid request: %w", err)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("sendgrid status %d: %s", resp.StatusCode, strings.TrimSpace(resp.Body))
	}
	return nil
}
