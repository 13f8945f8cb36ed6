package services

import (
	"bytes"
	"context"
	"fmt"
	htmltemplate "html/template"
	"log/slog"
	"math"
	texttemplate "text/template"
	"time"

	"github.com/BradenHooton/gatekeeper/pkg/logger"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

// EmailService delivers login codes. Delivery is attempted once; there is no retry.
type EmailService interface {
	SendLoginCode(ctx context.Context, msg LoginCodeEmail) error
}

// LoginCodeEmail is everything needed to render a login code message
type LoginCodeEmail struct {
	Recipient   string
	DisplayName string
	Code        string
	ExpiresIn   time.Duration
}

// ExpiryMinutes rounds the code lifetime up to whole minutes
func (m LoginCodeEmail) ExpiryMinutes() int {
	return int(math.Ceil(m.ExpiresIn.Minutes()))
}

// SESClient is the subset of the SES API used for dispatch
type SESClient interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// AWSSESEmailService sends emails using AWS SES
type AWSSESEmailService struct {
	sesClient   SESClient
	fromAddress string
	brandName   string
	logger      *slog.Logger
}

// NewAWSSESEmailService creates a new AWS SES email service using the default credential chain
func NewAWSSESEmailService(ctx context.Context, region, fromAddress, brandName string, logger *slog.Logger) (*AWSSESEmailService, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return NewAWSSESEmailServiceWithClient(ses.NewFromConfig(cfg), fromAddress, brandName, logger), nil
}

// NewAWSSESEmailServiceWithClient wires an existing SES client
func NewAWSSESEmailServiceWithClient(client SESClient, fromAddress, brandName string, logger *slog.Logger) *AWSSESEmailService {
	return &AWSSESEmailService{
		sesClient:   client,
		fromAddress: fromAddress,
		brandName:   brandName,
		logger:      logger,
	}
}

var loginCodeHTML = htmltemplate.Must(htmltemplate.New("login_code_html").Parse(`<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <style>
        body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
        .container { max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { background-color: #f8f9fa; padding: 20px; text-align: center; border-radius: 4px; }
        .code { font-size: 32px; letter-spacing: 8px; font-weight: bold; text-align: center; margin: 24px 0; }
        .footer { color: #666; font-size: 12px; margin-top: 20px; padding-top: 20px; border-top: 1px solid #eee; }
    </style>
</head>
<body>
    <div class="container">
        <div class="header">
            <h1>{{.Brand}} sign-in code</h1>
        </div>
        <p>Hello {{.DisplayName}},</p>
        <p>Use this code to finish signing in:</p>
        <div class="code">{{.Code}}</div>
        <p>The code expires in {{.Minutes}} minutes and can be used once.</p>
        <p>If you did not try to sign in, you can ignore this email.</p>
        <div class="footer">
            <p>This is an automated message. Please do not reply to this email.</p>
        </div>
    </div>
</body>
</html>
`))

var loginCodeText = texttemplate.Must(texttemplate.New("login_code_text").Parse(`{{.Brand}} sign-in code

Hello {{.DisplayName}},

Use this code to finish signing in: {{.Code}}

The code expires in {{.Minutes}} minutes and can be used once.

If you did not try to sign in, you can ignore this email.
`))

type loginCodeView struct {
	Brand       string
	DisplayName string
	Code        string
	Minutes     int
}

// RenderLoginCode renders the subject, HTML body and text body for msg
func RenderLoginCode(brand string, msg LoginCodeEmail) (subject, htmlBody, textBody string, err error) {
	view := loginCodeView{
		Brand:       brand,
		DisplayName: msg.DisplayName,
		Code:        msg.Code,
		Minutes:     msg.ExpiryMinutes(),
	}

	var htmlBuf, textBuf bytes.Buffer
	if err := loginCodeHTML.Execute(&htmlBuf, view); err != nil {
		return "", "", "", fmt.Errorf("failed to render html body: %w", err)
	}
	if err := loginCodeText.Execute(&textBuf, view); err != nil {
		return "", "", "", fmt.Errorf("failed to render text body: %w", err)
	}

	return fmt.Sprintf("Your %s sign-in code", brand), htmlBuf.String(), textBuf.String(), nil
}

// SendLoginCode sends the code via SES
func (s *AWSSESEmailService) SendLoginCode(ctx context.Context, msg LoginCodeEmail) error {
	subject, htmlBody, textBody, err := RenderLoginCode(s.brandName, msg)
	if err != nil {
		return err
	}

	input := &ses.SendEmailInput{
		Source: aws.String(s.fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{msg.Recipient},
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data:    aws.String(subject),
				Charset: aws.String("UTF-8"),
			},
			Body: &types.Body{
				Html: &types.Content{
					Data:    aws.String(htmlBody),
					Charset: aws.String("UTF-8"),
				},
				Text: &types.Content{
					Data:    aws.String(textBody),
					Charset: aws.String("UTF-8"),
				},
			},
		},
	}

	result, err := s.sesClient.SendEmail(ctx, input)
	if err != nil {
		s.logger.Error("failed to send login code via SES",
			slog.String("email", logger.SanitizedEmail(msg.Recipient)),
			slog.Any("error", err))
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.Info("login code email sent",
		slog.String("email", logger.SanitizedEmail(msg.Recipient)),
		slog.String("message_id", aws.ToString(result.MessageId)))

	return nil
}

// LogEmailService writes the code to the log instead of sending it. Development only.
type LogEmailService struct {
	logger *slog.Logger
	env    string
}

func NewLogEmailService(logger *slog.Logger, env string) *LogEmailService {
	return &LogEmailService{logger: logger, env: env}
}

func (s *LogEmailService) SendLoginCode(ctx context.Context, msg LoginCodeEmail) error {
	s.logger.LogAttrs(ctx, slog.LevelInfo, "login code (log email provider)",
		slog.String("email", logger.SanitizedEmail(msg.Recipient)),
		slog.String("display_name", msg.DisplayName),
		logger.RedactedAttr("code", msg.Code, s.env),
		slog.Int("expires_in_minutes", msg.ExpiryMinutes()),
	)
	return nil
}
