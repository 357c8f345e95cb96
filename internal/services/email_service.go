package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

// EmailService defines the interface for sending account emails
type EmailService interface {
	SendVerificationEmail(ctx context.Context, email, username, verifyURL string) error
	SendWelcomeEmail(ctx context.Context, email, username string) error
	SendPasswordResetEmail(ctx context.Context, email, username, resetURL string) error
}

// AWSSESEmailService sends emails using AWS SES
type AWSSESEmailService struct {
	sesClient   *ses.Client
	fromAddress string
	logger      *slog.Logger
}

// NewAWSSESEmailService creates a new AWS SES email service
func NewAWSSESEmailService(region, fromAddress string, logger *slog.Logger) (*AWSSESEmailService, error) {
	cfg, err := awsconfig.LoadDefaultConfig(context.Background(), awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &AWSSESEmailService{
		sesClient:   ses.NewFromConfig(cfg),
		fromAddress: fromAddress,
		logger:      logger,
	}, nil
}

// verificationEmailBody builds the email-verification message HTML.
func verificationEmailBody(username, verifyURL string) string {
	return fmt.Sprintf(`
<html>
<body style="font-family: Arial, sans-serif; color: #333;">
    <h1>Verify your email address</h1>
    <p>Hi %s,</p>
    <p>Thanks for creating an account. Please confirm your email address by clicking the link below:</p>
    <p><a href="%s">Verify Email Address</a></p>
    <p>Or copy and paste this link in your browser:<br><code>%s</code></p>
    <p>This link expires in 24 hours. If you didn't sign up, you can ignore this email.</p>
</body>
</html>`, username, verifyURL, verifyURL)
}

// welcomeEmailBody builds the post-verification welcome message HTML.
func welcomeEmailBody(username string) string {
	return fmt.Sprintf(`
<html>
<body style="font-family: Arial, sans-serif; color: #333;">
    <h1>Welcome, %s!</h1>
    <p>Your email address has been verified and your account is ready to use.</p>
</body>
</html>`, username)
}

// passwordResetEmailBody builds the password-reset message HTML.
func passwordResetEmailBody(username, resetURL string) string {
	return fmt.Sprintf(`
<html>
<body style="font-family: Arial, sans-serif; color: #333;">
    <h1>Reset your password</h1>
    <p>Hi %s,</p>
    <p>We received a request to reset your password. Click the link below to choose a new one:</p>
    <p><a href="%s">Reset Password</a></p>
    <p>This link expires in 1 hour. If you didn't request a reset, you can ignore this email.</p>
</body>
</html>`, username, resetURL)
}

// SendVerificationEmail sends the email-verification link to a new user
func (s *AWSSESEmailService) SendVerificationEmail(ctx context.Context, email, username, verifyURL string) error {
	return s.send(ctx, email, "Verify your email address", verificationEmailBody(username, verifyURL))
}

// SendWelcomeEmail sends the post-verification welcome email
func (s *AWSSESEmailService) SendWelcomeEmail(ctx context.Context, email, username string) error {
	return s.send(ctx, email, "Welcome!", welcomeEmailBody(username))
}

// SendPasswordResetEmail sends a password-reset link
func (s *AWSSESEmailService) SendPasswordResetEmail(ctx context.Context, email, username, resetURL string) error {
	return s.send(ctx, email, "Reset your password", passwordResetEmailBody(username, resetURL))
}

func (s *AWSSESEmailService) send(ctx context.Context, to, subject, htmlBody string) error {
	input := &ses.SendEmailInput{
		Source: aws.String(s.fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{to},
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
			},
		},
	}

	if _, err := s.sesClient.SendEmail(ctx, input); err != nil {
		s.logger.Error("failed to send email",
			slog.String("subject", subject),
			slog.Any("error", err))
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.Info("email sent", slog.String("subject", subject))
	return nil
}
