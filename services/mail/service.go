package mail

import (
	"fmt"
	"time"

	"github.com/maplecart/maplecart/config"
	"github.com/maplecart/maplecart/services/logging"
	"github.com/wneessen/go-mail"
	"go.uber.org/zap"
)

// Sender is the capability the auth flows consume. Delivery failures
// are non-fatal to the calling flow; callers log and move on.
type Sender interface {
	SendPasswordReset(to, resetLink string) error
}

type Service struct {
	config *config.MailConfig
	app    *config.AppConfig
	client *mail.Client
	logger *logging.Service
}

func NewService(cfg *config.MailConfig, app *config.AppConfig, logger *logging.Service) (*Service, error) {
	if logger != nil {
		logger.Info("initializing mail service",
			zap.String("host", cfg.Host),
			zap.Int("port", cfg.Port),
			zap.String("encryption", cfg.Encryption),
			zap.String("from_address", cfg.FromAddress))
	}

	if cfg.FromAddress == "" {
		return nil, fmt.Errorf("MC_MAIL_FROM_ADDRESS is required")
	}

	clientOpts := []mail.Option{
		mail.WithPort(cfg.Port),
	}

	if cfg.Username != "" {
		clientOpts = append(clientOpts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username))
	}
	if cfg.Password != "" {
		clientOpts = append(clientOpts, mail.WithPassword(cfg.Password))
	}

	switch cfg.Encryption {
	case "tls", "starttls":
		clientOpts = append(clientOpts, mail.WithTLSPortPolicy(mail.TLSMandatory))
	case "ssl":
		clientOpts = append(clientOpts, mail.WithSSL())
	case "none":
		clientOpts = append(clientOpts, mail.WithTLSPortPolicy(mail.NoTLS))
	default:
		clientOpts = append(clientOpts, mail.WithTLSPortPolicy(mail.TLSMandatory))
	}

	client, err := mail.NewClient(cfg.Host, clientOpts...)
	if err != nil {
		if logger != nil {
			logger.Error("failed to create mail client",
				zap.Error(err),
				zap.String("host", cfg.Host),
				zap.Int("port", cfg.Port))
		}
		return nil, fmt.Errorf("failed to create mail client: %w", err)
	}

	return &Service{
		config: cfg,
		app:    app,
		client: client,
		logger: logger,
	}, nil
}

func (s *Service) SendPasswordReset(to, resetLink string) error {
	message := mail.NewMsg()

	fromAddr := s.config.FromAddress
	if s.config.FromName != "" {
		fromAddr = fmt.Sprintf("%s <%s>", s.config.FromName, s.config.FromAddress)
	}

	if err := message.From(fromAddr); err != nil {
		return fmt.Errorf("failed to set FROM address: %w", err)
	}
	if err := message.To(to); err != nil {
		return fmt.Errorf("failed to set TO address: %w", err)
	}

	message.Subject(fmt.Sprintf("Reset your %s password", s.app.Name))
	message.SetBodyString(mail.TypeTextPlain, fmt.Sprintf(
		"A password reset was requested for your %s account.\n\n"+
			"Open the link below within one hour to choose a new password. "+
			"If you did not request this, you can ignore this email.\n\n%s\n",
		s.app.Name, resetLink))
	message.AddAlternativeString(mail.TypeTextHTML, fmt.Sprintf(
		"<p>A password reset was requested for your %s account.</p>"+
			"<p>Open the link below within one hour to choose a new password. "+
			"If you did not request this, you can ignore this email.</p>"+
			"<p><a href=%q>Reset password</a></p>",
		s.app.Name, resetLink))

	startTime := time.Now()
	err := s.client.DialAndSend(message)
	duration := time.Since(startTime)

	if err != nil {
		if s.logger != nil {
			s.logger.Error("failed to send password reset email",
				zap.Error(err),
				zap.Duration("attempt_duration", duration))
		}
		return err
	}

	if s.logger != nil {
		s.logger.Info("password reset email sent",
			zap.Duration("send_duration", duration))
	}
	return nil
}
