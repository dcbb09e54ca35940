package email

import (
	"fmt"
	"net/smtp"

	"github.com/jordan-wright/email"
	"github.com/sirupsen/logrus"

	"github.com/Dan9191/card-service/internal/models"
	"github.com/Dan9191/card-service/internal/utils"
)

// SMTPConfig holds the outgoing mail settings
type SMTPConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
}

// Sender handles sending emails via SMTP
type Sender struct {
	cfg    SMTPConfig
	logger *logrus.Logger
	send   func(e *email.Email, addr string, auth smtp.Auth) error
}

// NewSender creates a new email sender
func NewSender(cfg SMTPConfig, logger *logrus.Logger) *Sender {
	return &Sender{
		cfg:    cfg,
		logger: logger,
		send: func(e *email.Email, addr string, auth smtp.Auth) error {
			return e.Send(addr, auth)
		},
	}
}

// CardExpired tells the card owner that the card moved to EXPIRED
func (s *Sender) CardExpired(card models.Card) error {
	if card.OwnerEmail == "" {
		return fmt.Errorf("card %s has no owner email", card.ID)
	}

	e := email.NewEmail()
	e.From = s.cfg.From
	e.To = []string{card.OwnerEmail}
	e.Subject = "Your card has expired"
	e.Text = []byte(fmt.Sprintf(
		"Dear customer,\n\n"+
			"Your card %s expired on %s and can no longer receive or send transfers.\n"+
			"Please contact the bank to have it reactivated.\n"+
			"\nBest regards,\nBank Service",
		utils.MaskLast4(card.Last4), card.Expiry.Format("2006-01-02"),
	))

	addr := fmt.Sprintf("%s:%s", s.cfg.Host, s.cfg.Port)
	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}
	if err := s.send(e, addr, auth); err != nil {
		s.logger.Errorf("Failed to send expiry notice to %s: %v", card.OwnerEmail, err)
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.Infof("Email sent to %s: %s", card.OwnerEmail, e.Subject)
	return nil
}
