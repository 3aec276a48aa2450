package notifications

import (
	"context"
	"fmt"
	"strings"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/shreesanatan/pujapath-backend/pkg/config"
	"github.com/shreesanatan/pujapath-backend/pkg/db/models"
	"github.com/shreesanatan/pujapath-backend/pkg/logger"
)

// messageCreator is the Twilio API slice we call, extracted for tests.
type messageCreator interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

// SMSSender delivers transactional texts through Twilio.
type SMSSender struct {
	api  messageCreator
	from string
	logg *logger.Logger
}

// NewSMSSender initializes the Twilio REST client from config.
func NewSMSSender(cfg config.TwilioConfig, logg *logger.Logger) (*SMSSender, error) {
	if strings.TrimSpace(cfg.AccountSID) == "" || strings.TrimSpace(cfg.AuthToken) == "" {
		return nil, fmt.Errorf("twilio credentials are required")
	}
	if strings.TrimSpace(cfg.FromNumber) == "" {
		return nil, fmt.Errorf("twilio sender number is required")
	}

	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})

	return &SMSSender{api: client.Api, from: cfg.FromNumber, logg: logg}, nil
}

// SendVerificationCode texts a login code to the phone.
func (s *SMSSender) SendVerificationCode(ctx context.Context, phone, code string) error {
	body := fmt.Sprintf("%s is your PujaPath verification code. It expires in 5 minutes. Do not share it.", code)
	return s.send(ctx, phone, body)
}

// SendOrderConfirmation texts the order summary to the customer.
func (s *SMSSender) SendOrderConfirmation(ctx context.Context, phone string, order *models.Order) error {
	body := fmt.Sprintf(
		"Namaste %s! Your PujaPath order %s for Rs %s is %s. We will share tracking details soon.",
		order.CustomerName,
		shortOrderRef(order),
		rupeeAmount(order.TotalPaise),
		statusPhrase(order),
	)
	return s.send(ctx, phone, body)
}

func (s *SMSSender) send(ctx context.Context, phone, body string) error {
	params := &twilioApi.CreateMessageParams{}
	params.SetFrom(s.from)
	params.SetTo(phone)
	params.SetBody(body)

	resp, err := s.api.CreateMessage(params)
	if err != nil {
		return fmt.Errorf("twilio create message: %w", err)
	}
	if s.logg != nil && resp.Sid != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"message_sid": *resp.Sid,
			"phone":       logger.MaskPhone(phone),
		})
		s.logg.Info(logCtx, "sms dispatched")
	}
	return nil
}

func shortOrderRef(order *models.Order) string {
	id := order.ID.String()
	if len(id) > 8 {
		id = id[:8]
	}
	return "#" + strings.ToUpper(id)
}
