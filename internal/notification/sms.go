package notification

import (
	"context"
	"fmt"

	"github.com/twilio/twilio-go"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"
	"go.uber.org/zap"
)

// SMSSettings holds Twilio credentials.
type SMSSettings struct {
	AccountSID string
	AuthToken  string
	From       string
}

// messageCreator is the part of the Twilio REST API the sender needs.
type messageCreator interface {
	CreateMessage(params *openapi.CreateMessageParams) (*openapi.ApiV2010Message, error)
}

// SMSSender delivers notifications as text messages through Twilio.
type SMSSender struct {
	api    messageCreator
	from   string
	logger *zap.Logger
}

// NewSMSSender creates a Twilio-backed sender.
func NewSMSSender(settings SMSSettings, logger *zap.Logger) *SMSSender {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: settings.AccountSID,
		Password: settings.AuthToken,
	})
	return &SMSSender{api: client.Api, from: settings.From, logger: logger.Named("SMSSender")}
}

func (s *SMSSender) Channel() string { return ChannelSMS }

// SMSBody is the text sent for a notification.
func SMSBody(msg Message) string {
	return fmt.Sprintf("%s: %s", msg.Title, msg.Body)
}

// Send delivers msg to the phone number in to.
func (s *SMSSender) Send(ctx context.Context, to string, msg Message) error {
	params := &openapi.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(s.from)
	params.SetBody(SMSBody(msg))

	resp, err := s.api.CreateMessage(params)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}

	sid := ""
	if resp != nil && resp.Sid != nil {
		sid = *resp.Sid
	}
	s.logger.Debug("SMS sent", zap.String("to", to), zap.String("sid", sid))
	return nil
}
