package notification

import (
	"context"
	"errors"

	"civicconnect_backend/internal/config"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

const (
	ChannelEmail = "email"
	ChannelSMS   = "sms"
)

var (
	// ErrChannelDisabled is returned by senders whose provider credentials are not configured.
	ErrChannelDisabled = errors.New("delivery channel disabled")
	// ErrDeliveryFailed wraps provider errors. It never leaves the dispatcher.
	ErrDeliveryFailed = errors.New("notification delivery failed")
)

var deliveriesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "civicconnect_notification_deliveries_total",
		Help: "Notification delivery attempts by channel and outcome",
	},
	[]string{"channel", "outcome"},
)

// Sender delivers a notification over one external channel.
type Sender interface {
	Channel() string
	Send(ctx context.Context, to string, msg Message) error
}

// Channels groups the outbound senders used by the dispatcher.
type Channels struct {
	Email Sender
	SMS   Sender
}

// NewChannels builds email and SMS senders from configuration. Channels without credentials
// are replaced by disabled senders.
func NewChannels(cfg *config.Config, logger *zap.Logger) Channels {
	channels := Channels{
		Email: disabledSender{channel: ChannelEmail},
		SMS:   disabledSender{channel: ChannelSMS},
	}
	if cfg.EmailEnabled() {
		channels.Email = NewEmailSender(EmailSettings{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.EmailFrom,
			FromName: cfg.EmailFromName,
		}, logger)
	} else {
		logger.Warn("Email credentials not configured; email notifications disabled")
	}
	if cfg.SMSEnabled() {
		channels.SMS = NewSMSSender(SMSSettings{
			AccountSID: cfg.TwilioAccountSID,
			AuthToken:  cfg.TwilioAuthToken,
			From:       cfg.TwilioPhoneNumber,
		}, logger)
	} else {
		logger.Warn("Twilio credentials not configured; SMS notifications disabled")
	}
	return channels
}

type disabledSender struct {
	channel string
}

func (d disabledSender) Channel() string { return d.channel }

func (d disabledSender) Send(context.Context, string, Message) error {
	return ErrChannelDisabled
}
