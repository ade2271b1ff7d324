// README: FCM notifier backed by the Firebase Admin SDK.
package notify

import (
	"context"
	"fmt"

	"firebase.google.com/go/v4/messaging"
	"github.com/rs/zerolog"
)

type fcmSender interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

type FCM struct {
	client fcmSender
	log    zerolog.Logger
}

func NewFCM(client *messaging.Client, log zerolog.Logger) *FCM {
	return &FCM{client: client, log: log}
}

// Send delivers a high-priority data+notification message to one device.
func (f *FCM) Send(ctx context.Context, m Message) error {
	if m.Token == "" {
		return fmt.Errorf("%w for order %s", ErrEmptyToken, m.Data.OrderID)
	}

	msg := &messaging.Message{
		Token: m.Token,
		Data:  m.Data.Fields(),
		Notification: &messaging.Notification{
			Title: m.Title,
			Body:  m.Body,
		},
		Android: &messaging.AndroidConfig{
			Priority: "high",
		},
		APNS: &messaging.APNSConfig{
			Headers: map[string]string{"apns-priority": "10"},
		},
	}

	messageID, err := f.client.Send(ctx, msg)
	if err != nil {
		return fmt.Errorf("sending FCM for order %s: %w", m.Data.OrderID, err)
	}

	f.log.Debug().
		Str("order_id", string(m.Data.OrderID)).
		Str("driver_id", string(m.Data.DriverID)).
		Str("message_id", messageID).
		Msg("fcm offer sent")
	return nil
}
