package notification

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"
)

// FCMSender is the part of the Firebase messaging client used here.
type FCMSender interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// FCM sends notifications through Firebase Cloud Messaging.
type FCM struct {
	client FCMSender
}

var _ Notifier = (*FCM)(nil)

// NewFCM initializes Firebase from a service account file, or from application
// default credentials when credentialsFile is empty.
func NewFCM(ctx context.Context, credentialsFile string) (*FCM, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	app, err := firebase.NewApp(ctx, nil, opts...)
	if err != nil {
		return nil, fmt.Errorf("initialize firebase app: %w", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("get messaging client: %w", err)
	}
	return &FCM{client: client}, nil
}

// NewFCMWithSender wraps a prepared sender.
func NewFCMWithSender(client FCMSender) *FCM {
	return &FCM{client: client}
}

func (f *FCM) Send(ctx context.Context, msg Message) error {
	_, err := f.client.Send(ctx, &messaging.Message{
		Token: msg.Token,
		Notification: &messaging.Notification{
			Title: msg.Title,
			Body:  msg.Body,
		},
		Data: msg.Data,
		Android: &messaging.AndroidConfig{
			Priority: "high",
		},
	})
	if err != nil {
		return fmt.Errorf("send fcm message: %w", err)
	}
	return nil
}
