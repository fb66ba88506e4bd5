// Package model defines the core data structures shared by the ingestion pipeline.
package model

import "time"

// Channel identifies which inbound source delivered a message.
type Channel string

// Channel constants.
const (
	ChannelSMS              Channel = "sms"
	ChannelPushNotification Channel = "push"
)

// RawMessage is an inbound bank SMS or payment-app notification.
// For push notifications Sender carries the notification title.
type RawMessage struct {
	ReceivedAt time.Time `json:"received_at"`
	Sender     string    `json:"sender"`
	Body       string    `json:"body"`
	Channel    Channel   `json:"channel"`
	AppPackage string    `json:"app_package,omitempty"`
}

// Valid reports whether the channel is one the pipeline understands.
func (c Channel) Valid() bool {
	return c == ChannelSMS || c == ChannelPushNotification
}
