// Package push delivers reminder notifications to user devices.
package push

import (
	"context"
	"errors"
	"strings"
)

// Channel names a delivery transport.
type Channel string

const (
	ChannelExpo     Channel = "expo"
	ChannelTelegram Channel = "telegram"
)

var (
	// ErrNoToken is returned when the user has not registered a device.
	ErrNoToken = errors.New("push: no token registered")
	// ErrDeviceNotRegistered is returned when the transport rejects a stale token.
	ErrDeviceNotRegistered = errors.New("push: device not registered")
	// ErrUnsupportedChannel is returned when no sender handles a token's channel.
	ErrUnsupportedChannel = errors.New("push: unsupported channel")
)

// Message is a notification payload.
type Message struct {
	Title string
	Body  string
	Data  map[string]string
}

// Result describes an accepted delivery.
type Result struct {
	ID     string
	Status string
}

// Sender delivers one message to one token.
type Sender interface {
	Send(ctx context.Context, token string, msg Message) (Result, error)
}

// DetectChannel infers the transport of a raw token. Expo tokens look like
// "ExponentPushToken[...]"; Telegram tokens are chat ids, optionally
// prefixed with "telegram:".
func DetectChannel(token string) (Channel, string) {
	token = strings.TrimSpace(token)
	if rest, ok := strings.CutPrefix(token, "telegram:"); ok {
		return ChannelTelegram, rest
	}
	if isChatID(token) {
		return ChannelTelegram, token
	}
	return ChannelExpo, token
}

func isChatID(token string) bool {
	digits := strings.TrimPrefix(token, "-")
	if digits == "" {
		return false
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
