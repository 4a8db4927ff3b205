package backend

import "go.uber.org/zap"

// Mailer delivers out-of-band secrets. Production wiring points this at a
// real mail provider; tests and the demo use [ChannelMailer] or
// [LogMailer].
type Mailer interface {
	SendVerification(email, token string) error
	SendOTP(email, code string) error
}

type discardMailer struct{}

func (discardMailer) SendVerification(string, string) error { return nil }
func (discardMailer) SendOTP(string, string) error          { return nil }

// Delivery is one captured outbound message.
type Delivery struct {
	Email string
	Token string
	Code  string
}

// ChannelMailer captures deliveries on a buffered channel so tests can read
// the secrets back.
type ChannelMailer struct {
	deliveries chan Delivery
}

// NewChannelMailer creates a ChannelMailer with the given buffer capacity.
func NewChannelMailer(buffer int) *ChannelMailer {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelMailer{
		deliveries: make(chan Delivery, buffer),
	}
}

func (m *ChannelMailer) SendVerification(email, token string) error {
	m.deliveries <- Delivery{Email: email, Token: token}
	return nil
}

func (m *ChannelMailer) SendOTP(email, code string) error {
	m.deliveries <- Delivery{Email: email, Code: code}
	return nil
}

// Deliveries exposes the captured messages.
func (m *ChannelMailer) Deliveries() <-chan Delivery {
	return m.deliveries
}

// LogMailer writes deliveries to a structured logger. Only for development.
type LogMailer struct {
	Logger *zap.Logger
}

func (m LogMailer) SendVerification(email, token string) error {
	m.Logger.Info("verification email", zap.String("email", email), zap.String("token", token))
	return nil
}

func (m LogMailer) SendOTP(email, code string) error {
	m.Logger.Info("one-time code", zap.String("email", email), zap.String("code", code))
	return nil
}
