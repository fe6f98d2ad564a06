package mailservice

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"golang.org/x/exp/rand"

	"github.com/sushihentaime/postboard/internal/common"
)

func NewMailService(mb common.MessageConsumer, host, username, password, sender string, port int, logger MailLogger) *MailService {
	ctx, cancel := context.WithCancel(context.Background())
	return &MailService{
		mb:         mb,
		m:          NewMailer(host, port, username, password, sender, NewTemplate()),
		logger:     logger,
		ctx:        ctx,
		cancel:     cancel,
		maxRetries: 5,
		baseDelay:  500 * time.Millisecond,
		sleep:      time.Sleep,
	}
}

// SendWelcomeEmail consumes user.registered events and mails every new user.
func (s *MailService) SendWelcomeEmail() {
	msgs, err := s.mb.Consume(common.UserRegisteredKey, common.UserExchange, common.UserRegisteredQueue)
	if err != nil {
		s.logger.Error("could not consume message", slog.String("error", err.Error()))
		return
	}

	go s.process(msgs)
}

func (s *MailService) process(msgs <-chan amqp.Delivery) {
	for {
		select {
		case msg, ok := <-msgs:
			if !ok {
				return
			}

			var data welcomeData
			err := json.Unmarshal(msg.Body, &data)
			if err != nil || data.Email == "" {
				s.logger.Error("could not unmarshal message", slog.String("body", string(msg.Body)))
				msg.Ack(false)
				continue
			}

			if s.deliver(data) {
				s.logger.Info("welcome email sent", slog.String("email", data.Email))
			} else {
				s.logger.Error("could not send welcome email", slog.String("email", data.Email))
			}
			msg.Ack(false)

		case <-s.ctx.Done():
			s.logger.Info("stopping SendWelcomeEmail due to context cancellation")
			return
		}
	}
}

// deliver retries with exponential backoff and jitter.
func (s *MailService) deliver(data welcomeData) bool {
	for attempt := 0; attempt < s.maxRetries; attempt++ {
		err := s.m.send(data.Email, data, welcomeTemplate)
		if err == nil {
			return true
		}

		if s.ctx.Err() != nil {
			return false
		}

		delay := time.Duration(rand.Int63n(int64(s.baseDelay) << uint(attempt)))
		s.logger.Warn("delaying welcome email", slog.String("email", data.Email), slog.Int("attempt", attempt), slog.Duration("delay", delay), slog.String("error", err.Error()))
		s.sleep(delay)
	}

	return false
}

func (s *MailService) Close() {
	s.cancel()
}
