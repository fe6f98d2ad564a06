package mailservice

import (
	"bytes"
	"errors"
	"sync"

	"github.com/go-mail/mail/v2"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/mock"

	"github.com/sushihentaime/postboard/internal/common"
)

var errSMTPUnavailable = errors.New("smtp unavailable")

type MockTemplate struct {
	mock.Mock
}

func (m *MockTemplate) ParseTemplate(name string, data any) (*bytes.Buffer, *bytes.Buffer, *bytes.Buffer, error) {
	args := m.Called(name, data)
	subject, _ := args.Get(0).(*bytes.Buffer)
	plain, _ := args.Get(1).(*bytes.Buffer)
	html, _ := args.Get(2).(*bytes.Buffer)
	return subject, plain, html, args.Error(3)
}

type MockDialer struct {
	mock.Mock
}

func (d *MockDialer) DialAndSend(m ...*mail.Message) error {
	args := d.Called(m)
	return args.Error(0)
}

// MockMailer fails the first Failures sends and records every recipient.
type MockMailer struct {
	mu         sync.Mutex
	Failures   int
	Attempts   int
	Recipients []string
	sent       chan string
}

func NewMockMailer(failures int) *MockMailer {
	return &MockMailer{Failures: failures, sent: make(chan string, 10)}
}

func (m *MockMailer) send(recipient string, data any, templateFile string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Attempts++
	if m.Attempts <= m.Failures {
		return errSMTPUnavailable
	}

	m.Recipients = append(m.Recipients, recipient)
	m.sent <- recipient
	return nil
}

type MockMessageConsumer struct {
	mock.Mock
	Bodies [][]byte
}

func (m *MockMessageConsumer) Consume(key common.BindingKey, exchange common.Exchange, queue common.Queue) (<-chan amqp.Delivery, error) {
	m.Called(key, exchange, queue)

	msgsChan := make(chan amqp.Delivery)

	go func() {
		defer close(msgsChan)

		for _, body := range m.Bodies {
			msgsChan <- amqp.Delivery{Body: body}
		}
	}()

	return msgsChan, nil
}

type MockLogger struct {
	mock.Mock
}

func (l *MockLogger) Error(msg string, args ...any) {
	l.Called(msg, args)
}

func (l *MockLogger) Warn(msg string, args ...any) {
	l.Called(msg, args)
}

func (l *MockLogger) Info(msg string, args ...any) {
	l.Called(msg, args)
}
