package mailservice

import (
	"bytes"
	"context"
	"html/template"
	"sync"
	"time"

	"github.com/go-mail/mail/v2"

	"github.com/sushihentaime/postboard/internal/common"
)

const welcomeTemplate = "welcome_email.html"

type MailService struct {
	mb         common.MessageConsumer
	m          Mailer
	logger     MailLogger
	ctx        context.Context
	cancel     context.CancelFunc
	maxRetries int
	baseDelay  time.Duration
	sleep      func(time.Duration)
}

type MailLogger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
	Info(msg string, args ...any)
}

type Mail struct {
	mu     sync.Mutex
	dialer Dialer
	parser TemplateParser
	sender string
}

type Mailer interface {
	send(recipient string, data any, templateFile string) error
}

// Template renders the embedded mail templates.
type Template struct {
	mu     sync.Mutex
	parsed map[string]*template.Template
}

type Dialer interface {
	DialAndSend(m ...*mail.Message) error
}

type TemplateParser interface {
	ParseTemplate(name string, data any) (*bytes.Buffer, *bytes.Buffer, *bytes.Buffer, error)
}

// welcomeData is both the user.registered payload and the template data.
type welcomeData struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}
