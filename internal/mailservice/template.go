package mailservice

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strings"
)

//go:embed templates/*
var templateFS embed.FS

// templateParts are the blocks every mail template defines, in the order
// ParseTemplate returns them.
var templateParts = [...]string{"subject", "plainBody", "htmlBody"}

func NewTemplate() *Template {
	return &Template{parsed: make(map[string]*template.Template)}
}

func (tp *Template) lookup(name string) (*template.Template, error) {
	tp.mu.Lock()
	defer tp.mu.Unlock()

	if t, ok := tp.parsed[name]; ok {
		return t, nil
	}

	t, err := template.New("email").ParseFS(templateFS, "templates/"+name)
	if err != nil {
		return nil, fmt.Errorf("could not parse template %s: %w", name, err)
	}
	tp.parsed[name] = t

	return t, nil
}

// ParseTemplate renders the subject, plain text body and HTML body of the
// named template. Parsed templates are kept for later calls.
func (tp *Template) ParseTemplate(name string, data any) (*bytes.Buffer, *bytes.Buffer, *bytes.Buffer, error) {
	t, err := tp.lookup(name)
	if err != nil {
		return nil, nil, nil, err
	}

	var out [len(templateParts)]*bytes.Buffer
	for i, part := range templateParts {
		out[i] = new(bytes.Buffer)
		if err := t.ExecuteTemplate(out[i], part, data); err != nil {
			return nil, nil, nil, fmt.Errorf("could not render %s of %s: %w", part, name, err)
		}
	}

	subject := bytes.NewBufferString(strings.TrimSpace(out[0].String()))

	return subject, out[1], out[2], nil
}
