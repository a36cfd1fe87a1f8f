package templates

import (
	"bytes"
	"embed"
	"fmt"
	"io/fs"
	"strings"
	"text/template"

	"go.uber.org/zap"

	"github.com/selivandex/stock-qa-bot/pkg/logger"
)

//go:embed files/*.tmpl
var embedded embed.FS

// Renderer renders named templates
type Renderer interface {
	ExecuteTemplate(name string, data any) (string, error)
	TemplateExists(name string) bool
}

// Manager holds parsed templates
type Manager struct {
	templates *template.Template
}

// FuncMap returns helper functions available to every template
func FuncMap() template.FuncMap {
	return template.FuncMap{
		"add": func(a, b int) int { return a + b },
		"truncate": func(n int, s string) string {
			r := []rune(s)
			if len(r) <= n {
				return s
			}
			return string(r[:n]) + "…"
		},
		"join": strings.Join,
	}
}

// Default loads the templates compiled into the binary
func Default() (*Manager, error) {
	return NewManager(embedded, "files/*.tmpl")
}

// NewManager parses every template matching patterns in fsys
func NewManager(fsys fs.FS, patterns ...string) (*Manager, error) {
	tmpl, err := template.New("root").Funcs(FuncMap()).ParseFS(fsys, patterns...)
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	logger.Debug("templates loaded",
		zap.Int("count", len(tmpl.Templates())),
		zap.Strings("patterns", patterns),
	)

	return &Manager{templates: tmpl}, nil
}

// ExecuteTemplate renders template with data
func (m *Manager) ExecuteTemplate(name string, data any) (string, error) {
	tmpl := m.templates.Lookup(name)
	if tmpl == nil {
		return "", fmt.Errorf("template %s not found", name)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute template %s: %w", name, err)
	}

	return buf.String(), nil
}

// TemplateExists checks if template exists
func (m *Manager) TemplateExists(name string) bool {
	return m.templates.Lookup(name) != nil
}
