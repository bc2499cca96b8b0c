package agent

import (
	"embed"
	"fmt"
	"strings"
	"text/template"
)

//go:embed prompts/*.tmpl
var promptFS embed.FS

var prompts = template.Must(template.ParseFS(promptFS, "prompts/*.tmpl"))

type classicPrompt struct {
	Detected bool
	Context  string
	Question string
}

type planPrompt struct {
	Question string
}

type synthesizePrompt struct {
	Question string
	Plan     string
	Context  string
}

// render executes the named template. Surrounding whitespace from the
// template files is trimmed; interpolated values are inserted verbatim.
func render(name string, data any) (string, error) {
	var b strings.Builder
	if err := prompts.ExecuteTemplate(&b, name, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return strings.TrimSpace(b.String()), nil
}
