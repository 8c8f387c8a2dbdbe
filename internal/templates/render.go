package templates

import (
	"errors"
	"fmt"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"

	"github.com/sungwon/post-office/internal/mail"
)

// ErrRender is wrapped by every rendering failure.
var ErrRender = errors.New("render template")

// Rendered is the output of rendering a template.
type Rendered struct {
	Subject string
	Body    string
	HTML    string
}

// Render renders all parts of t against data. The HTML part is escaped
// with html/template.
func Render(t *mail.Template, data map[string]any) (Rendered, error) {
	return RenderStrings(t.Subject, t.Content, t.HTMLContent, data)
}

// RenderStrings renders literal subject, body and html strings as templates.
func RenderStrings(subject, body, html string, data map[string]any) (Rendered, error) {
	var out Rendered
	var err error

	if out.Subject, err = renderText("subject", subject, data); err != nil {
		return Rendered{}, err
	}
	// Subjects must stay on one line.
	out.Subject = strings.Join(strings.Fields(out.Subject), " ")

	if out.Body, err = renderText("body", body, data); err != nil {
		return Rendered{}, err
	}
	if out.HTML, err = renderHTML(html, data); err != nil {
		return Rendered{}, err
	}
	return out, nil
}

func renderText(part, src string, data map[string]any) (string, error) {
	if src == "" {
		return "", nil
	}
	t, err := texttemplate.New(part).Parse(src)
	if err != nil {
		return "", fmt.Errorf("%w: parse %s: %v", ErrRender, part, err)
	}
	var sb strings.Builder
	if err := t.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("%w: execute %s: %v", ErrRender, part, err)
	}
	return sb.String(), nil
}

func renderHTML(src string, data map[string]any) (string, error) {
	if src == "" {
		return "", nil
	}
	t, err := htmltemplate.New("html").Parse(src)
	if err != nil {
		return "", fmt.Errorf("%w: parse html: %v", ErrRender, err)
	}
	var sb strings.Builder
	if err := t.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("%w: execute html: %v", ErrRender, err)
	}
	return sb.String(), nil
}

// Check parses every part of t without executing it.
func Check(t *mail.Template) error {
	for part, src := range map[string]string{"subject": t.Subject, "body": t.Content} {
		if _, err := texttemplate.New(part).Parse(src); err != nil {
			return fmt.Errorf("%w: parse %s: %v", ErrRender, part, err)
		}
	}
	if _, err := htmltemplate.New("html").Parse(t.HTMLContent); err != nil {
		return fmt.Errorf("%w: parse html: %v", ErrRender, err)
	}
	return nil
}
