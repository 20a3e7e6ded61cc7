package template

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	"regexp"
	"strings"
	texttemplate "text/template"

	"routecast/internal/common"
	"routecast/internal/domain/notification"
)

var _ notification.TemplateRenderer = (*Engine)(nil)

// Engine renders notification templates using Go's template packages:
// text/template for the subject and push body, html/template for the email
// body. Rendering is strict — an unresolved variable is an error, so content
// drift between a route's resolver and its template surfaces immediately
// instead of producing blank notifications.
type Engine struct{}

// NewEngine creates a new template engine.
func NewEngine() *Engine {
	return &Engine{}
}

// Render produces the per-channel content for a template. Same inputs always
// render identically.
func (e *Engine) Render(tmpl *notification.NotificationTemplate, data map[string]any) (*notification.RenderedContent, error) {
	title, err := renderText(tmpl.Name+":subject", tmpl.Subject, data)
	if err != nil {
		return nil, common.NewRenderError(tmpl.Name, err.Error())
	}

	pushBody, err := renderText(tmpl.Name+":push", tmpl.PushBody, data)
	if err != nil {
		return nil, common.NewRenderError(tmpl.Name, err.Error())
	}

	emailHTML, err := renderHTML(tmpl.Name+":email", tmpl.EmailBody, data)
	if err != nil {
		return nil, common.NewRenderError(tmpl.Name, err.Error())
	}

	return &notification.RenderedContent{
		Title:     title,
		PushBody:  pushBody,
		EmailHTML: emailHTML,
		EmailText: stripHTML(emailHTML),
	}, nil
}

func renderText(name, body string, data map[string]any) (string, error) {
	t, err := texttemplate.New(name).Option("missingkey=error").Parse(body)
	if err != nil {
		return "", fmt.Errorf("parsing: %s", err.Error())
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func renderHTML(name, body string, data map[string]any) (string, error) {
	t, err := htmltemplate.New(name).Option("missingkey=error").Parse(body)
	if err != nil {
		return "", fmt.Errorf("parsing: %s", err.Error())
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// stripHTML removes HTML tags and collapses whitespace to produce a
// plain-text version for email clients without HTML rendering.
func stripHTML(s string) string {
	re := regexp.MustCompile(`<[^>]*>`)
	text := re.ReplaceAllString(s, "")

	text = strings.ReplaceAll(text, "&amp;", "&")
	text = strings.ReplaceAll(text, "&lt;", "<")
	text = strings.ReplaceAll(text, "&gt;", ">")
	text = strings.ReplaceAll(text, "&quot;", `"`)
	text = strings.ReplaceAll(text, "&#39;", "'")
	text = strings.ReplaceAll(text, "&nbsp;", " ")

	wsRe := regexp.MustCompile(`\s+`)
	text = wsRe.ReplaceAllString(text, " ")

	return strings.TrimSpace(text)
}
