package engine

import (
	"fmt"
	"sort"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"
)

// emailData is the rendering context for the built-in email templates.
type emailData struct {
	CustomerName string
	Reference    string
	Agent        string
}

// emailTemplates are the built-in support email bodies. They render with
// the sprig function map, so templates can use helpers like title and upper.
var emailTemplates = map[string]string{
	"order_shipped": `Subject: Your order {{ .Reference | default "(pending)" }} is on its way

Hi {{ .CustomerName | title }},

Good news: your order {{ .Reference | default "" }} has shipped and should
arrive within 3-5 business days.

Best regards,
{{ .Agent | title }} from Customer Support`,

	"ticket_update": `Subject: Update on ticket {{ .Reference | default "(unreferenced)" }}

Hi {{ .CustomerName | title }},

We have an update on your support ticket{{ if .Reference }} {{ .Reference }}{{ end }}.
An agent has reviewed your case and will follow up shortly.

Best regards,
{{ .Agent | title }} from Customer Support`,

	"apology_delay": `Subject: We're sorry for the delay

Hi {{ .CustomerName | title }},

We're sorry that {{ .Reference | default "your request" }} is taking longer
than expected. We're on it and will update you as soon as possible.

Best regards,
{{ .Agent | title }} from Customer Support`,
}

// parsedTemplates is built once at package init; template parse failures
// are programmer errors and must fail loudly at startup.
var parsedTemplates = func() map[string]*template.Template {
	parsed := make(map[string]*template.Template, len(emailTemplates))
	for name, body := range emailTemplates {
		parsed[name] = template.Must(
			template.New(name).Funcs(sprig.FuncMap()).Parse(body),
		)
	}
	return parsed
}()

// TemplateNames returns the built-in template names, sorted.
func TemplateNames() []string {
	names := make([]string, 0, len(parsedTemplates))
	for name := range parsedTemplates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func templateNamesList() string {
	return strings.Join(TemplateNames(), ", ")
}

func renderEmail(name string, data emailData) (string, error) {
	tmpl, ok := parsedTemplates[name]
	if !ok {
		return "", fmt.Errorf("unknown template %q (available: %s)", name, templateNamesList())
	}

	var sb strings.Builder
	if err := tmpl.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("rendering template %q: %w", name, err)
	}
	return sb.String(), nil
}
