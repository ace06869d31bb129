package notifications

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
)

//go:embed templates/*.html
var templateFS embed.FS

// Template names, one per email kind.
const (
	TemplateWelcome            = "welcome"
	TemplateInvite             = "invite"
	TemplateMemberAdded        = "member_added"
	TemplateRoleUpdated        = "role_updated"
	TemplateMemberRemoved      = "member_removed"
	TemplateMemberLeft         = "member_left"
	TemplateInvitationAccepted = "invitation_accepted"
	TemplateInvitationDeclined = "invitation_declined"
	TemplateProjectCreated     = "project_created"
)

var templateNames = []string{
	TemplateWelcome,
	TemplateInvite,
	TemplateMemberAdded,
	TemplateRoleUpdated,
	TemplateMemberRemoved,
	TemplateMemberLeft,
	TemplateInvitationAccepted,
	TemplateInvitationDeclined,
	TemplateProjectCreated,
}

// Renderer turns a template name and its data into an HTML document.
type Renderer struct {
	pages map[string]*template.Template
}

// NewRenderer parses every embedded page against the shared layout.
func NewRenderer() (*Renderer, error) {
	pages := make(map[string]*template.Template, len(templateNames))
	for _, name := range templateNames {
		tmpl, err := template.New(name).ParseFS(templateFS, "templates/layout.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("notifications: parse %s template: %w", name, err)
		}
		pages[name] = tmpl
	}
	return &Renderer{pages: pages}, nil
}

// Render executes the named page.
func (r *Renderer) Render(name string, data any) (string, error) {
	tmpl, ok := r.pages[name]
	if !ok {
		return "", fmt.Errorf("notifications: unknown template %q", name)
	}
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout", data); err != nil {
		return "", fmt.Errorf("notifications: render %s: %w", name, err)
	}
	return buf.String(), nil
}
