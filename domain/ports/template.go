package ports

// TemplateEngine renders configuration documents before they are parsed.
type TemplateEngine interface {
	// Render expands placeholders in raw using vars, exposed to the
	// template as {{.vars.key}}.
	Render(raw []byte, vars map[string]any) ([]byte, error)
}
