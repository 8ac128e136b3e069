package template_test

import (
	"testing"

	"github.com/coral-dev/coral-go/application/template"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGoTemplateEngine_Render(t *testing.T) {
	engine := template.NewGoTemplateEngine()

	t.Run("Successful Resolution", func(t *testing.T) {
		raw := []byte(`entry_point: "{{.vars.entry}}"` + "\n" + `log_level: info`)

		out, err := engine.Render(raw, map[string]any{"entry": "run"})
		require.NoError(t, err)
		assert.Contains(t, string(out), `entry_point: "run"`)
	})

	t.Run("Missing Key Fails", func(t *testing.T) {
		raw := []byte(`entry_point: "{{.vars.missing}}"`)

		_, err := engine.Render(raw, map[string]any{"entry": "run"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "map has no entry for key")
	})

	t.Run("Nil Vars", func(t *testing.T) {
		out, err := engine.Render([]byte("log_level: debug"), nil)
		require.NoError(t, err)
		assert.Equal(t, "log_level: debug", string(out))
	})

	t.Run("Invalid Template Syntax", func(t *testing.T) {
		_, err := engine.Render([]byte(`entry_point: "{{.vars.entry"`), nil)
		require.Error(t, err)
	})
}

func TestGoTemplateEngine_NonStrict(t *testing.T) {
	engine := template.NewGoTemplateEngine(template.WithStrict(false))

	out, err := engine.Render([]byte(`name: "{{.vars.missing}}"`), map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, `name: "<no value>"`, string(out))
}

func TestGoTemplateEngine_Env(t *testing.T) {
	t.Setenv("CORAL_TEST_ENTRY", "main")

	out, err := template.NewGoTemplateEngine(template.WithEnv(true)).
		Render([]byte(`entry_point: {{.env.CORAL_TEST_ENTRY}}`), nil)
	require.NoError(t, err)
	assert.Equal(t, "entry_point: main", string(out))

	_, err = template.NewGoTemplateEngine().Render([]byte(`{{.env.CORAL_TEST_ENTRY}}`), nil)
	assert.Error(t, err)
}
