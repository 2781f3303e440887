package core

import (
	"bytes"
	"text/template"

	"github.com/Masterminds/sprig/v3"
)

// ExecuteTemplate renders a config value as a template against the run
// context. missingkey=zero keeps optional variables usable with Sprig's
// 'default'; use Sprig's 'required' for mandatory ones.
func ExecuteTemplate(content string, ctx *RunContext) (string, error) {
	tmpl, err := template.New("warden").Funcs(sprig.TxtFuncMap()).Option("missingkey=zero").Parse(content)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, map[string]any{"Vars": ctx.Vars, "RunID": ctx.RunID}); err != nil {
		return "", err
	}

	return buf.String(), nil
}
