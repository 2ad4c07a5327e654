// Package template renders environment-variable substitutions into HTML
// using a Mustache/Handlebars-compatible engine (spec.md §4.B).
package template

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/cbroglie/mustache"
)

// CollectEnv returns every process environment variable whose key starts
// with prefix, with the prefix stripped. Called once at boot; the
// snapshot is never re-read (spec.md §5).
func CollectEnv(prefix string) map[string]string {
	env := make(map[string]string)
	for _, kv := range os.Environ() {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(key, prefix) {
			continue
		}
		env[strings.TrimPrefix(key, prefix)] = value
	}
	return env
}

// Render substitutes {{env.KEY}}, {{json}}, and {{escapedJson}} in content
// using the given env snapshot. Values are inserted without HTML escaping
// so json and escapedJson can be embedded in inline scripts as-is. On a
// syntactic template error it returns
// the error; callers must fall back to serving content verbatim per
// spec.md §4.B.
func Render(content string, env map[string]string) (string, error) {
	jsonBytes, err := json.Marshal(env)
	if err != nil {
		return "", fmt.Errorf("marshal env: %w", err)
	}
	jsonStr := string(jsonBytes)
	escapedJSON := strings.ReplaceAll(jsonStr, `"`, `\"`)

	data := map[string]any{
		"env":         env,
		"json":        jsonStr,
		"escapedJson": escapedJSON,
	}

	rendered, err := mustache.RenderRaw(content, true, data)
	if err != nil {
		return "", fmt.Errorf("render template: %w", err)
	}
	return rendered, nil
}
