package config

import (
	"bytes"
	"os"
	"strings"
	"text/template"
)

// expandEnv expands environment variables in YAML content using Go template
// syntax ({{.VAR_NAME}}). The $-free syntax keeps literal $ characters in
// config values (API keys, prompt snippets) untouched.
//
// Missing variables expand to the empty string; validation catches required
// fields left empty. Malformed templates pass the content through unchanged
// so the YAML parser can produce the clearer error.
func expandEnv(data []byte) []byte {
	tmpl, err := template.New("config").Option("missingkey=zero").Parse(string(data))
	if err != nil {
		return data
	}

	env := make(map[string]string)
	for _, kv := range os.Environ() {
		if idx := strings.IndexByte(kv, '='); idx > 0 {
			env[kv[:idx]] = kv[idx+1:]
		}
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, env); err != nil {
		return data
	}
	return buf.Bytes()
}
