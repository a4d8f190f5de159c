package answer

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Rules are extra drafting instructions appended to the system prompt.
type Rules struct {
	Instructions []string `yaml:"rules"`
	Style        string   `yaml:"style"`
}

// LoadRules reads a rules file. A missing file yields empty rules.
func LoadRules(path string) (Rules, error) {
	var r Rules
	if path == "" {
		return r, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return r, nil
	}
	if err != nil {
		return r, fmt.Errorf("reading rules: %w", err)
	}
	if err := yaml.Unmarshal(data, &r); err != nil {
		return r, fmt.Errorf("parsing rules %s: %w", path, err)
	}
	return r, nil
}

// Text renders the rules as a prompt section, or "" when there are none.
func (r Rules) Text() string {
	var sb strings.Builder
	for _, in := range r.Instructions {
		if in = strings.TrimSpace(in); in != "" {
			sb.WriteString("- " + in + "\n")
		}
	}
	if s := strings.TrimSpace(r.Style); s != "" {
		sb.WriteString("- Style : " + s + "\n")
	}
	if sb.Len() == 0 {
		return ""
	}
	return "Règles supplémentaires :\n" + strings.TrimRight(sb.String(), "\n")
}
