package util

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LoadPromptFile reads <dir>/<name>.<tp>.txt. Empty dir falls back to
// $PROMPT_DIR; an empty or missing file is an error so callers can keep
// their built-in prompt.
func LoadPromptFile(dir, name, tp string) (string, error) {
	if dir == "" {
		dir = os.Getenv("PROMPT_DIR")
	}
	if dir == "" {
		return "", fmt.Errorf("prompt dir is empty")
	}
	p := filepath.Join(dir, fmt.Sprintf("%s.%s.txt", name, tp))
	b, err := os.ReadFile(p)
	if err != nil {
		return "", fmt.Errorf("prompt %q: %w", p, err)
	}
	s := strings.TrimSpace(string(b))
	if s == "" {
		return "", fmt.Errorf("prompt %q is empty", p)
	}
	return s, nil
}
