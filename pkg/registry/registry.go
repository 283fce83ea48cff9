package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// LoadRegistry reads and sanity-checks a template registry file. Template
// semantics are checked by the catalog when the entries are applied.
func LoadRegistry(path string) (*TemplateRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

func Parse(data []byte) (*TemplateRegistry, error) {
	var reg TemplateRegistry
	if err := json.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("decode template registry: %w", err)
	}
	if reg.Version == "" {
		return nil, fmt.Errorf("template registry: version is required")
	}
	seen := make(map[string]bool, len(reg.Templates))
	for i, t := range reg.Templates {
		if t.Name == "" {
			return nil, fmt.Errorf("template registry: entry %d has no name", i)
		}
		if seen[t.Name] {
			return nil, fmt.Errorf("template registry: duplicate template %q", t.Name)
		}
		seen[t.Name] = true
	}
	return &reg, nil
}

// WriteRegistry writes reg as indented JSON, stamping LastUpdated.
func WriteRegistry(path string, reg *TemplateRegistry) error {
	reg.LastUpdated = time.Now().UTC().Format(time.RFC3339)
	data, err := json.MarshalIndent(reg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}
