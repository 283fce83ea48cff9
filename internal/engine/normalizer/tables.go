package normalizer

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed tables.yaml
var defaultTablesYAML []byte

// Tables are the lookup tables behind normalization.
type Tables struct {
	Topics        map[string][]string `yaml:"topics"`
	Typos         map[string]string   `yaml:"typos"`
	Ministries    map[string][]string `yaml:"ministries"`
	NumberWords   map[string]int      `yaml:"number_words"`
	RelativeDates []string            `yaml:"relative_dates"`
	Operativity   map[string][]string `yaml:"operativity"`
}

// ParseTables decodes a tables document in the embedded format.
func ParseTables(data []byte) (*Tables, error) {
	var t Tables
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parsing normalizer tables: %w", err)
	}
	if len(t.Topics) == 0 {
		return nil, fmt.Errorf("parsing normalizer tables: no topics")
	}
	return &t, nil
}

// reverse builds a lowercase variant -> canonical index. Canonical names map
// to themselves.
func reverse(table map[string][]string) map[string]string {
	out := make(map[string]string)
	for canonical, variants := range table {
		out[strings.ToLower(canonical)] = canonical
		for _, v := range variants {
			out[strings.ToLower(strings.TrimSpace(v))] = canonical
		}
	}
	return out
}
