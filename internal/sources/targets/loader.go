package targets

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

var (
	envRef      = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)
	templateVar = regexp.MustCompile(`\{\{[^}]+\}\}`)
)

// Loader reads the targets seed file.
type Loader struct {
	filePath string
	lookup   func(string) (string, bool)
}

func NewLoader(filePath string) *Loader {
	return &Loader{filePath: filePath, lookup: os.LookupEnv}
}

// Load reads and parses the targets file.
func (l *Loader) Load() (Config, error) {
	data, err := os.ReadFile(l.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read targets file: %w", err)
	}

	data = expandEnv(data, l.lookup)
	data = stripTemplateVariables(data)

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse targets yaml: %w", err)
	}
	return config, nil
}

// expandEnv replaces ${NAME} with the variable's value. Unset variables
// expand to the empty string. Bare $NAME is left alone since URLs may hold it.
func expandEnv(data []byte, lookup func(string) (string, bool)) []byte {
	return envRef.ReplaceAllFunc(data, func(m []byte) []byte {
		name := envRef.FindSubmatch(m)[1]
		v, _ := lookup(string(name))
		return []byte(v)
	})
}

// stripTemplateVariables blanks {{...}} placeholders left by templated files.
func stripTemplateVariables(data []byte) []byte {
	return templateVar.ReplaceAll(data, []byte(`""`))
}
