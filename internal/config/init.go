package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

var sectionComments = map[string]string{
	"logging":	"Log output. level: DEBUG|INFO|WARN|ERROR, format: text|json, output: stdout|stderr|<path>",
	"engine":	"Host I/O backend: threadpool or uring. inline runs requests whose fd is\nalready ready on the issuing goroutine. Only the section named by backend is used.",
	"metrics":	"Prometheus metrics, served on addr under /metrics",
}

// Marshal renders cfg as commented YAML.
func Marshal(cfg *Config) ([]byte, error) {
	var root yaml.Node
	if err := root.Encode(cfg); err != nil { return nil, err }

	// mapping node: key, value, key, value...
	for i := 0; i + 1 < len(root.Content); i += 2 {
		if comment, ok := sectionComments[root.Content[i].Value]; ok {
			root.Content[i].HeadComment = comment
		}
	}
	root.HeadComment = "ntaio configuration. Environment variables NTAIO_<SECTION>_<KEY> override these."
	return yaml.Marshal(&root)
}

// WriteDefault writes the default configuration to path, or to the default
// location when path is empty. An existing file is kept unless force is set.
func WriteDefault(path string, force bool) (string, error) {
	if path == "" { path = DefaultConfigPath() }
	if _, err := os.Stat(path); err == nil && !force {
		return path, fmt.Errorf("config file already exists at %s (use force to overwrite)", path)
	}

	raw, err := Marshal(Default())
	if err != nil { return path, fmt.Errorf("failed to render config: %w", err) }
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return path, fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return path, fmt.Errorf("failed to write config file: %w", err)
	}
	return path, nil
}
