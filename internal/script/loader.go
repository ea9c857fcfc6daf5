package script

import (
	"embed"
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed bundle/overdraft.yaml
var bundleFS embed.FS

// Document is the parsed YAML representation of a script bundle before
// validation. All prompts for all supported languages live here, keyed by
// (state id, language) — there is no string branching in code.
type Document struct {
	Languages []string `yaml:"languages"`
	Initial   string   `yaml:"initial"`
	States    []State  `yaml:"states"`
}

// Load reads the script bundle at path, or the embedded default overdraft
// script when path is empty, validates it, and returns the immutable
// catalog. Validation failure is fatal: the process must not start with a
// broken script.
func Load(path string) (*Catalog, error) {
	var (
		raw []byte
		err error
		src string
	)
	if path == "" {
		raw, err = bundleFS.ReadFile("bundle/overdraft.yaml")
		src = "embedded"
	} else {
		raw, err = os.ReadFile(path)
		src = path
	}
	if err != nil {
		return nil, fmt.Errorf("reading script bundle: %w", err)
	}

	cat, err := parse(raw)
	if err != nil {
		return nil, fmt.Errorf("loading script bundle %s: %w", src, err)
	}

	slog.Info("script catalog loaded",
		"source", src,
		"states", len(cat.states),
		"languages", cat.languages,
		"initial", cat.initial,
	)
	return cat, nil
}

// LoadFromReader parses and validates a script bundle from r. Useful in
// tests where bundles are built from string literals.
func LoadFromReader(r io.Reader) (*Catalog, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading script bundle: %w", err)
	}
	return parse(raw)
}

func parse(raw []byte) (*Catalog, error) {
	var doc Document
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decoding yaml: %w", err)
	}

	result := Validate(&doc)
	for _, issue := range result.Issues {
		if issue.Severity == SeverityWarning {
			slog.Warn("script validation", "state", issue.StateID, "issue", issue.Message)
		}
	}
	if !result.Valid {
		return nil, fmt.Errorf("invalid script: %w", result.Err())
	}

	cat := &Catalog{
		languages: doc.Languages,
		initial:   doc.Initial,
		states:    make(map[string]*State, len(doc.States)),
		order:     make([]string, 0, len(doc.States)),
	}
	for i := range doc.States {
		st := doc.States[i]
		cat.states[st.ID] = &st
		cat.order = append(cat.order, st.ID)
	}
	return cat, nil
}
