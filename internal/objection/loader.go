package objection

import (
	"embed"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed bundle/objections.yaml
var bundleFS embed.FS

// document is the YAML shape of an objection bundle.
type document struct {
	Objections []Objection `yaml:"objections"`
}

// Load reads the objection bundle at path, or the embedded default when
// path is empty, validates it against the supported languages, and returns
// a matcher. Like the script catalog, a broken bundle is a boot-time
// failure.
func Load(path string, languages []string) (*Matcher, error) {
	var (
		raw []byte
		err error
		src string
	)
	if path == "" {
		raw, err = bundleFS.ReadFile("bundle/objections.yaml")
		src = "embedded"
	} else {
		raw, err = os.ReadFile(path)
		src = path
	}
	if err != nil {
		return nil, fmt.Errorf("reading objection bundle: %w", err)
	}

	m, err := parse(raw, languages)
	if err != nil {
		return nil, fmt.Errorf("loading objection bundle %s: %w", src, err)
	}

	slog.Info("objection set loaded", "source", src, "objections", len(m.objections))
	return m, nil
}

// LoadFromReader parses and validates an objection bundle from r.
func LoadFromReader(r io.Reader, languages []string) (*Matcher, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading objection bundle: %w", err)
	}
	return parse(raw, languages)
}

func parse(raw []byte, languages []string) (*Matcher, error) {
	var doc document
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decoding yaml: %w", err)
	}
	if err := validate(doc.Objections, languages); err != nil {
		return nil, fmt.Errorf("invalid objection set: %w", err)
	}
	return NewMatcher(doc.Objections), nil
}

// validate checks ids are unique and every objection carries patterns and
// a response for every supported language.
func validate(objections []Objection, languages []string) error {
	if len(objections) == 0 {
		return errors.New("no objections defined")
	}

	var errs []error
	seen := make(map[string]bool, len(objections))
	for i, o := range objections {
		if o.ID == "" {
			errs = append(errs, fmt.Errorf("objection at index %d has no id", i))
			continue
		}
		if seen[o.ID] {
			errs = append(errs, fmt.Errorf("duplicate objection id %q", o.ID))
			continue
		}
		seen[o.ID] = true

		for _, lang := range languages {
			if len(o.Patterns[lang]) == 0 {
				errs = append(errs, fmt.Errorf("objection %s: no %q patterns", o.ID, lang))
			}
			if o.Response[lang] == "" {
				errs = append(errs, fmt.Errorf("objection %s: no %q response", o.ID, lang))
			}
		}
	}
	return errors.Join(errs...)
}
