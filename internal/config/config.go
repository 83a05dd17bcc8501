// Package config loads the optional .cssrules.yaml file that sets default
// parser options for the command line tool.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/Discord-CSS-Datamining/discord-css-differ/parser"
)

// DefaultName is the file looked up by LoadDefault.
const DefaultName = ".cssrules.yaml"

//go:embed schema.json
var schemaJSON string

var compileSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020

	url := "schema://cssrules.json"
	if err := compiler.AddResource(url, strings.NewReader(schemaJSON)); err != nil {
		return nil, err
	}
	return compiler.Compile(url)
})

// File is the decoded configuration. Unset fields keep parser defaults.
type File struct {
	MaxDepth          *int    `yaml:"maxDepth"`
	Strict            *bool   `yaml:"strict"`
	UnsupportedSyntax *string `yaml:"unsupportedSyntax"`
	CustomAtRules     *bool   `yaml:"customAtRules"`
	CacheDir          string  `yaml:"cacheDir"`

	// Path is the file the configuration was read from, if any.
	Path string `yaml:"-"`
}

// Load reads and validates the configuration file at path.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	f.Path = path
	return f, nil
}

// LoadDefault loads DefaultName from dir. A missing file yields an empty
// configuration.
func LoadDefault(dir string) (*File, error) {
	f, err := Load(filepath.Join(dir, DefaultName))
	if errors.Is(err, fs.ErrNotExist) {
		return &File{}, nil
	}
	return f, err
}

// Parse decodes and validates YAML configuration data.
func Parse(data []byte) (*File, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("invalid yaml: %w", err)
	}
	if doc == nil {
		return &File{}, nil
	}

	schema, err := compileSchema()
	if err != nil {
		return nil, fmt.Errorf("compile config schema: %w", err)
	}
	if err := schema.Validate(normalize(doc)); err != nil {
		var ve *jsonschema.ValidationError
		if errors.As(err, &ve) {
			return nil, fmt.Errorf("invalid config: %s", describe(ve))
		}
		return nil, err
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("invalid yaml: %w", err)
	}
	return &f, nil
}

// Options converts the configuration into parser options.
func (f *File) Options() ([]parser.Option, error) {
	var opts []parser.Option
	if f.MaxDepth != nil {
		opts = append(opts, parser.WithMaxDepth(*f.MaxDepth))
	}
	if f.Strict != nil {
		opts = append(opts, parser.WithStrict(*f.Strict))
	}
	if f.UnsupportedSyntax != nil {
		p, err := parser.ParseUnsupportedSyntaxPolicy(*f.UnsupportedSyntax)
		if err != nil {
			return nil, err
		}
		opts = append(opts, parser.WithUnsupportedSyntax(p))
	}
	if f.CustomAtRules != nil {
		opts = append(opts, parser.WithCustomAtRules(*f.CustomAtRules))
	}
	return opts, nil
}

// describe returns the deepest validation failure, which names the
// offending property.
func describe(ve *jsonschema.ValidationError) string {
	for len(ve.Causes) > 0 {
		ve = ve.Causes[0]
	}
	loc := ve.InstanceLocation
	if loc == "" {
		loc = "/"
	}
	return loc + ": " + ve.Message
}

// normalize converts YAML scalars into the JSON value types the schema
// validator understands.
func normalize(v any) any {
	switch v := v.(type) {
	case map[string]any:
		for k, e := range v {
			v[k] = normalize(e)
		}
		return v
	case []any:
		for i, e := range v {
			v[i] = normalize(e)
		}
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case uint64:
		return float64(v)
	default:
		return v
	}
}
