package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"MQueryAPI/internal/logger"
	"MQueryAPI/internal/qparser"

	"gopkg.in/yaml.v3"
)

// ParserConfig is the YAML form of qparser.Options. Casters map a caster
// name to one of the named transforms.
type ParserConfig struct {
	FilterKey   string            `yaml:"filterKey"`
	SelectKey   string            `yaml:"selectKey"`
	PopulateKey string            `yaml:"populateKey"`
	SortKey     string            `yaml:"sortKey"`
	SkipKey     string            `yaml:"skipKey"`
	LimitKey    string            `yaml:"limitKey"`
	Blacklist   []string          `yaml:"blacklist"`
	Casters     map[string]string `yaml:"casters"`
	CastParams  map[string]string `yaml:"castParams"`
	DateFormat  DateFormats       `yaml:"dateFormat"`
}

// DateFormats accepts a single layout or a list of layouts.
type DateFormats []string

func (d *DateFormats) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		*d = DateFormats{node.Value}
		return nil
	case yaml.SequenceNode:
		var list []string
		if err := node.Decode(&list); err != nil {
			return err
		}
		*d = list
		return nil
	default:
		return fmt.Errorf("line %d: dateFormat must be a string or a list of strings", node.Line)
	}
}

var allowedParserKeys = map[string]bool{
	"filterKey":   true,
	"selectKey":   true,
	"populateKey": true,
	"sortKey":     true,
	"skipKey":     true,
	"limitKey":    true,
	"blacklist":   true,
	"casters":     true,
	"castParams":  true,
	"dateFormat":  true,
}

// LoadParserOptions reads the parser config at path. A missing file yields
// the default options.
func LoadParserOptions(path string) (qparser.Options, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		logger.Warn("parser_config_missing", map[string]any{"path": path})
		return qparser.Options{}, nil
	}
	if err != nil {
		return qparser.Options{}, err
	}

	pc, err := ParseParserConfig(data)
	if err != nil {
		return qparser.Options{}, fmt.Errorf("parser config %s: %w", path, err)
	}
	logger.Info("parser_config_loaded", map[string]any{
		"path":      path,
		"casters":   len(pc.Casters),
		"blacklist": len(pc.Blacklist),
	})
	return pc.Options()
}

// ParseParserConfig validates and decodes a parser config document.
func ParseParserConfig(data []byte) (*ParserConfig, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("YAML parse error: %w", err)
	}
	pc := &ParserConfig{}
	if len(root.Content) == 0 {
		return pc, nil
	}
	if err := validateParserNode(root.Content[0]); err != nil {
		return nil, fmt.Errorf("validation error: %w", err)
	}
	if err := root.Decode(pc); err != nil {
		return nil, fmt.Errorf("unmarshal error: %w", err)
	}
	return pc, nil
}

func validateParserNode(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: parser config must be a mapping", node.Line)
	}
	for i := 0; i < len(node.Content); i += 2 {
		keyNode := node.Content[i]
		valNode := node.Content[i+1]
		key := keyNode.Value
		if !allowedParserKeys[key] {
			return fmt.Errorf("unknown key '%s' at line %d", key, keyNode.Line)
		}

		switch key {
		case "casters", "castParams":
			if valNode.Kind != yaml.MappingNode {
				return fmt.Errorf("%s must be a mapping", key)
			}
			for j := 1; j < len(valNode.Content); j += 2 {
				if valNode.Content[j].Kind != yaml.ScalarNode {
					return fmt.Errorf("%s.%s must be a name", key, valNode.Content[j-1].Value)
				}
			}
		case "blacklist":
			if valNode.Kind != yaml.SequenceNode {
				return fmt.Errorf("blacklist must be a list")
			}
		default:
			if key != "dateFormat" && valNode.Kind != yaml.ScalarNode {
				return fmt.Errorf("%s must be a string", key)
			}
		}
	}
	return nil
}

// Options resolves transform names into casters.
func (pc *ParserConfig) Options() (qparser.Options, error) {
	opts := qparser.Options{
		FilterKey:   pc.FilterKey,
		SelectKey:   pc.SelectKey,
		PopulateKey: pc.PopulateKey,
		SortKey:     pc.SortKey,
		SkipKey:     pc.SkipKey,
		LimitKey:    pc.LimitKey,
		Blacklist:   pc.Blacklist,
		CastParams:  pc.CastParams,
		DateFormat:  pc.DateFormat,
	}
	if len(pc.Casters) > 0 {
		opts.Casters = make(map[string]qparser.Caster, len(pc.Casters))
	}
	for name, transform := range pc.Casters {
		c, ok := transformFor(transform, pc.DateFormat)
		if !ok {
			return qparser.Options{}, fmt.Errorf("caster %s: unknown transform %q (known: %v)", name, transform, TransformNames())
		}
		opts.Casters[name] = c
	}
	return opts, nil
}
