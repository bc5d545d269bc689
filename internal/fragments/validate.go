package fragments

import (
	"fmt"
	"regexp"

	"gopkg.in/yaml.v3"
)

// fragment names must be usable inside ${...}
var nameRe = regexp.MustCompile(`^[a-zA-Z_$][0-9a-zA-Z_$]*$`)

func validateDocument(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: fragments file must be a mapping of names", node.Line)
	}
	for i := 0; i < len(node.Content); i += 2 {
		keyNode := node.Content[i]
		if !nameRe.MatchString(keyNode.Value) {
			return fmt.Errorf("line %d: invalid fragment name '%s'", keyNode.Line, keyNode.Value)
		}
		if err := validateValue(node.Content[i+1], keyNode.Value); err != nil {
			return err
		}
	}
	return nil
}

func validateValue(node *yaml.Node, path string) error {
	switch node.Kind {
	case yaml.MappingNode:
		for i := 0; i < len(node.Content); i += 2 {
			keyNode := node.Content[i]
			if keyNode.Kind != yaml.ScalarNode {
				return fmt.Errorf("line %d: non-scalar key in %s", keyNode.Line, path)
			}
			if err := validateValue(node.Content[i+1], path+"."+keyNode.Value); err != nil {
				return err
			}
		}
	case yaml.SequenceNode:
		for i, item := range node.Content {
			if err := validateValue(item, fmt.Sprintf("%s[%d]", path, i)); err != nil {
				return err
			}
		}
	case yaml.AliasNode:
		return fmt.Errorf("line %d: aliases are not allowed in %s", node.Line, path)
	case yaml.ScalarNode:
		if node.Tag == "!!binary" {
			return fmt.Errorf("line %d: unsupported %s value in %s", node.Line, node.Tag, path)
		}
	}
	return nil
}
