package parser

import (
	stderrors "errors"
	"fmt"
	"io"
	"math"

	"gopkg.in/yaml.v3"

	"github.com/mcncl/jsonflat/internal/errors"
	"github.com/mcncl/jsonflat/internal/models"
)

func parseYAMLStream(reader io.Reader, fn func(models.Value) error) error {
	decoder := yaml.NewDecoder(reader)
	count := 0
	for {
		var doc yaml.Node
		if err := decoder.Decode(&doc); err != nil {
			if stderrors.Is(err, io.EOF) {
				break
			}
			return errors.NewParsingError("failed to parse YAML", fmt.Errorf("%w: %v", errors.ErrInvalidYAML, err))
		}
		value, err := valueFromNode(&doc)
		if err != nil {
			return errors.NewParsingError(fmt.Sprintf("YAML document %d", count+1), err)
		}
		count++
		if err := fn(value); err != nil {
			return err
		}
	}
	if count == 0 {
		return errors.NewParsingError("input is empty or contains only whitespace", errors.ErrEmptyInput)
	}
	return nil
}

// valueFromNode converts a yaml.v3 node tree into a Value.
func valueFromNode(node *yaml.Node) (models.Value, error) {
	switch node.Kind {
	case yaml.DocumentNode:
		if len(node.Content) == 0 {
			return models.Null(), nil
		}
		return valueFromNode(node.Content[0])
	case yaml.AliasNode:
		return valueFromNode(node.Alias)
	case yaml.MappingNode:
		obj := models.NewObject()
		for i := 0; i+1 < len(node.Content); i += 2 {
			keyNode, valNode := node.Content[i], node.Content[i+1]
			if keyNode.ShortTag() == "!!merge" {
				if err := mergeYAMLInto(obj, valNode); err != nil {
					return models.Value{}, err
				}
				continue
			}
			val, err := valueFromNode(valNode)
			if err != nil {
				return models.Value{}, err
			}
			obj.Set(keyNode.Value, val)
		}
		return models.ObjectValue(obj), nil
	case yaml.SequenceNode:
		items := make([]models.Value, 0, len(node.Content))
		for _, child := range node.Content {
			val, err := valueFromNode(child)
			if err != nil {
				return models.Value{}, err
			}
			items = append(items, val)
		}
		return models.Array(items...), nil
	case yaml.ScalarNode:
		return scalarFromNode(node)
	default:
		return models.Value{}, fmt.Errorf("%w: unsupported node kind %d at line %d", errors.ErrInvalidYAML, node.Kind, node.Line)
	}
}

// mergeYAMLInto applies a "<<" merge key: entries from the referenced
// mapping(s) are added unless already present.
func mergeYAMLInto(obj *models.Object, node *yaml.Node) error {
	sources := []*yaml.Node{node}
	if node.Kind == yaml.SequenceNode {
		sources = node.Content
	}
	for _, src := range sources {
		val, err := valueFromNode(src)
		if err != nil {
			return err
		}
		merged, ok := val.AsObject()
		if !ok {
			return fmt.Errorf("%w: merge key at line %d does not reference a mapping", errors.ErrInvalidYAML, node.Line)
		}
		for k, v := range merged.All() {
			if !obj.Has(k) {
				obj.Set(k, v)
			}
		}
	}
	return nil
}

func scalarFromNode(node *yaml.Node) (models.Value, error) {
	switch node.ShortTag() {
	case "!!null":
		return models.Null(), nil
	case "!!bool":
		var b bool
		if err := node.Decode(&b); err != nil {
			return models.Value{}, fmt.Errorf("%w: %v", errors.ErrInvalidYAML, err)
		}
		return models.Bool(b), nil
	case "!!int":
		var i int64
		if err := node.Decode(&i); err != nil {
			// Out of range for int64: keep the digits as written.
			return models.Number(node.Value), nil
		}
		return models.Int(i), nil
	case "!!float":
		var f float64
		if err := node.Decode(&f); err != nil {
			return models.Value{}, fmt.Errorf("%w: %v", errors.ErrInvalidYAML, err)
		}
		if math.IsInf(f, 0) || math.IsNaN(f) {
			// No JSON number can hold these.
			return models.String(node.Value), nil
		}
		return models.Float(f), nil
	default:
		// Strings, timestamps, binary and custom tags keep their text.
		return models.String(node.Value), nil
	}
}
