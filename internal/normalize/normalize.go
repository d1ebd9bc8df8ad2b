// Package normalize collapses nested tree values into single-level
// mappings suitable for tabular ingestion.
//
// Two strategies are provided. Flatten merges the elements of an array of
// objects into one object, suffixing the keys of element i (i >= 1) with
// its index. Invert turns an array of objects into one object of
// index-aligned, null-padded arrays, one per key.
//
// Neither strategy modifies its input: every call builds a fresh result.
package normalize

import (
	"fmt"
	"strconv"

	"github.com/mcncl/jsonflat/internal/config"
	"github.com/mcncl/jsonflat/internal/errors"
	"github.com/mcncl/jsonflat/internal/models"
)

const (
	// DefaultSeparator joins parent and child keys.
	DefaultSeparator = "_"
	// DefaultMaxDepth bounds the nesting depth the normalizers will descend.
	DefaultMaxDepth = 10000
)

// Mode selects a normalization strategy.
type Mode string

const (
	ModeFlatten Mode = "flatten"
	ModeInvert  Mode = "invert"
)

// ParseMode converts a mode name into a Mode.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeFlatten, "":
		return ModeFlatten, nil
	case ModeInvert:
		return ModeInvert, nil
	default:
		return "", fmt.Errorf("%w: mode %q (expected flatten or invert)", errors.ErrUnsupportedFormat, s)
	}
}

// Normalizer flattens or inverts tree values.
type Normalizer struct {
	separator string
	maxDepth  int
}

// NewNormalizer creates a Normalizer with the default separator and depth limit.
func NewNormalizer() *Normalizer {
	return &Normalizer{
		separator: DefaultSeparator,
		maxDepth:  DefaultMaxDepth,
	}
}

// NewNormalizerWithConfig creates a Normalizer using the normalize section of cfg.
func NewNormalizerWithConfig(cfg *config.Config) *Normalizer {
	n := NewNormalizer()
	if cfg == nil {
		return n
	}
	n.separator = cfg.SeparatorOr(DefaultSeparator)
	if cfg.Normalize.MaxDepth > 0 {
		n.maxDepth = cfg.Normalize.MaxDepth
	}
	return n
}

// Flatten collapses v into a single-level object. Scalars and null are
// returned as they are; arrays that are neither all objects nor all
// arrays fall through unchanged.
func (n *Normalizer) Flatten(v models.Value) (models.Value, error) {
	w := walker{sep: n.separator, maxDepth: n.maxDepth}
	return w.walk(v)
}

// Invert collapses v into a single-level object in which the contents of
// arrays of objects become index-aligned arrays per key.
func (n *Normalizer) Invert(v models.Value) (models.Value, error) {
	w := walker{sep: n.separator, maxDepth: n.maxDepth, invert: true}
	return w.walk(v)
}

// Normalize dispatches to Flatten or Invert.
func (n *Normalizer) Normalize(mode Mode, v models.Value) (models.Value, error) {
	switch mode {
	case ModeInvert:
		return n.Invert(v)
	case ModeFlatten, "":
		return n.Flatten(v)
	default:
		return models.Value{}, fmt.Errorf("%w: mode %q", errors.ErrUnsupportedFormat, mode)
	}
}

// Flatten collapses v using the default settings.
func Flatten(v models.Value) (models.Value, error) {
	return NewNormalizer().Flatten(v)
}

// Invert collapses v using the default settings.
func Invert(v models.Value) (models.Value, error) {
	return NewNormalizer().Invert(v)
}

// walker holds the settings of a single Flatten or Invert call.
type walker struct {
	sep      string
	maxDepth int
	invert   bool
}

func (w *walker) walk(v models.Value) (models.Value, error) {
	switch v.Kind() {
	case models.ObjectKind:
		obj, _ := v.AsObject()
		flat, err := w.object(obj, 0)
		if err != nil {
			return models.Value{}, err
		}
		return models.ObjectValue(flat), nil
	case models.ArrayKind:
		items, _ := v.AsArray()
		return w.array(items, 0)
	case models.NullKind, models.BoolKind, models.NumberKind, models.StringKind:
		return v, nil
	default:
		return models.Value{}, fmt.Errorf("unexpected value kind %s", v.Kind())
	}
}

func (w *walker) enter(depth int) error {
	if depth > w.maxDepth {
		return fmt.Errorf("%w: limit is %d", errors.ErrDepthExceeded, w.maxDepth)
	}
	return nil
}

// object returns a flattened copy of o. Keys are visited in the order of
// the input; the value of each key is read from the working copy, so a
// key overwritten by an earlier merge is processed in its new form.
func (w *walker) object(o *models.Object, depth int) (*models.Object, error) {
	if err := w.enter(depth); err != nil {
		return nil, err
	}

	out := models.NewObject()
	for k, child := range o.All() {
		out.Set(k, child)
	}

	for _, k := range o.Keys() {
		child, ok := out.Get(k)
		if !ok {
			continue
		}

		switch child.Kind() {
		case models.ObjectKind:
			inner, _ := child.AsObject()
			flat, err := w.object(inner, depth+1)
			if err != nil {
				return nil, err
			}
			out.Delete(k)
			w.mergePrefixed(out, k, flat)

		case models.ArrayKind:
			items, _ := child.AsArray()
			if len(items) == 0 {
				out.Delete(k)
				continue
			}
			result, err := w.array(items, depth+1)
			if err != nil {
				return nil, err
			}
			if flat, ok := result.AsObject(); ok {
				w.mergePrefixed(out, k, flat)
				out.Delete(k)
				continue
			}
			if result.Len() == 0 {
				// arrays of empty arrays concatenate to nothing
				out.Delete(k)
				continue
			}
			out.Set(k, result)

		case models.NullKind:
			out.Delete(k)

		case models.BoolKind, models.NumberKind, models.StringKind:
		}
	}
	return out, nil
}

// mergePrefixed copies the non-null entries of flat into out under
// prefix + separator + key.
func (w *walker) mergePrefixed(out *models.Object, prefix string, flat *models.Object) {
	for k, v := range flat.All() {
		if v.IsNull() {
			continue
		}
		out.Set(prefix+w.sep+k, v)
	}
}

func (w *walker) array(items []models.Value, depth int) (models.Value, error) {
	if err := w.enter(depth); err != nil {
		return models.Value{}, err
	}

	switch {
	case len(items) == 0:
		return models.Array(), nil

	case allOfKind(items, models.ObjectKind):
		if w.invert {
			return w.invertObjects(items, depth)
		}
		return w.mergeObjects(items, depth)

	case allOfKind(items, models.ArrayKind):
		var joined []models.Value
		for _, item := range items {
			inner, _ := item.AsArray()
			joined = append(joined, inner...)
		}
		return w.array(joined, depth+1)

	default:
		// Mixed or scalar arrays fall through unflattened.
		return models.Array(items...).Clone(), nil
	}
}

// mergeObjects folds every element after the first into the first one,
// suffixing its keys with the element index, then flattens the result.
// The suffix is positional: it is added whether or not the unsuffixed
// key exists.
func (w *walker) mergeObjects(items []models.Value, depth int) (models.Value, error) {
	first, _ := items[0].AsObject()
	acc := models.NewObject()
	for k, v := range first.All() {
		acc.Set(k, v)
	}

	for i := 1; i < len(items); i++ {
		obj, _ := items[i].AsObject()
		suffix := w.sep + strconv.Itoa(i)
		for k, v := range obj.All() {
			if v.IsNull() {
				continue
			}
			acc.Set(k+suffix, v)
		}
	}

	flat, err := w.object(acc, depth+1)
	if err != nil {
		return models.Value{}, err
	}
	return models.ObjectValue(flat), nil
}

// invertObjects turns an array of objects into an object of arrays, one
// per key, each as long as the input array. A single element is
// unwrapped instead.
func (w *walker) invertObjects(items []models.Value, depth int) (models.Value, error) {
	if len(items) == 1 {
		only, _ := items[0].AsObject()
		flat, err := w.object(only, depth+1)
		if err != nil {
			return models.Value{}, err
		}
		return models.ObjectValue(flat), nil
	}

	var order []string
	columns := make(map[string][]models.Value)
	for i, item := range items {
		obj, _ := item.AsObject()
		flat, err := w.object(obj, depth+1)
		if err != nil {
			return models.Value{}, err
		}
		for k, v := range flat.All() {
			column, seen := columns[k]
			if !seen {
				order = append(order, k)
			}
			columns[k] = append(padNull(column, i), v)
		}
	}

	out := models.NewObject()
	for _, k := range order {
		out.Set(k, models.Array(padNull(columns[k], len(items))...))
	}
	return models.ObjectValue(out), nil
}

// padNull extends column with nulls up to length n.
func padNull(column []models.Value, n int) []models.Value {
	for len(column) < n {
		column = append(column, models.Null())
	}
	return column
}

func allOfKind(items []models.Value, kind models.Kind) bool {
	for _, item := range items {
		if item.Kind() != kind {
			return false
		}
	}
	return true
}
