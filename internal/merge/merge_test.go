package merge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcncl/jsonflat/internal/config"
	"github.com/mcncl/jsonflat/internal/errors"
	"github.com/mcncl/jsonflat/internal/models"
	"github.com/mcncl/jsonflat/internal/parser"
)

// flat parses a JSON object literal into a mapping.
func flat(t *testing.T, jsonStr string) *models.Object {
	t.Helper()
	ir, err := parser.ParseString(jsonStr)
	require.NoError(t, err)
	obj, ok := ir.Root.AsObject()
	require.True(t, ok, "test input must be an object")
	return obj
}

func TestByIndex_TransposesArrays(t *testing.T) {
	m := flat(t, `{"col1": ["i1", "i2", "i3"], "col2": ["j1", "j2", "j3"]}`)

	out, err := ByIndex(m, Spec{{Name: "merged", Columns: []string{"col1", "col2"}}})
	require.NoError(t, err)

	assert.Equal(t, `{"merged":[["i1","j1"],["i2","j2"],["i3","j3"]]}`, models.ObjectValue(out).String())
	// The input is left untouched
	assert.Equal(t, []string{"col1", "col2"}, m.Keys())
}

func TestByIndex_ScalarStrings(t *testing.T) {
	m := flat(t, `{"col1": "abc", "col2": "def"}`)

	out, err := ByIndex(m, Spec{{Name: "merged", Columns: []string{"col1", "col2"}}})
	require.NoError(t, err)

	assert.Equal(t, `{"merged":[["abc","def"]]}`, models.ObjectValue(out).String())
}

func TestByIndex_UnevenLengths(t *testing.T) {
	m := flat(t, `{"col1": ["i1", "i2", "i3"], "col2": ["j1", "j2"], "other": 1}`)

	out, err := ByIndex(m, Spec{{Name: "merged", Columns: []string{"col1", "col2"}}})
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrUnevenLength)
	assert.Nil(t, out)
	// No partial result leaks into the caller's mapping
	assert.False(t, m.Has("merged"))
	assert.Equal(t, []string{"col1", "col2", "other"}, m.Keys())
}

func TestByIndex_InconsistentTypes(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"array and string", `{"a": ["x"], "b": "y"}`},
		{"numbers", `{"a": 1, "b": 2}`},
		{"string and bool", `{"a": "x", "b": true}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ByIndex(flat(t, tt.input), Spec{{Name: "m", Columns: []string{"a", "b"}}})
			assert.ErrorIs(t, err, errors.ErrInconsistentColumnType)
		})
	}
}

func TestByIndex_OnlyPresentColumnsTakePart(t *testing.T) {
	m := flat(t, `{"keep": 1, "col1": ["a", "b"], "col3": ["c", "d"]}`)

	out, err := ByIndex(m, Spec{{Name: "merged", Columns: []string{"col1", "col2", "col3"}}})
	require.NoError(t, err)

	assert.Equal(t, `{"keep":1,"merged":[["a","c"],["b","d"]]}`, models.ObjectValue(out).String())
}

func TestByIndex_NoPresentColumns(t *testing.T) {
	m := flat(t, `{"keep": 1}`)

	out, err := ByIndex(m, Spec{{Name: "merged", Columns: []string{"x", "y"}}})
	require.NoError(t, err)

	assert.Equal(t, `{"keep":1}`, models.ObjectValue(out).String())
}

func TestByIndex_SingleColumn(t *testing.T) {
	out, err := ByIndex(flat(t, `{"a": [1, null]}`), Spec{{Name: "m", Columns: []string{"a"}}})
	require.NoError(t, err)
	assert.Equal(t, `{"m":[[1],[null]]}`, models.ObjectValue(out).String())
}

func TestByIndex_RulesApplyInOrder(t *testing.T) {
	m := flat(t, `{"a": ["1", "2"], "b": ["3", "4"], "c": "x", "d": "y"}`)

	out, err := ByIndex(m, Spec{
		{Name: "ab", Columns: []string{"a", "b"}},
		{Name: "cd", Columns: []string{"c", "d"}},
	})
	require.NoError(t, err)

	assert.Equal(t, `{"ab":[["1","3"],["2","4"]],"cd":[["x","y"]]}`, models.ObjectValue(out).String())
}

func TestByIndex_NameIsAlsoASourceColumn(t *testing.T) {
	m := flat(t, `{"a": ["1", "2"], "b": ["3", "4"], "keep": 1}`)

	out, err := ByIndex(m, Spec{{Name: "a", Columns: []string{"a", "b"}}})
	require.NoError(t, err)

	// The merged value lands under "a" and is then removed with the sources
	assert.Equal(t, `{"keep":1}`, models.ObjectValue(out).String())
	assert.Equal(t, []string{"a", "b", "keep"}, m.Keys())
}

func TestSimple_DeduplicatesInOrder(t *testing.T) {
	m := flat(t, `{"a": [1, 2, 3], "b": [2, 3, 4]}`)

	out := Simple(m, Spec{{Name: "m", Columns: []string{"a", "b"}}})

	assert.Equal(t, `{"m":[1,2,3,4]}`, models.ObjectValue(out).String())
	assert.Equal(t, []string{"a", "b"}, m.Keys())
}

func TestSimple_ScalarsAndNestedArrays(t *testing.T) {
	m := flat(t, `{"x": "red", "y": ["blue", "red"], "z": [["p", "q"], "blue"], "w": "green"}`)

	out := Simple(m, Spec{{Name: "colours", Columns: []string{"x", "y", "z", "missing"}}})

	// Nested arrays are kept as single elements; only one level is spliced
	assert.Equal(t, `{"w":"green","colours":["red","blue",["p","q"]]}`, models.ObjectValue(out).String())
}

func TestSimple_DropsRepeatsWithinAColumn(t *testing.T) {
	out := Simple(flat(t, `{"a": [1, 1, 2], "b": 1}`), Spec{{Name: "m", Columns: []string{"a", "b"}}})
	assert.Equal(t, `{"m":[1,2]}`, models.ObjectValue(out).String())
}

func TestSimple_NoPresentColumns(t *testing.T) {
	out := Simple(flat(t, `{"keep": true}`), Spec{{Name: "m", Columns: []string{"a"}}})
	assert.Equal(t, `{"keep":true}`, models.ObjectValue(out).String())
}

func TestSimple_NameIsAlsoASourceColumn(t *testing.T) {
	out := Simple(flat(t, `{"tags": ["x"], "more": ["y"], "keep": 1}`),
		Spec{{Name: "tags", Columns: []string{"tags", "more"}}})

	// The merged value lands under "tags" and is then removed with the sources
	assert.Equal(t, `{"keep":1}`, models.ObjectValue(out).String())
}

func TestParseRule(t *testing.T) {
	rule, err := ParseRule(" phones = phones_type, phones_number ,")
	require.NoError(t, err)
	assert.Equal(t, Rule{Name: "phones", Columns: []string{"phones_type", "phones_number"}}, rule)

	for _, bad := range []string{"", "novalue", "=a,b", "name=", "name= , "} {
		_, err := ParseRule(bad)
		assert.ErrorIs(t, err, errors.ErrInvalidMergeRule, "input %q", bad)
	}
}

func TestSpecFromConfig(t *testing.T) {
	rules := []config.MergeRule{{Name: "m", Columns: []string{"a", "b"}}}
	spec := SpecFromConfig(rules)
	require.Len(t, spec, 1)
	assert.Equal(t, Rule{Name: "m", Columns: []string{"a", "b"}}, spec[0])

	// The spec owns its column list
	rules[0].Columns[0] = "changed"
	assert.Equal(t, "a", spec[0].Columns[0])

	assert.Equal(t, config.MergeRule{Name: "m", Columns: []string{"a", "b"}}, spec[0].ToConfig())
}
