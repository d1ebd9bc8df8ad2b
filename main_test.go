package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	gojson "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcncl/jsonflat/internal/config"
	"github.com/mcncl/jsonflat/internal/errors"
	"github.com/mcncl/jsonflat/internal/logger"
	"github.com/mcncl/jsonflat/internal/models"
	"github.com/mcncl/jsonflat/internal/parser"
)

// writeTemp creates a file with the given content in a test directory
func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// runWith runs the pipeline on input with cfg and returns what was written
func runWith(t *testing.T, input string, cfg *config.Config) (string, error) {
	t.Helper()

	// Save original CLI state
	originalCLI := CLI
	defer func() { CLI = originalCLI }()

	CLI.Input = writeTemp(t, "input.json", input)
	CLI.Output = filepath.Join(t.TempDir(), "output")

	if err := run(&Context{Config: cfg}); err != nil {
		return "", err
	}
	content, err := os.ReadFile(CLI.Output)
	require.NoError(t, err)
	return string(content), nil
}

// runSample runs the pipeline on a file from testdata/samples
func runSample(t *testing.T, sample string, cfg *config.Config) string {
	t.Helper()

	originalCLI := CLI
	defer func() { CLI = originalCLI }()

	CLI.Input = filepath.Join("testdata", "samples", sample)
	CLI.Output = filepath.Join(t.TempDir(), "output")
	require.NoError(t, run(&Context{Config: cfg}))

	content, err := os.ReadFile(CLI.Output)
	require.NoError(t, err)
	return string(content)
}

func TestRun_SampleOrders(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Output.Format = "ndjson"

	assert.Equal(t,
		`{"order_id":"A-1001","placed_at":"2024-03-02T10:15:00Z",`+
			`"customer_name":"Ada","customer_address_city":"Perth","customer_address_postcode":"6000",`+
			`"lines_sku":"P-1","lines_qty":2,"lines_price":9.5,"lines_sku_1":"P-2","lines_qty_1":1,`+
			`"lines_discount_1_code":"SPRING"}`+"\n",
		runSample(t, "orders.json", cfg))

	cfg.Mode = "invert"
	var row map[string]any
	require.NoError(t, gojson.Unmarshal([]byte(runSample(t, "orders.json", cfg)), &row))
	assert.Equal(t, []any{"P-1", "P-2"}, row["lines_sku"])
	assert.Equal(t, []any{9.5, nil}, row["lines_price"])
	assert.Equal(t, []any{nil, "SPRING"}, row["lines_discount_code"])
}

func TestRun_SampleEvents(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Input.Format = "ndjson"
	cfg.Output.Format = "csv"

	expected := "id,kind,actor_user,meta_reason,tags\n" +
		"1,login,ada,,\n" +
		"2,logout,ada,timeout,\n" +
		`3,login,bob,,"[""mobile""]"` + "\n"
	assert.Equal(t, expected, runSample(t, "events.ndjson", cfg))
}

func TestRun_SampleServices(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Input.Format = "yaml"
	cfg.Output.Format = "json"

	var rows []map[string]any
	require.NoError(t, gojson.Unmarshal([]byte(runSample(t, "services.yaml", cfg)), &rows))
	require.Len(t, rows, 2)

	assert.Equal(t, map[string]any{
		"name":            "api",
		"deploy_replicas": float64(3),
		"deploy_region":   "ap-southeast-2",
		"ports":           []any{float64(8080), float64(9090)},
	}, rows[0])
	assert.Equal(t, map[string]any{
		"name":            "worker",
		"base_replicas":   float64(2),
		"base_region":     "ap-southeast-2",
		"deploy_replicas": float64(1),
		"deploy_region":   "ap-southeast-2",
	}, rows[1])
}

func TestRun_Flatten(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Output.Format = "ndjson"

	out, err := runWith(t, `{"name": "John", "address": {"city": "Perth"}, "tags": null}`, cfg)
	require.NoError(t, err)
	assert.Equal(t, `{"name":"John","address_city":"Perth"}`+"\n", out)
}

func TestRun_Invert(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Mode = "invert"
	cfg.Output.Format = "ndjson"

	out, err := runWith(t, `{"users": [{"id": 1}, {"id": 2, "name": "b"}]}`, cfg)
	require.NoError(t, err)
	assert.Equal(t, `{"users_id":[1,2],"users_name":[null,"b"]}`+"\n", out)
}

func TestRun_MergeRules(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Mode = "invert"
	cfg.Output.Format = "ndjson"
	cfg.Merge.ByIndex = []config.MergeRule{{Name: "phones", Columns: []string{"phones_type", "phones_number"}}}
	cfg.Merge.Simple = []config.MergeRule{{Name: "tags", Columns: []string{"tags_a", "tags_b"}}}

	input := `{
		"phones": [{"type": "home", "number": "1"}, {"type": "work", "number": "2"}],
		"tags": {"a": ["x", "y"], "b": ["y", "z"]}
	}`
	out, err := runWith(t, input, cfg)
	require.NoError(t, err)
	assert.Equal(t, `{"phones":[["home","1"],["work","2"]],"tags":["x","y","z"]}`+"\n", out)
}

func TestRun_MergeError(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Mode = "invert"
	cfg.Merge.ByIndex = []config.MergeRule{{Name: "m", Columns: []string{"a", "b"}}}

	_, err := runWith(t, `{"a": ["1", "2"], "b": ["3"]}`, cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrUnevenLength)
	assert.Contains(t, errors.UserFriendlyError(err), "Merge error")
}

func TestRun_RecordsSplitRootArray(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Input.Records = true
	cfg.Output.Format = "csv"

	out, err := runWith(t, `[{"id": 1, "meta": {"ok": true}}, {"id": 2, "extra": "x"}, 3]`, cfg)
	require.NoError(t, err)
	assert.Equal(t, "id,meta_ok,extra,value\n1,true,,\n2,,x,\n,,,3\n", out)
}

func TestRun_RootArrayIsOneRecordByDefault(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Output.Format = "ndjson"

	out, err := runWith(t, `[{"id": 1}, {"id": 2}]`, cfg)
	require.NoError(t, err)
	assert.Equal(t, `{"id":1,"id_1":2}`+"\n", out)
}

func TestRun_NDJSONInput(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Input.Format = "ndjson"
	cfg.Output.Format = "ndjson"
	cfg.Output.ColumnCase = "camel"

	out, err := runWith(t, "{\"user\": {\"first_name\": \"a\"}}\n{\"user\": {\"first_name\": \"b\"}}\n", cfg)
	require.NoError(t, err)
	assert.Equal(t, `{"UserFirstName":"a"}`+"\n"+`{"UserFirstName":"b"}`+"\n", out)
}

func TestRun_HeadLines(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Input.Format = "ndjson"
	cfg.Input.Head.Lines = 2
	cfg.Output.Format = "ndjson"

	out, err := runWith(t, "{\"a\":1}\n{\"a\":2}\n{\"a\":3}\n{\"a\":", cfg)
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`+"\n"+`{"a":2}`+"\n", out)
}

func TestRun_DepthExceeded(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Normalize.MaxDepth = 3

	_, err := runWith(t, `{"a": {"b": {"c": {"d": {"e": 1}}}}}`, cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrDepthExceeded)
	assert.Contains(t, errors.UserFriendlyError(err), "Normalization error")
	assert.Contains(t, errors.UserFriendlyError(err), "maximum nesting depth exceeded")
}

func TestRun_DebugLogsRecords(t *testing.T) {
	var logs bytes.Buffer
	logger.SetOutput(&logs)
	logger.SetDebug(true)
	defer func() {
		logger.SetDebug(false)
		logger.SetOutput(os.Stderr)
	}()

	cfg := config.NewConfig()
	cfg.Output.Format = "ndjson"
	_, err := runWith(t, `{"a": {"b": 1}}`, cfg)
	require.NoError(t, err)

	assert.Contains(t, logs.String(), "[DEBUG] record 1:\n")
	assert.Contains(t, logs.String(), `[DEBUG] record 1: {"a_b":1}`)
}

func TestRun_InvalidOutputFormat(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Output.Format = "xml"

	_, err := runWith(t, `{}`, cfg)
	assert.ErrorIs(t, err, errors.ErrUnsupportedFormat)
}

func TestRun_SQLite(t *testing.T) {
	originalCLI := CLI
	defer func() { CLI = originalCLI }()

	cfg := config.NewConfig()
	cfg.Output.Format = "sqlite"
	cfg.Input.Records = true

	CLI.Input = writeTemp(t, "input.json", `[{"id": 1}, {"id": 2}]`)
	CLI.Output = filepath.Join(t.TempDir(), "out.db")
	require.NoError(t, run(&Context{Config: cfg}))

	info, err := os.Stat(CLI.Output)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))

	// sqlite writes to a file, never stdout
	CLI.Output = ""
	err = run(&Context{Config: cfg})
	assert.ErrorIs(t, err, errors.ErrInvalidFilePath)
}

func TestParseInput_FromStdin(t *testing.T) {
	// Save original CLI state and stdin
	originalCLI := CLI
	originalStdin := os.Stdin
	defer func() {
		CLI = originalCLI
		os.Stdin = originalStdin
	}()

	// Clear input file to force stdin reading
	CLI.Input = ""

	// Create a pipe to simulate stdin
	r, w, err := os.Pipe()
	require.NoError(t, err)
	_, err = w.WriteString(`[{"item": "apple"}, {"item": "banana"}]`)
	require.NoError(t, err)
	_ = w.Close()
	os.Stdin = r

	var got []models.Value
	err = parseInput(config.NewConfig(), parser.FormatJSON, func(v models.Value) error {
		got = append(got, v)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, models.ArrayKind, got[0].Kind())
}

func TestParseInput_Errors(t *testing.T) {
	originalCLI := CLI
	defer func() { CLI = originalCLI }()

	tests := []struct {
		name     string
		input    string
		expected error
	}{
		{"empty file", "", errors.ErrFileEmpty},
		{"invalid JSON", `{"name": "broken"`, errors.ErrInvalidJSON},
		{"multiple values", `{} {}`, errors.ErrMultipleJSON},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			CLI.Input = writeTemp(t, "input.json", tt.input)
			err := parseInput(config.NewConfig(), parser.FormatJSON, func(models.Value) error { return nil })
			assert.ErrorIs(t, err, tt.expected)
		})
	}

	CLI.Input = "/non/existent/file.json"
	err := parseInput(config.NewConfig(), parser.FormatJSON, func(models.Value) error { return nil })
	assert.ErrorIs(t, err, errors.ErrFileNotFound)
}

func TestOpenOutput_FileError(t *testing.T) {
	originalCLI := CLI
	defer func() { CLI = originalCLI }()

	CLI.Output = "/non/existent/dir/output.json"
	_, _, err := openOutput("json")
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(errors.UserFriendlyError(err), "Output error"))
}

func TestLoadConfig_CLIOverrides(t *testing.T) {
	originalCLI := CLI
	defer func() { CLI = originalCLI }()

	CLI.Config = writeTemp(t, "jsonflat.yml", "mode: invert\noutput:\n  format: csv\nmerge:\n  simple:\n    - name: a\n      columns: [x]\n")
	CLI.Format = "ndjson"
	CLI.Separator = "."
	CLI.MergeSimple = []string{"b=y,z"}

	cfg, err := loadConfig()
	require.NoError(t, err)

	assert.Equal(t, "invert", cfg.Mode)
	assert.Equal(t, "ndjson", cfg.Output.Format)
	assert.Equal(t, ".", cfg.SeparatorOr("_"))
	assert.Equal(t, []config.MergeRule{
		{Name: "a", Columns: []string{"x"}},
		{Name: "b", Columns: []string{"y", "z"}},
	}, cfg.Merge.Simple)

	CLI.MergeIndex = []string{"broken"}
	_, err = loadConfig()
	assert.ErrorIs(t, err, errors.ErrInvalidMergeRule)
}
