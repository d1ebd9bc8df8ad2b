package parser

import (
	"bytes"
	stderrors "errors" // Standard errors package
	"fmt"
	"io"
	"os"
	"strings"

	gojson "github.com/goccy/go-json"

	"github.com/mcncl/jsonflat/internal/errors" // Custom errors package
	"github.com/mcncl/jsonflat/internal/models"
)

// Format names an input encoding.
type Format string

const (
	FormatJSON   Format = "json"
	FormatNDJSON Format = "ndjson"
	FormatYAML   Format = "yaml"
)

// ParseFormat converts a format name into a Format. An empty name means JSON.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case FormatJSON, "":
		return FormatJSON, nil
	case FormatNDJSON, "jsonl":
		return FormatNDJSON, nil
	case FormatYAML, "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("%w: input format %q", errors.ErrUnsupportedFormat, s)
	}
}

// Parse converts JSON data from an io.Reader into an IntermediateRepresentation.
// Object keys keep the order in which they appear in the input.
func Parse(reader io.Reader) (models.IntermediateRepresentation, error) {
	decoder := newDecoder(reader)

	rootValue, err := readValue(decoder)
	if err != nil {
		if stderrors.Is(err, io.EOF) { // io.EOF means empty input if nothing was decoded
			return models.IntermediateRepresentation{}, errors.NewParsingError("input is empty or contains only whitespace", errors.ErrEmptyInput)
		}
		return models.IntermediateRepresentation{}, wrapDecodeError(err)
	}

	// Check for trailing data after the first JSON value. Only a second
	// well-formed value counts as multiple roots; anything else, such as
	// a stray closing delimiter, is a syntax error.
	var trailing gojson.RawMessage
	if err := decoder.Decode(&trailing); err == nil && gojson.Valid(trailing) {
		return models.IntermediateRepresentation{}, errors.NewParsingError("multiple JSON values found at the root", errors.ErrMultipleJSON)
	} else if err == nil || !stderrors.Is(err, io.EOF) {
		return models.IntermediateRepresentation{}, errors.NewParsingError(
			fmt.Sprintf("invalid trailing data after first JSON value at offset %d", decoder.InputOffset()),
			errors.ErrInvalidJSON,
		)
	}

	return newRepresentation(rootValue), nil
}

// ParseString parses JSON from a string
func ParseString(jsonString string) (models.IntermediateRepresentation, error) {
	// An empty reader gives io.EOF to the decoder but a whitespace-only
	// string is rejected here with a clearer message.
	if strings.TrimSpace(jsonString) == "" {
		return models.IntermediateRepresentation{}, errors.NewInputError("input string is empty", errors.ErrEmptyInput)
	}
	return Parse(strings.NewReader(jsonString))
}

// ParseEach reads every record of the stream and hands it to fn, one at a
// time, so large inputs never need to be held in memory at once. JSON
// yields exactly one record, NDJSON one per value and YAML one per
// document. Iteration stops at the first error returned by fn.
func ParseEach(reader io.Reader, format Format, fn func(models.Value) error) error {
	switch format {
	case FormatJSON, "":
		ir, err := Parse(reader)
		if err != nil {
			return err
		}
		return fn(ir.Root)
	case FormatNDJSON:
		return parseStream(reader, fn)
	case FormatYAML:
		return parseYAMLStream(reader, fn)
	default:
		return errors.NewInputError(fmt.Sprintf("unknown input format %q", format), errors.ErrUnsupportedFormat)
	}
}

// ParseFileEach opens filePath and streams its records through ParseEach.
func ParseFileEach(filePath string, format Format, fn func(models.Value) error) error {
	file, err := openInput(filePath)
	if err != nil {
		return err
	}
	defer closeInput(file)

	return ParseEach(file, format, fn)
}

func parseStream(reader io.Reader, fn func(models.Value) error) error {
	decoder := newDecoder(reader)
	count := 0
	for {
		value, err := readValue(decoder)
		if stderrors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return wrapDecodeError(fmt.Errorf("record %d: %w", count+1, err))
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

func newDecoder(reader io.Reader) *gojson.Decoder {
	decoder := gojson.NewDecoder(reader)
	decoder.UseNumber() // Numbers keep their literal
	return decoder
}

// readValue reads the next complete value from the stream. The token
// stream does not check commas or colons, so the raw bytes of the value
// are validated first and then walked token by token to keep key order.
func readValue(decoder *gojson.Decoder) (models.Value, error) {
	start := decoder.InputOffset()
	var raw gojson.RawMessage
	if err := decoder.Decode(&raw); err != nil {
		return models.Value{}, err
	}
	if !gojson.Valid(raw) {
		return models.Value{}, fmt.Errorf("%w: malformed value starting near offset %d", errors.ErrInvalidJSON, start)
	}
	return nextValue(newDecoder(bytes.NewReader(raw)))
}

// nextValue builds the next value from the decoder's token stream.
func nextValue(decoder *gojson.Decoder) (models.Value, error) {
	tok, err := decoder.Token()
	if err != nil {
		return models.Value{}, err
	}
	return valueFromToken(decoder, tok)
}

func valueFromToken(decoder *gojson.Decoder, tok gojson.Token) (models.Value, error) {
	switch t := tok.(type) {
	case gojson.Delim:
		switch t {
		case '{':
			obj := models.NewObject()
			for decoder.More() {
				keyTok, err := decoder.Token()
				if err != nil {
					return models.Value{}, noEOF(err)
				}
				key, ok := keyTok.(string)
				if !ok {
					return models.Value{}, fmt.Errorf("%w: object key is %T", errors.ErrInvalidJSON, keyTok)
				}
				val, err := nextValue(decoder)
				if err != nil {
					return models.Value{}, noEOF(err)
				}
				obj.Set(key, val)
			}
			if err := expectDelim(decoder, '}'); err != nil {
				return models.Value{}, err
			}
			return models.ObjectValue(obj), nil
		case '[':
			items := []models.Value{}
			for decoder.More() {
				val, err := nextValue(decoder)
				if err != nil {
					return models.Value{}, noEOF(err)
				}
				items = append(items, val)
			}
			if err := expectDelim(decoder, ']'); err != nil {
				return models.Value{}, err
			}
			return models.Array(items...), nil
		default:
			return models.Value{}, fmt.Errorf("%w: unexpected delimiter %q", errors.ErrInvalidJSON, rune(t))
		}
	case string:
		return models.String(t), nil
	case bool:
		return models.Bool(t), nil
	case gojson.Number:
		return models.Number(t.String()), nil
	case float64:
		return models.Float(t), nil
	case nil:
		return models.Null(), nil
	default:
		return models.Value{}, fmt.Errorf("%w: unexpected token %T", errors.ErrInvalidJSON, tok)
	}
}

func expectDelim(decoder *gojson.Decoder, want gojson.Delim) error {
	tok, err := decoder.Token()
	if err != nil {
		return noEOF(err)
	}
	if d, ok := tok.(gojson.Delim); !ok || d != want {
		return fmt.Errorf("%w: expected %q", errors.ErrInvalidJSON, rune(want))
	}
	return nil
}

// noEOF turns an EOF inside a value into a syntax problem; EOF is only
// legitimate between values.
func noEOF(err error) error {
	if stderrors.Is(err, io.EOF) {
		return fmt.Errorf("%w: unexpected end of input", errors.ErrInvalidJSON)
	}
	return err
}

func wrapDecodeError(err error) error {
	var syntaxError *gojson.SyntaxError
	if stderrors.As(err, &syntaxError) {
		return errors.NewParsingError(
			fmt.Sprintf("JSON syntax error at offset %d", syntaxError.Offset),
			errors.ErrInvalidJSON,
		)
	}
	if stderrors.Is(err, errors.ErrInvalidJSON) {
		return errors.NewParsingError("failed to parse JSON", err)
	}
	return errors.NewParsingError("failed to parse JSON", fmt.Errorf("%w: %v", errors.ErrInvalidJSON, err))
}

func newRepresentation(root models.Value) models.IntermediateRepresentation {
	return models.IntermediateRepresentation{
		Root:        root,
		RootIsArray: root.Kind() == models.ArrayKind,
	}
}

func openInput(filePath string) (*os.File, error) {
	if strings.TrimSpace(filePath) == "" {
		return nil, errors.NewInputError("file path is empty", errors.ErrInvalidFilePath)
	}
	file, err := os.Open(filePath)
	if err != nil {
		// Check if the file doesn't exist
		if os.IsNotExist(err) {
			return nil, errors.NewInputError(
				fmt.Sprintf("file '%s' not found", filePath),
				errors.ErrFileNotFound,
			)
		}
		return nil, errors.NewInputError(
			fmt.Sprintf("failed to open file '%s'", filePath),
			err,
		)
	}

	// Check for empty file before parsing
	stat, err := file.Stat()
	if err != nil {
		closeInput(file)
		return nil, errors.NewInputError(
			fmt.Sprintf("failed to get file stats for '%s'", filePath),
			err,
		)
	}
	if stat.Size() == 0 {
		closeInput(file)
		return nil, errors.NewInputError(
			fmt.Sprintf("input file '%s' is empty", filePath),
			errors.ErrFileEmpty,
		)
	}
	return file, nil
}

func closeInput(file *os.File) {
	if err := file.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Error closing file: %v\n", err)
	}
}
