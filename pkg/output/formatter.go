// Package output provides shared output formatting for the CLI commands.
// It supports three modes:
//   - Default: human-readable text output
//   - JSON: pretty-printed JSON output
//   - Minimal JSON: single-line abbreviated JSON for token-constrained
//     consumers (an LLM reading command output through a shell tool)
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"reflect"
	"strings"
)

// Formatter handles output formatting with support for JSON and minimal modes.
type Formatter struct {
	JSON    bool
	Minimal bool
	Writer  io.Writer
}

// New creates a Formatter. A nil writer defaults to stdout.
func New(jsonOutput, minimal bool, w io.Writer) *Formatter {
	if w == nil {
		w = os.Stdout
	}
	return &Formatter{JSON: jsonOutput, Minimal: minimal, Writer: w}
}

// keyAbbreviations maps full key names to short forms for minimal JSON.
// Keys here are the json tags emitted by the evaluation and catalog types.
var keyAbbreviations = map[string]string{
	"response":            "r",
	"prompt":              "p",
	"duration_ms":         "ms",
	"tool_calls_made":     "tc",
	"tool_calls":          "calls",
	"model_name":          "model",
	"conversation_length": "len",
	"success":             "ok",
	"description":         "desc",
	"language":            "lang",
	"yaml_content":        "yaml",
	"score":               "s",
	"examples":            "ex",
	"message":             "msg",
	"error":               "err",
}

// Print outputs data according to the formatter's mode. textFunc renders the
// default human-readable form; when nil, JSON is used as the fallback.
func (f *Formatter) Print(data interface{}, textFunc func(io.Writer, interface{})) error {
	if f.JSON || textFunc == nil {
		return f.printJSON(data)
	}
	textFunc(f.Writer, data)
	return nil
}

func (f *Formatter) printJSON(data interface{}) error {
	if f.Minimal {
		encoded, err := json.Marshal(f.minimize(data))
		if err != nil {
			return err
		}
		fmt.Fprintln(f.Writer, string(encoded))
		return nil
	}
	encoded, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(f.Writer, string(encoded))
	return nil
}

// minimize rewrites a value tree with abbreviated keys and without fields an
// omitempty tag marks as droppable.
func (f *Formatter) minimize(data interface{}) interface{} {
	if data == nil {
		return nil
	}

	val := reflect.ValueOf(data)
	if val.Kind() == reflect.Ptr {
		if val.IsNil() {
			return nil
		}
		return f.minimize(val.Elem().Interface())
	}

	switch val.Kind() {
	case reflect.Struct:
		return f.minimizeStruct(val)
	case reflect.Map:
		return f.minimizeMap(val)
	case reflect.Slice, reflect.Array:
		return f.minimizeSlice(val)
	default:
		return data
	}
}

func (f *Formatter) minimizeStruct(val reflect.Value) map[string]interface{} {
	result := make(map[string]interface{})
	typ := val.Type()

	for i := 0; i < val.NumField(); i++ {
		field := val.Field(i)
		fieldType := typ.Field(i)
		if !field.CanInterface() {
			continue
		}

		jsonTag := fieldType.Tag.Get("json")
		if jsonTag == "-" {
			continue
		}

		name := fieldType.Name
		omitEmpty := false
		if jsonTag != "" {
			parts := strings.Split(jsonTag, ",")
			if parts[0] != "" {
				name = parts[0]
			}
			for _, opt := range parts[1:] {
				if opt == "omitempty" {
					omitEmpty = true
				}
			}
		}

		// Zero values stay unless the type itself marked them droppable;
		// count=0 and success=false are meaningful.
		if omitEmpty && isEmpty(field) {
			continue
		}

		result[abbreviate(name)] = f.minimize(field.Interface())
	}
	return result
}

func (f *Formatter) minimizeMap(val reflect.Value) map[string]interface{} {
	result := make(map[string]interface{})
	for _, key := range val.MapKeys() {
		keyStr := fmt.Sprintf("%v", key.Interface())
		result[abbreviate(keyStr)] = f.minimize(val.MapIndex(key).Interface())
	}
	return result
}

func (f *Formatter) minimizeSlice(val reflect.Value) []interface{} {
	result := make([]interface{}, 0, val.Len())
	for i := 0; i < val.Len(); i++ {
		result = append(result, f.minimize(val.Index(i).Interface()))
	}
	return result
}

func abbreviate(name string) string {
	if short, ok := keyAbbreviations[strings.ToLower(name)]; ok {
		return short
	}
	return name
}

func isEmpty(val reflect.Value) bool {
	if !val.IsValid() {
		return true
	}
	switch val.Kind() {
	case reflect.String:
		return val.String() == ""
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return val.Int() == 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return val.Uint() == 0
	case reflect.Float32, reflect.Float64:
		return val.Float() == 0
	case reflect.Bool:
		return !val.Bool()
	case reflect.Slice, reflect.Array, reflect.Map:
		return val.Len() == 0
	case reflect.Ptr, reflect.Interface:
		return val.IsNil()
	default:
		return false
	}
}

// PrintLine prints one key-value line; minimal mode drops empty values.
func (f *Formatter) PrintLine(key string, value interface{}) {
	if f.Minimal && isEmpty(reflect.ValueOf(value)) {
		return
	}
	fmt.Fprintf(f.Writer, "%s: %v\n", key, value)
}

// PrintError reports an error in the active mode and returns the exit code.
// JSON modes write to the formatter's writer so a parser sees the failure;
// text mode goes to stderr.
func (f *Formatter) PrintError(err error) int {
	switch {
	case f.JSON && f.Minimal:
		encoded, _ := json.Marshal(map[string]interface{}{"err": true, "msg": err.Error()})
		fmt.Fprintln(f.Writer, string(encoded))
	case f.JSON:
		encoded, _ := json.MarshalIndent(map[string]interface{}{"error": true, "message": err.Error()}, "", "  ")
		fmt.Fprintln(f.Writer, string(encoded))
	default:
		w := f.Writer
		if w == os.Stdout {
			w = os.Stderr
		}
		fmt.Fprintf(w, "Error: %v\n", err)
	}
	return 1
}
