package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/nimburion/docstream/pkg/docstore"
	"github.com/nimburion/docstream/pkg/document"
)

type outputFormat string

const (
	formatJSON outputFormat = "json"
	formatYAML outputFormat = "yaml"
)

func parseOutputFormat(raw string) (outputFormat, error) {
	switch outputFormat(strings.ToLower(strings.TrimSpace(raw))) {
	case "", formatJSON:
		return formatJSON, nil
	case formatYAML, "yml":
		return formatYAML, nil
	default:
		return "", fmt.Errorf("invalid output format %q (valid: json, yaml)", raw)
	}
}

// print writes v to the command output in the selected format.
func (a *app) print(cmd *cobra.Command, v any) error {
	format, err := parseOutputFormat(a.flags.output)
	if err != nil {
		return err
	}
	return writeValue(cmd.OutOrStdout(), format, v)
}

func writeValue(w io.Writer, format outputFormat, v any) error {
	if format == formatYAML {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("marshal output: %w", err)
		}
		return enc.Close()
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("marshal output: %w", err)
	}
	return nil
}

// parseObject decodes a JSON object argument. An empty argument is an empty object.
func parseObject(what, raw string) (map[string]any, error) {
	if strings.TrimSpace(raw) == "" {
		return map[string]any{}, nil
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(raw), &obj); err != nil {
		return nil, fmt.Errorf("%w: %s must be a JSON object: %v", docstore.ErrValidation, what, err)
	}
	if obj == nil {
		return nil, fmt.Errorf("%w: %s must be a JSON object", docstore.ErrValidation, what)
	}
	return obj, nil
}

func parseFilter(args []string, i int) (document.Filter, error) {
	if len(args) <= i {
		return document.Filter{}, nil
	}
	obj, err := parseObject("filter", args[i])
	return document.Filter(obj), err
}

// readDocuments reads a JSON object or array of objects from path, "-" meaning in.
func readDocuments(path string, in io.Reader) ([]document.Document, error) {
	var raw []byte
	var err error
	if path == "-" {
		raw, err = io.ReadAll(in)
	} else {
		raw, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read documents: %w", err)
	}
	trimmed := strings.TrimSpace(string(raw))
	if strings.HasPrefix(trimmed, "[") {
		var docs []document.Document
		if err := json.Unmarshal([]byte(trimmed), &docs); err != nil {
			return nil, fmt.Errorf("%w: documents must be JSON objects: %v", docstore.ErrValidation, err)
		}
		return docs, nil
	}
	obj, err := parseObject("document", trimmed)
	if err != nil {
		return nil, err
	}
	return []document.Document{obj}, nil
}

type itemFailure struct {
	Index int    `json:"index" yaml:"index"`
	ID    string `json:"_id,omitempty" yaml:"_id,omitempty"`
	Error string `json:"error" yaml:"error"`
}

func failuresOf(items []docstore.ItemError) []itemFailure {
	out := make([]itemFailure, 0, len(items))
	for _, item := range items {
		out = append(out, itemFailure{Index: item.Index, ID: item.ID, Error: item.Err.Error()})
	}
	return out
}

// batchError reports partial failure after the result has been printed.
func batchError(op string, failed, total int) error {
	if failed == 0 {
		return nil
	}
	return fmt.Errorf("%s: %d of %d documents failed", op, failed, total)
}
