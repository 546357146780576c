package report

import (
	"io"

	"github.com/nao1215/sitescout/internal/model"
)

// JSONWriter outputs reports in JSON format for tool integration and
// programmatic processing.
//
// Design decision: We use standard encoding/json rather than a
// third-party JSON library because it's part of the standard library
// and sufficient for our needs.
type JSONWriter struct {
	baseWriter

	// pretty enables indented JSON output.
	pretty bool
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithPrettyPrint enables indented JSON output.
func WithPrettyPrint() JSONWriterOption {
	return func(w *JSONWriter) {
		w.pretty = true
	}
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs the report in JSON format.
func (w *JSONWriter) Write(report *model.ScanReport) (int, error) {
	data, err := report.JSON(w.pretty)
	if err != nil {
		return 0, err
	}
	data = append(data, '\n')
	return w.output.Write(data)
}
