// Package report renders a post-run HTML summary of a pipeline
// trigger to a fixed filesystem path.
package report

import (
	"html/template"
	"os"
	"path/filepath"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/localci/rlci/internal/events"
	"github.com/localci/rlci/internal/model"
)

// DefaultPath is where the latest run's report lands. The path is the
// only compatibility point; the HTML itself carries no schema promise.
const DefaultPath = "/opt/rlci/html/index.html"

// Run is the data a report is rendered from: one pipeline trigger's
// outcome and the StageCommands it produced, in order.
type Run struct {
	PipelineName  string
	Success       bool
	StageCommands []model.StageCommand
}

// Writer renders a Run to the report path. A write failure is logged
// and otherwise swallowed: the report is a convenience, not a source
// of truth.
type Writer interface {
	Write(run Run)
}

// FileWriter is the production Writer, rendering to Path via
// html/template. It emits a WRITE_FILE event naming the path before
// touching the filesystem.
type FileWriter struct {
	Path string
	Sink events.Sink
}

// New returns a FileWriter targeting DefaultPath.
func New(sink events.Sink) *FileWriter {
	return &FileWriter{Path: DefaultPath, Sink: sink}
}

var funcs = template.FuncMap{
	"returnCode": func(code *int) string {
		if code == nil {
			return "-"
		}
		return strconv.Itoa(*code)
	},
}

var tmpl = template.Must(template.New("report").Funcs(funcs).Parse(`<!DOCTYPE html>
<html>
<head><title>{{.PipelineName}} report</title></head>
<body>
<h1>{{.PipelineName}}</h1>
<p>Status: {{if .Success}}OK{{else}}FAILED{{end}}</p>
<table border="1">
<tr><th>Command</th><th>Return code</th><th>Output</th></tr>
{{range .StageCommands}}
<tr>
<td>{{range .Command}}{{.}} {{end}}</td>
<td>{{returnCode .ReturnCode}}</td>
<td><pre>{{range .Output}}{{.}}
{{end}}</pre></td>
</tr>
{{end}}
</table>
</body>
</html>
`))

func (w *FileWriter) Write(run Run) {
	if w.Sink != nil {
		w.Sink.Emit(events.KindWriteFile, w.Path)
	}

	if err := os.MkdirAll(filepath.Dir(w.Path), 0o755); err != nil {
		log.Error().Err(err).Str("path", w.Path).Msg("report: failed to create report directory")
		return
	}

	f, err := os.Create(w.Path)
	if err != nil {
		log.Error().Err(err).Str("path", w.Path).Msg("report: failed to create report file")
		return
	}
	defer f.Close()

	if err := tmpl.Execute(f, run); err != nil {
		log.Error().Err(err).Str("path", w.Path).Msg("report: failed to render report")
	}
}
