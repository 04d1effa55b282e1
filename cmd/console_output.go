package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/mitchellh/colorstring"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"

	"github.com/slinkylib/slinky/pkg/slinky"
)

// ConsoleWriter turns zerolog's JSON events into short colored lines
type ConsoleWriter struct {
	out    io.Writer
	color  colorstring.Colorize
	buffer *slinky.Str
	lock   sync.Mutex
}

func debugEnabled() bool {
	return os.Getenv("SLINKY_DEBUG") != ""
}

// NewConsoleWriter returns a writer printing to out. Colors are disabled if NO_COLOR is set.
func NewConsoleWriter(out io.Writer) *ConsoleWriter {
	_, noColor := os.LookupEnv("NO_COLOR")

	return &ConsoleWriter{
		out: out,
		color: colorstring.Colorize{
			Colors:  colorstring.DefaultColors,
			Disable: noColor,
			Reset:   true,
		},
		buffer: slinky.New(256),
	}
}

func levelColor(level interface{}) string {
	switch level {
	case "fatal", "panic", "error":
		return "[red]"
	case "warn":
		return "[yellow]"
	case "debug", "trace":
		return "[blue]"
	default:
		return "[green]"
	}
}

func (w *ConsoleWriter) Write(p []byte) (n int, err error) {
	w.lock.Lock()
	defer w.lock.Unlock()

	var evt map[string]interface{}
	d := json.NewDecoder(bytes.NewReader(p))
	d.UseNumber()
	err = d.Decode(&evt)
	if err != nil {
		return n, eris.Wrapf(err, "cannot decode event: %s", p)
	}

	buf := w.buffer.Clear()
	buf.AppendString(levelColor(evt["level"]))

	if task, ok := evt["task"].(string); ok {
		buf.AppendString(task).AppendString(": ")
	}

	switch evt["level"] {
	case "error", "fatal":
		buf.AppendString("Error: ")
	}

	msg, _ := evt["message"].(string)
	if path, ok := evt["path"].(string); ok {
		relPath, err := filepath.Rel(".", path)
		if err == nil {
			msg = strings.ReplaceAll(msg, path, relPath)
		}
	}
	if cmd, _ := evt["command"].(bool); cmd {
		msg = "$ " + msg
	}
	buf.AppendString(msg)

	if errorDetails, ok := evt["error"].(string); ok {
		buf.AppendChar('\n').AppendString(errorDetails)
	}

	if debugEnabled() {
		names := make([]string, 0, len(evt))
		for name := range evt {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			buf.AppendChar('\n').FormatQuick("  %s: ", name).AppendString(fmt.Sprintf("%+v", evt[name]))
		}
	}

	buf.AppendString("[reset]\n")
	_, err = io.WriteString(w.out, w.color.Color(buf.String()))
	if err != nil {
		return 0, err
	}
	return len(p), nil
}

func init() {
	zerolog.ErrorMarshalFunc = func(err error) interface{} {
		return eris.ToString(err, debugEnabled())
	}
}
