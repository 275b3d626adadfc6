package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// DefaultConfig renders a commented workspace file for name.
func DefaultConfig(name string) string {
	ws := DefaultWorkspace()
	if name != "" {
		ws.Name = name
	}

	var b strings.Builder
	b.WriteString("// schemasync workspace\n")
	b.WriteString("workspace: {\n")
	fmt.Fprintf(&b, "\tname: %s\n", strconv.Quote(ws.Name))
	b.WriteString("\n\t// Live model database, relative to this file.\n")
	fmt.Fprintf(&b, "\tstore: path: %s\n", strconv.Quote(ws.Store.Path))
	b.WriteString("\n\tsync: {\n")
	b.WriteString("\t\t// Document directory, relative to this file.\n")
	fmt.Fprintf(&b, "\t\tdir:        %s\n", strconv.Quote(ws.Sync.Dir))
	fmt.Fprintf(&b, "\t\tformat:     %s // or \"xml\"\n", strconv.Quote(ws.Sync.Format))
	b.WriteString("\t\tsinglePass: false\n")
	fmt.Fprintf(&b, "\t\tdebounce:   %s\n", strconv.Quote(ws.Sync.Debounce))
	b.WriteString("\t}\n")
	b.WriteString("\n\ttelemetry: {\n")
	fmt.Fprintf(&b, "\t\tlogLevel:  %s\n", strconv.Quote(ws.Telemetry.LogLevel))
	fmt.Fprintf(&b, "\t\tlogFormat: %s\n", strconv.Quote(ws.Telemetry.LogFormat))
	fmt.Fprintf(&b, "\t\tmetrics: {enabled: false, address: %s}\n", strconv.Quote(ws.Telemetry.Metrics.Address))
	fmt.Fprintf(&b, "\t\ttracing: {enabled: false, exporter: %s}\n", strconv.Quote(ws.Telemetry.Tracing.Exporter))
	b.WriteString("\t}\n")
	b.WriteString("}\n")
	return b.String()
}

// WriteDefault writes DefaultConfig to dir/DefaultFileName. It refuses to
// overwrite an existing file unless force is set.
func WriteDefault(dir, name string, force bool) (string, error) {
	path := filepath.Join(dir, DefaultFileName)
	if !force {
		if _, err := os.Stat(path); err == nil {
			return "", fmt.Errorf("%s already exists", path)
		} else if !errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("failed to check %s: %w", path, err)
		}
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(DefaultConfig(name)), 0o644); err != nil {
		return "", fmt.Errorf("failed to write workspace file: %w", err)
	}
	return path, nil
}
