package document

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/schemasync/schemasync/pkg/schema"
)

// Format selects a textual rendering of a document.
type Format string

const (
	// FormatYAML is the default rendering.
	FormatYAML Format = "yaml"

	// FormatXML is the element-per-field rendering used by .config files.
	FormatXML Format = "xml"
)

// Validate checks if the format is known.
func (f Format) Validate() error {
	switch f {
	case FormatYAML, FormatXML:
		return nil
	default:
		return fmt.Errorf("invalid document format: %q", string(f))
	}
}

// Ext returns the file extension used for the format.
func (f Format) Ext() string {
	if f == FormatXML {
		return ".config"
	}
	return ".yaml"
}

// FormatFromPath infers the format from a file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".config", ".xml":
		return FormatXML, nil
	default:
		return "", fmt.Errorf("unrecognised document extension: %s", path)
	}
}

// Encode writes doc to w in the given format.
func Encode(w io.Writer, doc *Document, format Format) error {
	if doc == nil {
		return fmt.Errorf("document is nil")
	}
	if err := doc.Kind.Validate(); err != nil {
		return err
	}

	switch format {
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("failed to encode yaml: %w", err)
		}
		return enc.Close()

	case FormatXML:
		out := xmlView(doc)
		enc := xml.NewEncoder(w)
		enc.Indent("", "  ")
		if err := enc.Encode(out); err != nil {
			return fmt.Errorf("failed to encode xml: %w", err)
		}
		if err := enc.Flush(); err != nil {
			return err
		}
		_, err := io.WriteString(w, "\n")
		return err

	default:
		return format.Validate()
	}
}

// Decode reads a document in the given format from r.
func Decode(r io.Reader, format Format) (*Document, error) {
	doc := &Document{}

	switch format {
	case FormatYAML:
		dec := yaml.NewDecoder(r)
		dec.KnownFields(true)
		if err := dec.Decode(doc); err != nil {
			return nil, fmt.Errorf("failed to decode yaml: %w", err)
		}

	case FormatXML:
		if err := xml.NewDecoder(r).Decode(doc); err != nil {
			return nil, fmt.Errorf("failed to decode xml: %w", err)
		}
		doc.Kind = schema.Kind(doc.XMLName.Local)
		if doc.Structure != nil {
			for i := range doc.Structure.Entries {
				doc.Structure.Entries[i].Alias = strings.TrimSpace(doc.Structure.Entries[i].Alias)
				doc.Structure.Entries[i].XMLName = xml.Name{}
			}
		}

	default:
		return nil, format.Validate()
	}

	if err := doc.Kind.Validate(); err != nil {
		return nil, err
	}
	doc.XMLName = xml.Name{}
	return doc, nil
}

// Marshal renders doc into a byte slice.
func Marshal(doc *Document, format Format) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, doc, format); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Unmarshal parses a document from data.
func Unmarshal(data []byte, format Format) (*Document, error) {
	return Decode(bytes.NewReader(data), format)
}

// ReadFile decodes the document at path, inferring the format.
func ReadFile(path string) (*Document, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open document: %w", err)
	}
	defer f.Close()

	doc, err := Decode(f, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

// WriteFile encodes doc to path, creating parent directories as needed.
func WriteFile(path string, doc *Document) error {
	format, err := FormatFromPath(path)
	if err != nil {
		return err
	}

	data, err := Marshal(doc, format)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write document: %w", err)
	}
	return nil
}

// xmlView returns a shallow copy with element names filled in from the kind.
func xmlView(doc *Document) *Document {
	out := *doc
	out.XMLName = xml.Name{Local: doc.Kind.String()}
	if doc.Structure != nil {
		entries := make([]StructureRef, len(doc.Structure.Entries))
		for i, e := range doc.Structure.Entries {
			e.XMLName = xml.Name{Local: doc.Kind.String()}
			entries[i] = e
		}
		out.Structure = &StructureSection{Entries: entries}
	}
	return &out
}
