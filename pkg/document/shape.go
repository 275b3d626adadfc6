package document

import (
	"fmt"
	"strings"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
)

const documentSchema = `
#Key:   =~"^$|^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$"
#Int:   =~"^-?[0-9]+$"
#Bool:  =~"^$|^(?i)(true|false|1|0)$"

#Document: {
	kind: "DocumentType" | "MediaType"

	info: {
		key:         #Key
		name:        string
		alias:       string & !=""
		icon:        string
		thumbnail:   string
		description: string
		allowAtRoot: #Bool
		isListView:  #Bool
		master:      string
	}

	structure?: [...{
		alias: string
		key?:  #Key
	}]

	tabs?: [...{
		caption:   string & !=""
		sortOrder: #Int
	}]

	genericProperties?: [...{
		key:          #Key
		name:         string
		alias:        string & !=""
		definition:   #Key
		type:         string
		mandatory:    #Bool
		validation?:  string
		description?: string
		sortOrder:    #Int
		tab:          string
	}]
}
`

var (
	shapeOnce   sync.Once
	shapeCtx    *cue.Context
	shapeSchema cue.Value
	shapeErr    error

	// cue.Context is not safe for concurrent use.
	shapeMu sync.Mutex
)

func loadShape() (*cue.Context, cue.Value, error) {
	shapeOnce.Do(func() {
		shapeCtx = cuecontext.New()
		v := shapeCtx.CompileString(documentSchema, cue.Filename("document.cue"))
		if err := v.Err(); err != nil {
			shapeErr = fmt.Errorf("failed to compile document schema: %w", err)
			return
		}
		shapeSchema = v.LookupPath(cue.ParsePath("#Document"))
	})
	return shapeCtx, shapeSchema, shapeErr
}

// ShapeError is one violation reported by CheckShape.
type ShapeError struct {
	Path    string
	Message string
}

func (e ShapeError) Error() string {
	if e.Path == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// CheckShape validates the decoded document against the built-in document
// schema. It reports every violation rather than stopping at the first.
func CheckShape(doc *Document) []ShapeError {
	if doc == nil {
		return []ShapeError{{Message: "document is nil"}}
	}
	if doc.Info == nil {
		return []ShapeError{{Path: "info", Message: "section is missing"}}
	}

	ctx, schemaVal, err := loadShape()
	if err != nil {
		return []ShapeError{{Message: err.Error()}}
	}

	shapeMu.Lock()
	defer shapeMu.Unlock()

	data := ctx.Encode(shapeOf(doc))
	if err := data.Err(); err != nil {
		return []ShapeError{{Message: fmt.Sprintf("failed to encode document: %v", err)}}
	}

	unified := schemaVal.Unify(data)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		var out []ShapeError
		for _, e := range errors.Errors(err) {
			out = append(out, ShapeError{
				Path:    strings.Join(e.Path(), "."),
				Message: errors.Details(e, nil),
			})
		}
		return out
	}
	return nil
}

// shapeOf converts the document into plain maps keyed like the YAML form.
func shapeOf(doc *Document) map[string]interface{} {
	info := doc.Info
	out := map[string]interface{}{
		"kind": doc.Kind.String(),
		"info": map[string]interface{}{
			"key":         info.Key,
			"name":        info.Name,
			"alias":       info.Alias,
			"icon":        info.Icon,
			"thumbnail":   info.Thumbnail,
			"description": info.Description,
			"allowAtRoot": info.AllowAtRoot.String(),
			"isListView":  info.IsListView.String(),
			"master":      info.Master,
		},
	}

	if doc.Structure != nil {
		entries := make([]interface{}, 0, len(doc.Structure.Entries))
		for _, e := range doc.Structure.Entries {
			m := map[string]interface{}{"alias": e.Alias}
			if e.Key != "" {
				m["key"] = e.Key
			}
			entries = append(entries, m)
		}
		out["structure"] = entries
	}

	if doc.Tabs != nil {
		tabs := make([]interface{}, 0, len(doc.Tabs.Tabs))
		for _, t := range doc.Tabs.Tabs {
			tabs = append(tabs, map[string]interface{}{
				"caption":   t.Caption,
				"sortOrder": t.SortOrder.String(),
			})
		}
		out["tabs"] = tabs
	}

	if doc.GenericProperties != nil {
		props := make([]interface{}, 0, len(doc.GenericProperties.Properties))
		for _, p := range doc.GenericProperties.Properties {
			m := map[string]interface{}{
				"key":        p.Key,
				"name":       p.Name,
				"alias":      p.Alias,
				"definition": p.Definition,
				"type":       p.Type,
				"mandatory":  p.Mandatory.String(),
				"sortOrder":  p.SortOrder.String(),
				"tab":        p.Tab,
			}
			if p.Validation != "" {
				m["validation"] = p.Validation
			}
			if p.Description != "" {
				m["description"] = p.Description
			}
			props = append(props, m)
		}
		out["genericProperties"] = props
	}

	return out
}
