package engine

import (
	"context"

	"github.com/google/uuid"

	"github.com/schemasync/schemasync/pkg/document"
	"github.com/schemasync/schemasync/pkg/schema"
)

// serializeInfo emits every scalar attribute. Missing values render as empty
// or false so the document shape never varies.
func (s *Serializer) serializeInfo(ctx context.Context, entity *schema.Entity) *document.Info {
	info := &document.Info{
		Key:         keyString(entity.Key),
		Name:        entity.Name,
		Alias:       entity.Alias,
		Icon:        entity.Icon,
		Thumbnail:   entity.Thumbnail,
		Description: entity.Description,
		AllowAtRoot: document.BoolToken(entity.AllowAtRoot),
		IsListView:  document.BoolToken(entity.ListView),
	}

	if entity.Parent != nil {
		if parent, ok := s.resolver.ResolveRef(ctx, entity.Kind, *entity.Parent); ok {
			info.Master = parent.Alias
		} else {
			info.Master = entity.Parent.Alias
		}
	}

	return info
}

// deserializeInfo writes each scalar that differs from the document and
// registers the parent binding. The parent is never resolved here: within a
// batch it may not exist yet.
func (s *Serializer) deserializeInfo(entity *schema.Entity, info *document.Info, res *Result) {
	if key, ok := parseKey(info.Key); ok && entity.Key == uuid.Nil {
		entity.Key = key
		res.record("info.key", "", key.String(), ChangeActionModify)
	}

	setString(res, "info.alias", &entity.Alias, info.Alias)
	setString(res, "info.name", &entity.Name, info.Name)
	setString(res, "info.icon", &entity.Icon, info.Icon)
	setString(res, "info.thumbnail", &entity.Thumbnail, info.Thumbnail)
	setString(res, "info.description", &entity.Description, info.Description)
	setBool(res, "info.allowAtRoot", &entity.AllowAtRoot, info.AllowAtRoot)
	setBool(res, "info.isListView", &entity.ListView, info.IsListView)
}

func setString(res *Result, path string, target *string, value string) {
	if *target == value {
		return
	}
	res.record(path, *target, value, ChangeActionModify)
	*target = value
}

func setBool(res *Result, path string, target *bool, tok document.Token) {
	if tok.IsEmpty() {
		return
	}
	v, err := tok.Bool()
	if err != nil {
		res.issue(NewParseFailureError("invalid boolean", err).
			WithOperation(path).
			WithCode(ErrCodeInvalidBool).
			WithDetail("value", tok.String()))
		return
	}
	if *target == v {
		return
	}
	res.record(path, *target, v, ChangeActionModify)
	*target = v
}

func setInt(res *Result, path string, target *int, tok document.Token) {
	if tok.IsEmpty() {
		return
	}
	v, err := tok.Int()
	if err != nil {
		res.issue(NewParseFailureError("invalid integer", err).
			WithOperation(path).
			WithCode(ErrCodeInvalidInt).
			WithDetail("value", tok.String()))
		return
	}
	if *target == v {
		return
	}
	res.record(path, *target, v, ChangeActionModify)
	*target = v
}
