package engine

import (
	"context"
	"fmt"

	"github.com/schemasync/schemasync/pkg/document"
	"github.com/schemasync/schemasync/pkg/schema"
	"github.com/schemasync/schemasync/pkg/telemetry"
)

// Serializer converts entities to documents and reconciles entities against
// documents. It holds no mutable state; every call works on the entity it is
// given and assumes exclusive access to it for the duration of the call.
type Serializer struct {
	entities  EntityLookup
	dataTypes DataTypeLookup
	resolver  *Resolver
	logger    *telemetry.Logger
}

// Option configures a Serializer.
type Option func(*Serializer)

// WithLogger sets the logger used for debug output and issues.
func WithLogger(logger *telemetry.Logger) Option {
	return func(s *Serializer) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewSerializer creates a serializer over the given collaborators.
// dataTypes may be nil, in which case data type rebinding is skipped.
func NewSerializer(entities EntityLookup, dataTypes DataTypeLookup, opts ...Option) *Serializer {
	s := &Serializer{
		entities:  entities,
		dataTypes: dataTypes,
		logger:    telemetry.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.NewComponentLogger("serializer")
	s.resolver = NewResolver(entities, s.logger)
	return s
}

// Resolver returns the identity resolver used by the serializer.
func (s *Serializer) Resolver() *Resolver {
	return s.resolver
}

// Serialize renders the entity as a document. The entity is not modified and
// serializing the same entity twice yields identical documents.
func (s *Serializer) Serialize(ctx context.Context, entity *schema.Entity) (*document.Document, error) {
	if entity == nil {
		return nil, NewPermanentError("entity is nil", nil).WithOperation("serialize")
	}
	if err := entity.Kind.Validate(); err != nil {
		return nil, NewPermanentError("cannot serialize entity", err).
			WithEntity(entity.Alias).
			WithOperation("serialize")
	}

	doc := document.New(entity.Kind)
	doc.Info = s.serializeInfo(ctx, entity)
	doc.Structure = s.serializeStructure(ctx, entity)
	doc.GenericProperties = s.serializeProperties(ctx, entity)
	doc.Tabs = serializeTabs(entity)
	return doc, nil
}

// Deserialize reconciles entity against doc. In ModeSinglePass the pending
// bindings are resolved before returning; in ModeFirstPassOnly they are
// returned in Result.Pending for a later SecondPass.
func (s *Serializer) Deserialize(ctx context.Context, entity *schema.Entity, doc *document.Document, mode Mode) Result {
	res := Result{Alias: doc.Alias()}
	if doc != nil {
		res.Kind = doc.Kind
	}

	if err := mode.Validate(); err != nil {
		return res.fail(NewPermanentError("cannot import entity", err).WithOperation("deserialize"))
	}

	if err := s.firstPass(ctx, entity, doc, &res); err != nil {
		s.logger.WithError(err).WithField("entity", res.Alias).Warn("first pass failed")
		return res.fail(err)
	}

	if mode == ModeSinglePass {
		second := s.ResolveBindings(ctx, entity, res.Pending)
		res.Pending = nil
		res.merge(second)
	}

	s.logIssues(res)
	return res.finalize()
}

// SecondPass resolves the cross-entity bindings described by doc. Running
// it when nothing is deferred, or when every binding already holds, reports
// ChangeNoChange.
func (s *Serializer) SecondPass(ctx context.Context, entity *schema.Entity, doc *document.Document) Result {
	res := Result{Alias: doc.Alias()}
	if doc != nil {
		res.Kind = doc.Kind
	}
	if err := checkDocument(entity, doc); err != nil {
		return res.fail(err.WithOperation("second_pass"))
	}

	out := s.ResolveBindings(ctx, entity, s.PendingBindings(entity, doc))
	s.logIssues(out)
	return out
}

// PendingBindings returns the bindings the first pass registers for doc.
func (s *Serializer) PendingBindings(entity *schema.Entity, doc *document.Document) []Binding {
	if entity == nil || doc == nil || doc.Info == nil {
		return nil
	}

	var bindings []Binding
	if master := doc.Info.Master; master != "" {
		bindings = append(bindings, Binding{
			Source:  entity.Reference(),
			Kind:    entity.Kind,
			Slot:    SlotParent,
			Targets: []schema.Reference{{Alias: master}},
		})
	}
	if doc.Structure != nil {
		bindings = append(bindings, structureBinding(entity, entity.Kind, doc.Structure))
	}
	return bindings
}

// ResolveBindings writes each binding to entity. Unresolvable targets are
// reported as issues and skipped.
func (s *Serializer) ResolveBindings(ctx context.Context, entity *schema.Entity, bindings []Binding) Result {
	res := Result{}
	if entity == nil {
		return res.fail(NewPermanentError("entity is nil", nil).WithOperation("second_pass"))
	}
	res.Alias = entity.Alias
	res.Kind = entity.Kind

	for _, b := range bindings {
		switch b.Slot {
		case SlotParent:
			s.bindParent(ctx, entity, b, &res)
		case SlotAllowedChildren:
			s.bindAllowedChildren(ctx, entity, b, &res)
		default:
			res.issue(NewMalformedDocumentError("unknown binding slot", b.Slot.Validate()).
				WithOperation("second_pass"))
		}
	}

	return res.finalize()
}

func (s *Serializer) firstPass(ctx context.Context, entity *schema.Entity, doc *document.Document, res *Result) *SyncError {
	if err := checkDocument(entity, doc); err != nil {
		return err.WithOperation("first_pass")
	}
	if entity.Kind == "" {
		entity.Kind = doc.Kind
	}

	s.deserializeInfo(entity, doc.Info, res)
	res.Pending = s.PendingBindings(entity, doc)

	if doc.GenericProperties == nil {
		res.issue(NewMalformedDocumentError("document has no GenericProperties section", nil).
			WithOperation("fields").
			WithCode(ErrCodeMissingSection))
	} else {
		s.reconcileFields(ctx, entity, doc, res)
	}

	if doc.Tabs == nil {
		res.issue(NewMalformedDocumentError("document has no Tabs section", nil).
			WithOperation("groupings").
			WithCode(ErrCodeMissingSection))
	} else {
		s.reconcileGroupings(entity, doc.Tabs, res)
	}

	return nil
}

// bindParent resolves the master alias in the entity's own namespace.
func (s *Serializer) bindParent(ctx context.Context, entity *schema.Entity, b Binding, res *Result) {
	if len(b.Targets) == 0 {
		return
	}
	target := b.Targets[0]

	parent, ok := s.resolver.ResolveRef(ctx, b.Kind, target)
	if !ok {
		res.issue(NewUnresolvedReferenceError("master not found", nil).
			WithOperation("parent").
			WithCode(ErrCodeNotFound).
			WithDetail("alias", target.Alias))
		return
	}
	if parent == entity || (parent.Key == entity.Key && parent.Alias == entity.Alias) {
		res.issue(NewIdentityConflictError("entity cannot be its own master", nil).
			WithOperation("parent").
			WithCode(ErrCodeCycle))
		return
	}

	ref := parent.Reference()
	if entity.Parent != nil && *entity.Parent == ref {
		return
	}

	var before interface{}
	if entity.Parent != nil {
		before = entity.Parent.Alias
	}
	res.record("parent", before, ref.Alias, ChangeActionModify)
	entity.Parent = &ref
}

func checkDocument(entity *schema.Entity, doc *document.Document) *SyncError {
	if entity == nil {
		return NewPermanentError("entity is nil", nil)
	}
	if doc == nil || doc.Info == nil {
		return NewPermanentError("document has no Info section", nil).WithCode(ErrCodeMissingInfo)
	}
	if doc.Info.Alias == "" {
		return NewPermanentError("document has no alias", nil).WithCode(ErrCodeMissingAlias)
	}
	if entity.Kind != "" && doc.Kind != entity.Kind {
		return NewPermanentError(
			fmt.Sprintf("document kind %s does not match entity kind %s", doc.Kind, entity.Kind), nil).
			WithCode(ErrCodeKindMismatch)
	}
	return nil
}

func (s *Serializer) logIssues(res Result) {
	for _, issue := range res.Issues {
		s.logger.WithField("entity", res.Alias).
			WithField("class", string(issue.Class)).
			WithField("operation", issue.Operation).
			Warn(issue.Message)
	}
}
