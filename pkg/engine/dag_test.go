package engine

import (
	"strings"
	"testing"

	"github.com/schemasync/schemasync/pkg/document"
	"github.com/schemasync/schemasync/pkg/schema"
)

func dagDoc(kind schema.Kind, alias, master string) *document.Document {
	doc := document.New(kind)
	doc.Info.Alias = alias
	doc.Info.Name = alias
	doc.Info.Master = master
	return doc
}

func TestBuildImportOrder_Empty(t *testing.T) {
	order := BuildImportOrder(nil)

	if len(order.Sequence) != 0 {
		t.Errorf("Expected empty sequence, got %v", order.Sequence)
	}
	if len(order.Levels) != 0 {
		t.Errorf("Expected 0 levels, got %d", len(order.Levels))
	}
	if len(order.Rejected) != 0 {
		t.Errorf("Expected no rejections, got %v", order.Rejected)
	}
}

func TestBuildImportOrder_MastersFirst(t *testing.T) {
	docs := []*document.Document{
		dagDoc(schema.KindDocumentType, "article", "page"),
		dagDoc(schema.KindDocumentType, "page", "base"),
		dagDoc(schema.KindDocumentType, "base", ""),
		dagDoc(schema.KindDocumentType, "home", "base"),
	}

	order := BuildImportOrder(docs)

	if len(order.Rejected) != 0 {
		t.Fatalf("Expected no rejections, got %v", order.Rejected)
	}

	want := []int{2, 3, 1, 0}
	if len(order.Sequence) != len(want) {
		t.Fatalf("Expected sequence %v, got %v", want, order.Sequence)
	}
	for i := range want {
		if order.Sequence[i] != want[i] {
			t.Errorf("Sequence[%d]: expected %d, got %d", i, want[i], order.Sequence[i])
		}
	}

	if len(order.Levels) != 3 {
		t.Fatalf("Expected 3 levels, got %d", len(order.Levels))
	}
	if got := strings.Join(order.Levels[1], ","); got != "DocumentType/home,DocumentType/page" {
		t.Errorf("Unexpected level 1: %s", got)
	}
}

func TestBuildImportOrder_MasterOutsideBatch(t *testing.T) {
	docs := []*document.Document{
		dagDoc(schema.KindDocumentType, "article", "page"),
	}

	order := BuildImportOrder(docs)

	if len(order.Sequence) != 1 || order.Sequence[0] != 0 {
		t.Errorf("Expected article to be ordered as a root, got %v", order.Sequence)
	}
}

func TestBuildImportOrder_KindsAreSeparate(t *testing.T) {
	docs := []*document.Document{
		dagDoc(schema.KindMediaType, "image", "file"),
		dagDoc(schema.KindDocumentType, "file", ""),
	}

	builder := NewDAGBuilder()
	order := builder.Build(docs)

	if len(order.Levels) != 1 {
		t.Fatalf("Expected a single level, got %d", len(order.Levels))
	}
	if strings.Contains(builder.ToDOT(), "->") {
		t.Error("Expected no edges across kinds")
	}
}

func TestBuildImportOrder_Duplicates(t *testing.T) {
	docs := []*document.Document{
		dagDoc(schema.KindDocumentType, "page", ""),
		dagDoc(schema.KindDocumentType, "page", ""),
		dagDoc(schema.KindMediaType, "page", ""),
	}

	order := BuildImportOrder(docs)

	err, ok := order.Rejected[1]
	if !ok {
		t.Fatal("Expected the second page to be rejected")
	}
	if !IsPermanent(err) {
		t.Errorf("Expected permanent error, got %v", err)
	}
	if len(order.Sequence) != 2 {
		t.Errorf("Expected 2 ordered documents, got %v", order.Sequence)
	}
}

func TestBuildImportOrder_MissingAlias(t *testing.T) {
	docs := []*document.Document{
		dagDoc(schema.KindDocumentType, "", ""),
		nil,
	}

	order := BuildImportOrder(docs)

	if len(order.Rejected) != 2 {
		t.Fatalf("Expected 2 rejections, got %v", order.Rejected)
	}
	var se *SyncError
	if e, ok := order.Rejected[0].(*SyncError); ok {
		se = e
	}
	if se == nil || se.Code != ErrCodeMissingAlias {
		t.Errorf("Expected %s, got %v", ErrCodeMissingAlias, order.Rejected[0])
	}
}

func TestBuildImportOrder_CycleRejectsMembersOnly(t *testing.T) {
	docs := []*document.Document{
		dagDoc(schema.KindDocumentType, "a", "b"),
		dagDoc(schema.KindDocumentType, "b", "c"),
		dagDoc(schema.KindDocumentType, "c", "a"),
		dagDoc(schema.KindDocumentType, "d", "a"),
		dagDoc(schema.KindDocumentType, "e", ""),
	}

	order := BuildImportOrder(docs)

	for _, i := range []int{0, 1, 2} {
		err, ok := order.Rejected[i]
		if !ok {
			t.Errorf("Expected document %d to be rejected", i)
			continue
		}
		se, _ := err.(*SyncError)
		if se == nil || se.Code != ErrCodeCycle {
			t.Errorf("Expected cycle error for document %d, got %v", i, err)
		}
		if !strings.Contains(err.Error(), "->") {
			t.Errorf("Expected cycle path in message, got %q", err.Error())
		}
	}

	if _, ok := order.Rejected[3]; ok {
		t.Error("Expected d to survive, its master is outside the ordered set")
	}
	if len(order.Sequence) != 2 {
		t.Errorf("Expected d and e ordered, got %v", order.Sequence)
	}
}

func TestBuildImportOrder_SelfMaster(t *testing.T) {
	docs := []*document.Document{
		dagDoc(schema.KindDocumentType, "loop", "loop"),
	}

	order := BuildImportOrder(docs)

	if _, ok := order.Rejected[0]; !ok {
		t.Fatal("Expected self-referencing master to be rejected")
	}
	if len(order.Sequence) != 0 {
		t.Errorf("Expected empty sequence, got %v", order.Sequence)
	}
}

func TestDAGBuilder_ToDOT(t *testing.T) {
	docs := []*document.Document{
		dagDoc(schema.KindDocumentType, "base", ""),
		dagDoc(schema.KindDocumentType, "page", "base"),
	}

	builder := NewDAGBuilder()
	builder.Build(docs)

	dot := builder.ToDOT()

	if !strings.Contains(dot, "digraph Inheritance") {
		t.Error("DOT output missing digraph declaration")
	}
	if !strings.Contains(dot, `"DocumentType/base" -> "DocumentType/page"`) {
		t.Errorf("DOT output missing edge:\n%s", dot)
	}
	if len(builder.GetLevels()) != 2 {
		t.Errorf("Expected 2 levels, got %d", len(builder.GetLevels()))
	}
}
