package document

import (
	"encoding/xml"

	"gopkg.in/yaml.v3"

	"github.com/schemasync/schemasync/pkg/schema"
)

// Document is the portable, textual form of one schema entity.
//
// Sections are pointers so that an absent section can be told apart from an
// empty one: a document without Structure leaves the allowed children alone,
// while an empty Structure clears them.
type Document struct {
	// XMLName carries the root element, which is the entity kind.
	XMLName xml.Name `yaml:"-"`

	Kind              schema.Kind       `xml:"-" yaml:"kind"`
	Info              *Info             `xml:"Info" yaml:"info"`
	Structure         *StructureSection `xml:"Structure" yaml:"structure,omitempty"`
	GenericProperties *PropertySection  `xml:"GenericProperties" yaml:"genericProperties,omitempty"`
	Tabs              *TabSection       `xml:"Tabs" yaml:"tabs,omitempty"`
}

// Info holds the entity-level scalar attributes.
type Info struct {
	Key         string `xml:"Key" yaml:"key"`
	Name        string `xml:"Name" yaml:"name"`
	Alias       string `xml:"Alias" yaml:"alias"`
	Icon        string `xml:"Icon" yaml:"icon"`
	Thumbnail   string `xml:"Thumbnail" yaml:"thumbnail"`
	Description string `xml:"Description" yaml:"description"`
	AllowAtRoot Token  `xml:"AllowAtRoot" yaml:"allowAtRoot"`
	IsListView  Token  `xml:"IsListView" yaml:"isListView"`

	// Master is the alias of the parent entity, empty when there is none.
	Master string `xml:"Master" yaml:"master"`
}

// StructureRef is one allowed-child entry. In XML the element name is the
// entity kind and the alias is its text.
type StructureRef struct {
	XMLName xml.Name `yaml:"-"`
	Key     string   `xml:"Key,attr,omitempty" yaml:"key,omitempty"`
	Alias   string   `xml:",chardata" yaml:"alias"`
}

// StructureSection is the ordered list of allowed children.
type StructureSection struct {
	Entries []StructureRef `xml:",any"`
}

// MarshalYAML renders the section as a plain sequence.
func (s StructureSection) MarshalYAML() (interface{}, error) {
	if s.Entries == nil {
		return []StructureRef{}, nil
	}
	return s.Entries, nil
}

// UnmarshalYAML reads the section from a plain sequence.
func (s *StructureSection) UnmarshalYAML(node *yaml.Node) error {
	s.Entries = make([]StructureRef, 0, len(node.Content))
	return node.Decode(&s.Entries)
}

// Tab is one display grouping.
type Tab struct {
	Caption   string `xml:"Caption" yaml:"caption"`
	SortOrder Token  `xml:"SortOrder" yaml:"sortOrder"`
}

// TabSection is the list of display groupings.
type TabSection struct {
	Tabs []Tab `xml:"Tab"`
}

// MarshalYAML renders the section as a plain sequence.
func (s TabSection) MarshalYAML() (interface{}, error) {
	if s.Tabs == nil {
		return []Tab{}, nil
	}
	return s.Tabs, nil
}

// UnmarshalYAML reads the section from a plain sequence.
func (s *TabSection) UnmarshalYAML(node *yaml.Node) error {
	s.Tabs = make([]Tab, 0, len(node.Content))
	return node.Decode(&s.Tabs)
}

// Property is one field descriptor.
type Property struct {
	Key         string `xml:"Key" yaml:"key"`
	Name        string `xml:"Name" yaml:"name"`
	Alias       string `xml:"Alias" yaml:"alias"`
	Definition  string `xml:"Definition" yaml:"definition"`
	Type        string `xml:"Type" yaml:"type"`
	Mandatory   Token  `xml:"Mandatory" yaml:"mandatory"`
	Validation  string `xml:"Validation,omitempty" yaml:"validation,omitempty"`
	Description string `xml:"Description,omitempty" yaml:"description,omitempty"`
	SortOrder   Token  `xml:"SortOrder" yaml:"sortOrder"`

	// Tab names the owning grouping. Empty means ungrouped.
	Tab string `xml:"Tab" yaml:"tab"`
}

// PropertySection is the list of field descriptors.
type PropertySection struct {
	Properties []Property `xml:"GenericProperty"`
}

// MarshalYAML renders the section as a plain sequence.
func (s PropertySection) MarshalYAML() (interface{}, error) {
	if s.Properties == nil {
		return []Property{}, nil
	}
	return s.Properties, nil
}

// UnmarshalYAML reads the section from a plain sequence.
func (s *PropertySection) UnmarshalYAML(node *yaml.Node) error {
	s.Properties = make([]Property, 0, len(node.Content))
	return node.Decode(&s.Properties)
}

// New returns an empty document of the given kind with every section present.
func New(kind schema.Kind) *Document {
	return &Document{
		Kind:              kind,
		Info:              &Info{},
		Structure:         &StructureSection{Entries: make([]StructureRef, 0)},
		GenericProperties: &PropertySection{Properties: make([]Property, 0)},
		Tabs:              &TabSection{Tabs: make([]Tab, 0)},
	}
}

// Alias returns the alias of the described entity, or "" when Info is absent.
func (d *Document) Alias() string {
	if d == nil || d.Info == nil {
		return ""
	}
	return d.Info.Alias
}

// Master returns the parent alias, or "".
func (d *Document) Master() string {
	if d == nil || d.Info == nil {
		return ""
	}
	return d.Info.Master
}

// Tab returns the tab with the given caption.
func (d *Document) Tab(caption string) (Tab, bool) {
	if d.Tabs == nil {
		return Tab{}, false
	}
	for _, t := range d.Tabs.Tabs {
		if t.Caption == caption {
			return t, true
		}
	}
	return Tab{}, false
}
