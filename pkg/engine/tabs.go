package engine

import (
	"fmt"
	"sort"

	"github.com/schemasync/schemasync/pkg/document"
	"github.com/schemasync/schemasync/pkg/schema"
)

// serializeTabs emits groupings by sort order, ties broken by name.
func serializeTabs(entity *schema.Entity) *document.TabSection {
	groups := make([]*schema.Grouping, len(entity.Groupings))
	copy(groups, entity.Groupings)
	sort.SliceStable(groups, func(i, j int) bool {
		if groups[i].SortOrder != groups[j].SortOrder {
			return groups[i].SortOrder < groups[j].SortOrder
		}
		return groups[i].Name < groups[j].Name
	})

	section := &document.TabSection{Tabs: make([]document.Tab, 0, len(groups))}
	for _, g := range groups {
		section.Tabs = append(section.Tabs, document.Tab{
			Caption:   g.Name,
			SortOrder: document.IntToken(g.SortOrder),
		})
	}
	return section
}

// reconcileGroupings updates sort orders of groupings named in the document
// and removes the ones it does not name. Groupings are never created here.
func (s *Serializer) reconcileGroupings(entity *schema.Entity, tabs *document.TabSection, res *Result) {
	named := make(map[string]bool, len(tabs.Tabs))
	for _, tab := range tabs.Tabs {
		if named[tab.Caption] {
			res.issue(NewIdentityConflictError(
				fmt.Sprintf("tab %q listed more than once", tab.Caption), nil).
				WithOperation(groupingPath(tab.Caption)).
				WithCode(ErrCodeDuplicateMatch))
			continue
		}
		named[tab.Caption] = true

		g := entity.Grouping(tab.Caption)
		if g == nil {
			continue
		}
		setInt(res, groupingPath(g.Name)+".sortOrder", &g.SortOrder, tab.SortOrder)
	}

	var stale []string
	for _, g := range entity.Groupings {
		if !named[g.Name] {
			stale = append(stale, g.Name)
		}
	}

	for _, name := range stale {
		orphaned := entity.RemoveGrouping(name)
		res.record(groupingPath(name), name, nil, ChangeActionRemove)
		for _, alias := range orphaned {
			res.record(fieldPath(alias)+".group", name, "", ChangeActionModify)
		}
		s.logger.WithField("entity", entity.Alias).WithField("grouping", name).Debug("removed grouping")
	}
}
