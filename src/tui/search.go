package tui

import "strings"

// applyFilter filters items based on branch filter and search query
func (m *MainModel) applyFilter() {
	filter := m.header.GetFilter()

	// 1. Filter by branch
	var filtered []Item
	if filter == allBranches {
		filtered = m.items
	} else {
		for _, item := range m.items {
			if strings.EqualFold(item.Run.Branch, filter) {
				filtered = append(filtered, item)
			}
		}
	}

	// 2. Filter by search query
	if m.searchQuery != "" {
		var searchFiltered []Item
		for _, item := range filtered {
			if item.Matches(m.searchQuery) {
				searchFiltered = append(searchFiltered, item)
			}
		}
		filtered = searchFiltered
	}

	m.listView.SetItems(filtered)
	// Update detail content for new selection
	if selectedItem, ok := m.listView.GetSelectedItem(); ok {
		m.updateDetailContent(selectedItem)
	} else {
		m.detailViewport.SetContent("")
		m.detailFocused = false
	}
}
