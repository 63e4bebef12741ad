package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// FilterKind discriminates the two FilterNode shapes. The wire format has
// no explicit tag, so UnmarshalJSON assigns the kind while normalizing.
type FilterKind int

const (
	FilterCondition FilterKind = iota
	FilterGroup
)

// FilterNode is a tagged union: either a single condition or a group of
// child nodes combined left to right by each child's own Logic (the first
// child's Logic is ignored). Legacy flat filter arrays decode into a
// single AND group so the compiler only ever sees the tree form.
type FilterNode struct {
	Kind FilterKind

	// condition fields
	Column   string
	Operator string
	Value    any
	Logic    string // AND or OR, relative to the preceding sibling

	// group fields
	Items []FilterNode
}

// IsEmpty reports whether the node contributes nothing to a WHERE clause.
func (n *FilterNode) IsEmpty() bool {
	if n == nil {
		return true
	}
	if n.Kind == FilterGroup {
		for i := range n.Items {
			if !n.Items[i].IsEmpty() {
				return false
			}
		}
		return true
	}
	return n.Column == ""
}

// Conditions returns every condition node in the tree, depth first.
func (n *FilterNode) Conditions() []FilterNode {
	if n == nil {
		return nil
	}
	if n.Kind == FilterCondition {
		return []FilterNode{*n}
	}
	var out []FilterNode
	for i := range n.Items {
		out = append(out, n.Items[i].Conditions()...)
	}
	return out
}

type filterNodeWire struct {
	Logic    string           `json:"logic"`
	Items    *json.RawMessage `json:"items"`
	Column   string           `json:"column"`
	Operator string           `json:"operator"`
	Value    any              `json:"value"`
}

func (n *FilterNode) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" || trimmed == "null" {
		*n = FilterNode{Kind: FilterGroup, Logic: "AND"}
		return nil
	}

	// legacy flat array becomes a single AND group keeping each item's logic
	if strings.HasPrefix(trimmed, "[") {
		var items []FilterNode
		if err := json.Unmarshal(data, &items); err != nil {
			return err
		}
		*n = FilterNode{Kind: FilterGroup, Logic: "AND", Items: items}
		return nil
	}

	var wire filterNodeWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}

	logic := strings.ToUpper(strings.TrimSpace(wire.Logic))
	if logic != "OR" {
		logic = "AND"
	}

	if wire.Items != nil {
		var items []FilterNode
		if err := json.Unmarshal(*wire.Items, &items); err != nil {
			return err
		}
		*n = FilterNode{Kind: FilterGroup, Logic: logic, Items: items}
		return nil
	}

	*n = FilterNode{
		Kind:     FilterCondition,
		Column:   wire.Column,
		Operator: wire.Operator,
		Value:    wire.Value,
		Logic:    logic,
	}
	return nil
}

// ParseFilters decodes a filters query parameter. An empty string is a
// valid, empty filter tree.
func ParseFilters(raw string) (FilterNode, error) {
	var node FilterNode
	if strings.TrimSpace(raw) == "" {
		return FilterNode{Kind: FilterGroup, Logic: "AND"}, nil
	}
	if err := json.Unmarshal([]byte(raw), &node); err != nil {
		return node, fmt.Errorf("invalid filters: %w", err)
	}
	return node, nil
}

// SortKey is one entry of a multi-column sort.
type SortKey struct {
	Column    string `json:"column"`
	Direction string `json:"direction"` // ASC or DESC
}

// ParseSorts decodes a sorts query parameter.
func ParseSorts(raw string) ([]SortKey, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var sorts []SortKey
	if err := json.Unmarshal([]byte(raw), &sorts); err != nil {
		return nil, fmt.Errorf("invalid sorts: %w", err)
	}
	return sorts, nil
}

// ParseGroups decodes a groups query parameter (an ordered list of column
// names used for visual grouping, not SQL aggregation).
func ParseGroups(raw string) ([]string, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var groups []string
	if err := json.Unmarshal([]byte(raw), &groups); err != nil {
		return nil, fmt.Errorf("invalid groups: %w", err)
	}
	return groups, nil
}
