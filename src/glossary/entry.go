// Package glossary holds the user-defined technical terms that bias translations.
package glossary

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrEmptyField = errors.New("term and translation are required")
	ErrNotFound   = errors.New("glossary entry not found")
)

type Category string

const (
	CategoryGeneral Category = "general"
	CategoryBridge  Category = "bridge"
	CategoryRoad    Category = "road"
	CategoryRevit   Category = "revit"
)

// Categories lists the valid categories in display order.
var Categories = []Category{CategoryGeneral, CategoryRoad, CategoryBridge, CategoryRevit}

// ParseCategory accepts any casing; an empty value means general.
func ParseCategory(s string) (Category, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return CategoryGeneral, nil
	}
	for _, c := range Categories {
		if string(c) == s {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown category %q (want general, road, bridge or revit)", s)
}

type Entry struct {
	ID          string   `json:"id" yaml:"id"`
	Term        string   `json:"term" yaml:"term"`
	Translation string   `json:"translation" yaml:"translation"`
	Category    Category `json:"category" yaml:"category"`
}

// NewEntry trims both fields and assigns a fresh ID.
func NewEntry(term, translation string, category Category) (Entry, error) {
	term = strings.TrimSpace(term)
	translation = strings.TrimSpace(translation)
	if term == "" || translation == "" {
		return Entry{}, ErrEmptyField
	}
	category, err := ParseCategory(string(category))
	if err != nil {
		return Entry{}, err
	}
	return Entry{
		ID:          uuid.NewString(),
		Term:        term,
		Translation: translation,
		Category:    category,
	}, nil
}

// Defaults returns the built-in bridge/road engineering terms.
func Defaults() []Entry {
	return []Entry{
		{ID: "1", Term: "Offset", Translation: "Dời song song (Offset)", Category: CategoryGeneral},
		{ID: "2", Term: "Trim", Translation: "Cắt xén (Trim)", Category: CategoryGeneral},
		{ID: "3", Term: "Extend", Translation: "Phóng đối tượng (Extend)", Category: CategoryGeneral},
		{ID: "4", Term: "Fillet", Translation: "Bo tròn góc (Fillet)", Category: CategoryGeneral},
		{ID: "5", Term: "Chamfer", Translation: "Vát góc (Chamfer)", Category: CategoryGeneral},
		{ID: "6", Term: "Alignment", Translation: "Tuyến (Alignment)", Category: CategoryRoad},
		{ID: "7", Term: "Corridor", Translation: "Hành lang tuyến (Corridor)", Category: CategoryRoad},
		{ID: "8", Term: "Surface", Translation: "Bề mặt địa hình (Surface)", Category: CategoryRoad},
		{ID: "9", Term: "Abutment", Translation: "Mố cầu (Abutment)", Category: CategoryBridge},
		{ID: "10", Term: "Pier", Translation: "Trụ cầu (Pier)", Category: CategoryBridge},
		{ID: "11", Term: "Girder", Translation: "Dầm cầu (Girder)", Category: CategoryBridge},
		{ID: "12", Term: "Rebar", Translation: "Cốt thép (Rebar)", Category: CategoryBridge},
		{ID: "13", Term: "Elevation", Translation: "Cao độ / Mặt đứng", Category: CategoryGeneral},
		{ID: "14", Term: "Section", Translation: "Mặt cắt (Section)", Category: CategoryGeneral},
		{ID: "15", Term: "Grade", Translation: "Độ dốc (Grade)", Category: CategoryRoad},
	}
}

// PromptContext renders entries as "- term: translation" lines for the model prompt.
func PromptContext(entries []Entry) string {
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		lines = append(lines, fmt.Sprintf("- %s: %s", e.Term, e.Translation))
	}
	return strings.Join(lines, "\n")
}

// Lookup returns the entry whose term equals text, ignoring case and surrounding space.
func Lookup(entries []Entry, text string) (Entry, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Entry{}, false
	}
	for _, e := range entries {
		if strings.EqualFold(e.Term, text) {
			return e, true
		}
	}
	return Entry{}, false
}
