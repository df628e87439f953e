package usecase

import (
	"strings"

	"github.com/foodscan/matcher/internal/domain"
)

// DefaultServingLabel prefixes the serving size clause of a canonical text
const DefaultServingLabel = "기준량"

// separatorReplacer turns catalog separators into plain spaces
var separatorReplacer = strings.NewReplacer("_", " ", "/", " ")

// TextBuilder renders catalog items into the text that gets embedded
type TextBuilder struct {
	servingLabel string
}

// NewTextBuilder creates a text builder using the given serving size label
func NewTextBuilder(servingLabel string) *TextBuilder {
	if strings.TrimSpace(servingLabel) == "" {
		servingLabel = DefaultServingLabel
	}
	return &TextBuilder{servingLabel: strings.TrimSpace(servingLabel)}
}

// Build returns the canonical text for an item: the normalized name and common
// name, followed by "<label> <serving size>" when a serving size is present.
// The result may be empty.
func (b *TextBuilder) Build(item domain.CatalogItem) string {
	parts := make([]string, 0, 3)

	for _, component := range []string{item.Name, item.CommonName} {
		if cleaned := normalizeComponent(component); cleaned != "" {
			parts = append(parts, cleaned)
		}
	}

	if serving := normalizeComponent(item.ServingSize); serving != "" {
		parts = append(parts, b.servingLabel+" "+serving)
	}

	return strings.Join(parts, " ")
}

// normalizeComponent replaces "_" and "/" with spaces and collapses whitespace
func normalizeComponent(value string) string {
	if value == "" {
		return ""
	}
	return strings.Join(strings.Fields(separatorReplacer.Replace(value)), " ")
}
