package models

// SectionNameKey is the metadata key linking Q&A passages to their policy section
const SectionNameKey = "section_name"

// Document is an indexed passage of HR policy text
type Document struct {
	ID       string            `json:"id"`
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Section returns the section_name metadata value, or "" when absent
func (d Document) Section() string {
	return d.Metadata[SectionNameKey]
}

// RankedPassage is a document paired with a relevance score for one query
type RankedPassage struct {
	Document Document `json:"document"`
	Score    float64  `json:"score"`
}

// MetadataFilter restricts a similarity search to documents whose Metadata[Field] equals Value
type MetadataFilter struct {
	Field string
	Value string
}

// Matches reports whether doc satisfies the filter. A nil filter matches everything.
func (f *MetadataFilter) Matches(doc Document) bool {
	if f == nil {
		return true
	}
	return doc.Metadata[f.Field] == f.Value
}
