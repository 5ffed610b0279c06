package tasks

// TaskRecord is one canonical task statement on its way through the
// pipeline. Taxonomy fields stay empty until Match links the record.
type TaskRecord struct {
	ID                string  `json:"id"`
	Statement         string  `json:"statement"`
	Category          string  `json:"category,omitempty"`
	TaxonomyID        string  `json:"taxonomyId,omitempty"`
	TaxonomyStatement string  `json:"taxonomyStatement,omitempty"`
	OccupationCode    string  `json:"occupationCode,omitempty"`
	OccupationTitle   string  `json:"occupationTitle,omitempty"`
	MatchScore        float64 `json:"matchScore,omitempty"`
	Confidence        string  `json:"confidence,omitempty"`
	Matched           bool    `json:"matched"`
}
