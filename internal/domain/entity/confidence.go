package entity

// ConfidenceLevel grades how reliable an extracted field value is. Levels
// arrive from the upstream extraction service and are kept per field rather
// than per type so new fields need no schema change.
type ConfidenceLevel string

const (
	ConfidenceLow    ConfidenceLevel = "low"
	ConfidenceMedium ConfidenceLevel = "medium"
	ConfidenceHigh   ConfidenceLevel = "high"
)

// ConfidenceMap maps an extracted field name to its confidence level.
type ConfidenceMap map[string]ConfidenceLevel

// Lowest returns the weakest level present, defaulting to high for an empty
// map (nothing flagged).
func (m ConfidenceMap) Lowest() ConfidenceLevel {
	lowest := ConfidenceHigh
	for _, level := range m {
		switch level {
		case ConfidenceLow:
			return ConfidenceLow
		case ConfidenceMedium:
			lowest = ConfidenceMedium
		}
	}
	return lowest
}
