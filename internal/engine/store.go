package engine

// ColumnStore holds measurements in Struct-of-Arrays format
type ColumnStore struct {
	// Data Columns (Flat Arrays)
	Years  []int32
	Values []float64

	// Dictionary Encoded IDs (0..N)
	CountryIDs []int32

	// Dictionaries
	CountryDict []string          // ID -> ISO code
	NameDict    map[string]string // ISO code -> display name, when the source has one
}

// Len returns the number of loaded rows.
func (cs *ColumnStore) Len() int {
	return len(cs.Years)
}

// countryID returns the dictionary ID of an ISO code, or -1.
func (cs *ColumnStore) countryID(iso string) int32 {
	for i, c := range cs.CountryDict {
		if c == iso {
			return int32(i)
		}
	}
	return -1
}
