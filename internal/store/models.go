package store

import "encoding/json"

// Attrs is the attribute bag fetched from the catalog for one item.
// Provider-specific fields that have no typed column land in Extra and
// round-trip through the data blob untouched.
type Attrs struct {
	Name        string            `json:"name"`
	Tags        []string          `json:"tags,omitempty"`
	DurationSec int               `json:"duration_sec,omitempty"`
	OwnerID     int64             `json:"owner_id,omitempty"`
	GroupID     int64             `json:"group_id,omitempty"`
	Popularity  float64           `json:"popularity,omitempty"`
	Rating      float64           `json:"rating,omitempty"`
	PreviewURL  string            `json:"preview_url,omitempty"`
	Extra       map[string]string `json:"extra,omitempty"`
}

// Item is one row of the metadata table.
type Item struct {
	ID            int64
	Attrs         Attrs
	PriorityScore float64
	IsDormant     bool
	DormantSince  *int64 // Unix millis, nil while not dormant
	LastUpdated   int64  // Unix millis of the last attribute refresh
	LastChecked   int64  // Unix millis of the last existence check
}

// Score derives the seed-ranking priority from catalog attributes.
// Popularity dominates; rating breaks ties between similarly popular items.
func Score(a Attrs) float64 {
	return a.Popularity + a.Rating*10
}

func encodeAttrs(a Attrs) (string, error) {
	b, err := json.Marshal(a)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeAttrs(blob string) (Attrs, error) {
	var a Attrs
	err := json.Unmarshal([]byte(blob), &a)
	return a, err
}
