package catalog

// Item is one track as returned by the catalog API.
type Item struct {
	ID         int64    `json:"id"`
	Name       string   `json:"name"`
	Tags       []string `json:"tags"`
	Duration   int      `json:"duration"`
	ArtistID   int64    `json:"artist_id"`
	AlbumID    int64    `json:"album_id"`
	Popularity float64  `json:"popularity"`
	Rating     float64  `json:"rating"`
	PreviewURL string   `json:"audio"`
}

// searchResponse is the envelope every catalog endpoint wraps results in.
type searchResponse struct {
	Results []Item `json:"results"`
}
