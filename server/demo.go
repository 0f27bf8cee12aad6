package server

import "github.com/ytget/musicd/types"

// demoCatalog returns the built-in placeholder tracks served when the
// upstream catalog is unreachable.
func demoCatalog() []types.Track {
	return []types.Track{
		{
			VideoID:   "demo1",
			Title:     "Demo Song 1",
			Artist:    "Demo Artist",
			Thumbnail: "https://via.placeholder.com/300x300/FF6B6B/FFFFFF?text=Demo+1",
			Duration:  "3:45",
		},
		{
			VideoID:   "demo2",
			Title:     "Demo Song 2",
			Artist:    "Demo Artist",
			Thumbnail: "https://via.placeholder.com/300x300/4ECDC4/FFFFFF?text=Demo+2",
			Duration:  "4:12",
		},
		{
			VideoID:   "demo3",
			Title:     "Demo Song 3",
			Artist:    "Demo Artist",
			Thumbnail: "https://via.placeholder.com/300x300/45B7D1/FFFFFF?text=Demo+3",
			Duration:  "2:58",
		},
	}
}
