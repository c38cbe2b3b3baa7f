package soundscape

import "github.com/livrya/ambience/internal/ambient"

// adjectives gives each category a pool of descriptors for track names.
var adjectives = map[ambient.Category][]string{
	ambient.Nature:    {"dawn", "meadow", "dew-lit", "green", "open"},
	ambient.Rain:      {"drizzling", "grey", "steady", "pattering", "misty"},
	ambient.City:      {"late", "humming", "distant", "sodium", "restless"},
	ambient.Wind:      {"hollow", "sweeping", "high", "cold", "wandering"},
	ambient.Fireplace: {"ember", "glowing", "amber", "hearth", "crackling"},
}

// TrackName builds a display name from category and track ID. The same
// pair always yields the same name.
func TrackName(c ambient.Category, trackID string) string {
	if c == "" || trackID == "" {
		return ""
	}

	adjs := adjectives[c]
	if len(adjs) == 0 {
		return string(c) + " session"
	}

	var h int
	for i := 0; i < len(trackID) && i < 8; i++ {
		h = h*31 + int(trackID[i])
	}
	if h < 0 {
		h = -h
	}

	return adjs[h%len(adjs)] + " " + string(c)
}

// Describe returns the human description shown next to a category.
func Describe(c ambient.Category) string {
	return ambient.Describe(c)
}
