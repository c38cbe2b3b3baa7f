// Package soundscape drives the continuous ambience channel: it keeps the
// playback queue stocked with synthesized tracks and wanders between
// neighbouring categories over time.
package soundscape

import "github.com/livrya/ambience/internal/ambient"

// Node is a category in the transition graph.
type Node struct {
	Category ambient.Category
	Adjacent []ambient.Category
}

// Graph maps each category to its neighbours. Rotation only follows edges.
var Graph = map[ambient.Category]*Node{
	ambient.Nature: {
		Category: ambient.Nature,
		Adjacent: []ambient.Category{ambient.Rain, ambient.Wind},
	},
	ambient.Rain: {
		Category: ambient.Rain,
		Adjacent: []ambient.Category{ambient.Nature, ambient.City, ambient.Fireplace},
	},
	ambient.City: {
		Category: ambient.City,
		Adjacent: []ambient.Category{ambient.Rain, ambient.Fireplace},
	},
	ambient.Wind: {
		Category: ambient.Wind,
		Adjacent: []ambient.Category{ambient.Nature, ambient.Fireplace},
	},
	ambient.Fireplace: {
		Category: ambient.Fireplace,
		Adjacent: []ambient.Category{ambient.Rain, ambient.Wind, ambient.City},
	},
}

// Neighbors returns the categories reachable from c in one step.
func Neighbors(c ambient.Category) []ambient.Category {
	n, ok := Graph[c]
	if !ok {
		return nil
	}
	out := make([]ambient.Category, len(n.Adjacent))
	copy(out, n.Adjacent)
	return out
}
