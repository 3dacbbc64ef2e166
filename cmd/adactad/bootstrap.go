package main

import (
	"adacta/internal/config"
	"adacta/internal/index"
	"adacta/internal/pipeline"
)

// buildTransforms assembles the stage chain in processing order: extract
// text, render a thumbnail, then publish the bundle to the search catalog.
func buildTransforms(cfg *config.Config, ix *index.Index) []pipeline.Transform {
	return []pipeline.Transform{
		pipeline.NewTextTransform(cfg),
		pipeline.NewThumbnailTransform(cfg),
		pipeline.NewIndexTransform(ix),
	}
}
