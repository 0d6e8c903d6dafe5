// Package render defines the pure data layer of the pipeline: render
// requests, profile resolution, keyframe expression compilation, and the
// immutable filter-graph representation rendered to ffmpeg syntax at the
// invocation boundary. Nothing in this package spawns processes.
package render
