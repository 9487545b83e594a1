package renderer

import "github.com/spaghettifunk/anima-editor/engine/ecs"

// Pipeline selects one of the compiled shading pipelines.
type Pipeline uint8

const (
	PipelineUnlit Pipeline = iota
	PipelinePhong
	PipelineLine
	PipelinePoint
	PipelineCount
)

func (p Pipeline) String() string {
	switch p {
	case PipelineUnlit:
		return "unlit"
	case PipelinePhong:
		return "phong"
	case PipelineLine:
		return "line"
	case PipelinePoint:
		return "point"
	}
	return "unknown"
}

// SelectPipeline maps a render component to its pipeline.
func SelectPipeline(r *ecs.Render) Pipeline {
	switch r.Primitive {
	case ecs.PrimitiveLines:
		return PipelineLine
	case ecs.PrimitivePoints:
		return PipelinePoint
	}
	if r.UsePhong {
		return PipelinePhong
	}
	return PipelineUnlit
}
