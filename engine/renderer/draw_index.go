package renderer

import (
	"github.com/spaghettifunk/anima-editor/engine/ecs"
	"github.com/spaghettifunk/anima-editor/engine/renderer/catalogue"
)

// DrawEntry is the per entity draw binding. Binding selects the descriptor set
// and Offset is the dynamic uniform offset of the entity's block.
type DrawEntry struct {
	Entity   ecs.Entity
	Binding  int
	Offset   uint32
	Mesh     catalogue.Handle
	Texture  catalogue.Handle
	Pipeline Pipeline
	Visible  bool
	// Drawable is false when the mesh handle does not resolve.
	Drawable bool
}

// DrawIndex is the ordered list of renderable entities. It is built once per
// structural change and shared by the uniform fill and the command recording,
// so both always agree on which block belongs to which entity.
type DrawIndex struct {
	Entries     []DrawEntry
	AlignedSize uint32
	Version     uint64
}

// BuildDrawIndex queries every entity with a Transform and a Render component in
// ascending id order. Textures that do not resolve fall back to defaultTexture.
func BuildDrawIndex(w *ecs.World, res Resources, defaultTexture catalogue.Handle, alignment uint32) *DrawIndex {
	entities := w.With(ecs.KindTransform, ecs.KindRender)
	index := &DrawIndex{
		Entries:     make([]DrawEntry, 0, len(entities)),
		AlignedSize: AlignedBlockSize(UniformBlockSize, alignment),
		Version:     w.Version(),
	}
	for i, e := range entities {
		render, _ := ecs.Get[ecs.Render](w, e)
		entry := DrawEntry{
			Entity:   e,
			Binding:  i,
			Offset:   uint32(i) * index.AlignedSize,
			Mesh:     catalogue.Handle(render.MeshResourceID),
			Texture:  catalogue.Handle(render.TextureResourceID),
			Pipeline: SelectPipeline(render),
			Visible:  render.Visible,
		}
		entry.Drawable = res.Mesh(entry.Mesh) != nil
		if res.Texture(entry.Texture) == nil {
			entry.Texture = defaultTexture
		}
		index.Entries = append(index.Entries, entry)
	}
	return index
}

func (d *DrawIndex) Len() int {
	return len(d.Entries)
}

// BufferSize is the byte size of one uniform backing buffer. It never drops to
// zero so the buffers and descriptors stay valid for an empty scene.
func (d *DrawIndex) BufferSize() uint64 {
	n := len(d.Entries)
	if n < 1 {
		n = 1
	}
	return uint64(d.AlignedSize) * uint64(n)
}

// DrawCall is one step of the recorded command stream.
type DrawCall struct {
	Binding  int
	Offset   uint32
	Pipeline Pipeline
	Mesh     catalogue.Handle
	// Draw is false for hidden entities: their binding is still bound.
	Draw bool
}

// DrawCalls lists the calls to record, skipping entries without a mesh.
func (d *DrawIndex) DrawCalls() []DrawCall {
	calls := make([]DrawCall, 0, len(d.Entries))
	for _, e := range d.Entries {
		if !e.Drawable {
			continue
		}
		calls = append(calls, DrawCall{
			Binding:  e.Binding,
			Offset:   e.Offset,
			Pipeline: e.Pipeline,
			Mesh:     e.Mesh,
			Draw:     e.Visible,
		})
	}
	return calls
}

// Counts returns how many entries issue a draw and how many are bound but hidden.
func (d *DrawIndex) Counts() (drawn, hidden int) {
	for _, c := range d.DrawCalls() {
		if c.Draw {
			drawn++
		} else {
			hidden++
		}
	}
	return drawn, hidden
}

// FillUniforms packs one block per drawable entry at the entry's offset.
func (d *DrawIndex) FillUniforms(dst []byte, w *ecs.World, shared UniformBlock) []byte {
	size := int(d.BufferSize())
	if cap(dst) < size {
		dst = make([]byte, size)
	}
	dst = dst[:size]

	for _, e := range d.Entries {
		if !e.Drawable {
			continue
		}
		transform, ok := ecs.Get[ecs.Transform](w, e.Entity)
		if !ok {
			continue
		}
		block := shared
		block.Model = transform.Model()
		PackUniforms(dst, e.Offset, block)
	}
	return dst
}
