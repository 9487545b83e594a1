package renderer

import (
	"unsafe"

	"github.com/go-gl/mathgl/mgl32"
)

// UniformBlock mirrors the std140 uniform block read by every vertex shader.
type UniformBlock struct {
	Model    mgl32.Mat4
	View     mgl32.Mat4
	Proj     mgl32.Mat4
	LightPos mgl32.Vec3
	_        float32
}

const UniformBlockSize = uint32(unsafe.Sizeof(UniformBlock{}))

// AlignedBlockSize rounds size up to the next multiple of alignment.
func AlignedBlockSize(size, alignment uint32) uint32 {
	if alignment == 0 {
		return size
	}
	return (size + alignment - 1) / alignment * alignment
}

// Bytes returns the block in the layout the shaders expect.
func (u *UniformBlock) Bytes() []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(u)), UniformBlockSize)
}

// PackUniforms writes block at offset into dst, which must be large enough.
func PackUniforms(dst []byte, offset uint32, block UniformBlock) {
	copy(dst[offset:offset+UniformBlockSize], block.Bytes())
}
