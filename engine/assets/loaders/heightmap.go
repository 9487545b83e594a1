package loaders

import (
	"image"
	"image/color"

	"github.com/chewxy/math32"
	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/spaghettifunk/anima-editor/engine/core"
	"github.com/spaghettifunk/anima-editor/engine/math"
)

// Terrain is a regular grid generated from a grayscale heightmap, centred on
// the origin in X and Z.
type Terrain struct {
	Path         string
	Mesh         MeshData
	Columns      int
	Rows         int
	HeightScale  float32
	GridSpacing  float32
	HeightOffset float32
	Extents      math.Extents3D
}

// LoadHeightmap builds a terrain where every pixel becomes one vertex raised by
// luminance * heightScale + heightOffset.
func LoadHeightmap(path string, heightScale, gridSpacing, heightOffset float32) (*Terrain, error) {
	tl := &TextureLoader{}
	img, err := tl.Load(path)
	if err != nil {
		return nil, errors.Wrap(err, "load heightmap")
	}
	t, err := TerrainFromImage(img, heightScale, gridSpacing, heightOffset)
	if err != nil {
		return nil, errors.Wrapf(err, "heightmap %s", path)
	}
	t.Path = path
	return t, nil
}

func TerrainFromImage(img image.Image, heightScale, gridSpacing, heightOffset float32) (*Terrain, error) {
	b := img.Bounds()
	cols, rows := b.Dx(), b.Dy()
	if cols < 2 || rows < 2 {
		return nil, errors.Wrapf(core.ErrInvalidImage, "heightmap must be at least 2x2, got %dx%d", cols, rows)
	}
	if gridSpacing <= 0 {
		gridSpacing = 1
	}

	t := &Terrain{
		Columns:      cols,
		Rows:         rows,
		HeightScale:  heightScale,
		GridSpacing:  gridSpacing,
		HeightOffset: heightOffset,
		Mesh:         MeshData{Name: "Terrain", MaterialIndex: -1},
	}
	originX := -float32(cols-1) * gridSpacing / 2
	originZ := -float32(rows-1) * gridSpacing / 2

	t.Mesh.Vertices = make([]math.Vertex, 0, cols*rows)
	for z := 0; z < rows; z++ {
		for x := 0; x < cols; x++ {
			gray := color.GrayModel.Convert(img.At(b.Min.X+x, b.Min.Y+z)).(color.Gray)
			height := float32(gray.Y)*heightScale + heightOffset
			t.Mesh.Vertices = append(t.Mesh.Vertices, math.Vertex{
				Position: mgl32.Vec3{originX + float32(x)*gridSpacing, height, originZ + float32(z)*gridSpacing},
				Color:    mgl32.Vec3{1, 1, 1},
				TexCoord: mgl32.Vec2{float32(x) / float32(cols-1), float32(z) / float32(rows-1)},
			})
		}
	}

	t.Mesh.Indices = make([]uint32, 0, (cols-1)*(rows-1)*6)
	for z := 0; z < rows-1; z++ {
		for x := 0; x < cols-1; x++ {
			a := uint32(z*cols + x)
			c := a + 1
			bl := a + uint32(cols)
			d := bl + 1
			t.Mesh.Indices = append(t.Mesh.Indices, a, bl, c, c, bl, d)
		}
	}

	math.GenerateNormals(t.Mesh.Vertices, t.Mesh.Indices)
	t.Extents = math.ComputeExtents(t.Mesh.Vertices)
	return t, nil
}

func (t *Terrain) vertexHeight(col, row int) float32 {
	return t.Mesh.Vertices[row*t.Columns+col].Position.Y()
}

// HeightAt interpolates the surface height below a world position, relative to
// the terrain placed at origin. Returns false outside the grid.
func (t *Terrain) HeightAt(x, z float32, origin mgl32.Vec3) (float32, bool) {
	if t.Columns < 2 || t.Rows < 2 {
		return t.HeightOffset, false
	}
	gx := (x - origin.X() - t.Extents.Min.X()) / t.GridSpacing
	gz := (z - origin.Z() - t.Extents.Min.Z()) / t.GridSpacing
	if gx < 0 || gz < 0 || gx > float32(t.Columns-1) || gz > float32(t.Rows-1) {
		return t.HeightOffset, false
	}

	col := math.Clamp(int(math32.Floor(gx)), 0, t.Columns-2)
	row := math.Clamp(int(math32.Floor(gz)), 0, t.Rows-2)
	fx, fz := gx-float32(col), gz-float32(row)

	a := t.vertexHeight(col, row)
	c := t.vertexHeight(col+1, row)
	b := t.vertexHeight(col, row+1)
	d := t.vertexHeight(col+1, row+1)

	// the cell is split along the b-c diagonal, matching the index order
	var h float32
	if fx+fz <= 1 {
		h = a + fx*(c-a) + fz*(b-a)
	} else {
		h = d + (1-fx)*(b-d) + (1-fz)*(c-d)
	}
	return h + origin.Y(), true
}
