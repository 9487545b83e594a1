package loaders

import (
	"bytes"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"github.com/anthonynsimon/bild/clone"
	"github.com/anthonynsimon/bild/transform"
	"github.com/cockroachdb/errors"
	"github.com/h2non/filetype"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/spaghettifunk/anima-editor/engine/core"
)

// TextureLoader decodes image files into tightly packed RGBA pixels.
type TextureLoader struct {
	// MaxSize bounds the larger side of a decoded image. Bigger images are
	// scaled down keeping their aspect ratio. Zero disables the limit.
	MaxSize int
}

func (tl *TextureLoader) Load(path string) (*image.RGBA, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read texture %s", path)
	}
	img, err := tl.Decode(buf)
	if err != nil {
		return nil, errors.Wrapf(err, "decode texture %s", path)
	}
	return img, nil
}

func (tl *TextureLoader) Decode(buf []byte) (*image.RGBA, error) {
	if !filetype.IsImage(buf) {
		kind, _ := filetype.Match(buf)
		return nil, errors.Wrapf(core.ErrInvalidImage, "content is %s", kindName(kind.MIME.Value))
	}
	img, _, err := image.Decode(bytes.NewReader(buf))
	if err != nil {
		return nil, errors.Wrapf(core.ErrInvalidImage, "image decode: %s", err)
	}
	if img.Bounds().Empty() {
		return nil, errors.Wrap(core.ErrInvalidImage, "image has no pixels")
	}
	return tl.fit(img), nil
}

func (tl *TextureLoader) fit(img image.Image) *image.RGBA {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	if tl.MaxSize > 0 && (w > tl.MaxSize || h > tl.MaxSize) {
		nw, nh := tl.MaxSize, tl.MaxSize
		if w > h {
			nh = max(1, h*tl.MaxSize/w)
		} else {
			nw = max(1, w*tl.MaxSize/h)
		}
		core.LogDebug("scaling texture from %dx%d to %dx%d", w, h, nw, nh)
		return transform.Resize(img, nw, nh, transform.Linear)
	}
	return clone.AsRGBA(img)
}

func kindName(mime string) string {
	if mime == "" {
		return "unknown"
	}
	return mime
}
