package inference

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/nfnt/resize"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/Brownie44l1/malaria-api/internal/model"
)

// Interpolation is the resampling kernel used to reach the model input size.
// Changing it changes model inputs; regression tests pin it.
const Interpolation = resize.Bicubic

// maxPixels bounds the decoded size of an upload.
const maxPixels = 50_000_000

// Decode decodes an uploaded image in any registered format.
func Decode(data []byte) (image.Image, string, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", &model.ImageDecodeError{Err: err}
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || cfg.Width*cfg.Height > maxPixels {
		return nil, "", &model.ImageDecodeError{
			Err: fmt.Errorf("unsupported dimensions %dx%d", cfg.Width, cfg.Height),
		}
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", &model.ImageDecodeError{Err: err}
	}
	return img, format, nil
}

// ToRGB converts any color model to opaque 8-bit RGB. Alpha is dropped from
// the non-premultiplied color rather than composited, grayscale is
// replicated across channels and palettes are looked up.
func ToRGB(src image.Image) *image.RGBA {
	b := src.Bounds()
	n := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(n, n.Bounds(), src, b.Min, draw.Src)
	for i := 3; i < len(n.Pix); i += 4 {
		n.Pix[i] = 0xff
	}
	// Opaque pixels are identical in premultiplied and straight form.
	return &image.RGBA{Pix: n.Pix, Stride: n.Stride, Rect: n.Rect}
}

// Preprocess turns a decoded image into a flat NHWC tensor of shape
// (1, H, W, 3) with values in [0, 1].
func Preprocess(img image.Image, shape model.InputShape) ([]float32, error) {
	if shape.Channels != 3 {
		return nil, &model.PreprocessingError{Reason: fmt.Sprintf("unsupported channel count %d", shape.Channels)}
	}
	rgb := ToRGB(img)
	resized := resize.Resize(uint(shape.Width), uint(shape.Height), rgb, Interpolation)
	return toTensor(resized, shape)
}

// toTensor scales 8-bit RGB values by 1/255 with no mean subtraction.
func toTensor(img image.Image, shape model.InputShape) ([]float32, error) {
	b := img.Bounds()
	if b.Dx() != shape.Width || b.Dy() != shape.Height {
		return nil, &model.PreprocessingError{
			Reason: fmt.Sprintf("resized image is %dx%d, want %dx%d", b.Dx(), b.Dy(), shape.Width, shape.Height),
		}
	}

	rgba, ok := img.(*image.RGBA)
	if !ok {
		rgba = image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
		b = rgba.Bounds()
	}

	out := make([]float32, 0, shape.Size())
	for y := b.Min.Y; y < b.Max.Y; y++ {
		off := rgba.PixOffset(b.Min.X, y)
		row := rgba.Pix[off : off+b.Dx()*4]
		for x := 0; x < b.Dx(); x++ {
			px := row[x*4 : x*4+3]
			out = append(out,
				float32(px[0])/255.0,
				float32(px[1])/255.0,
				float32(px[2])/255.0,
			)
		}
	}

	if len(out) != shape.Size() {
		return nil, &model.PreprocessingError{
			Reason: fmt.Sprintf("tensor has %d values, want %d", len(out), shape.Size()),
		}
	}
	return out, nil
}
