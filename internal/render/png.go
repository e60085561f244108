package render

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"strconv"

	"github.com/park285/stoneboard/internal/board"
	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

var labelColor = color.RGBA{59, 47, 30, 255}

// PNG rasterizes the SVG board at size×size pixels and adds row and column
// numbers in the padding.
func PNG(ctx context.Context, state board.BoardState, size int) ([]byte, error) {
	img, err := Image(ctx, state, size)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// Image is PNG without the encoding step.
func Image(ctx context.Context, state board.BoardState, size int) (*image.RGBA, error) {
	if size <= 0 {
		return nil, fmt.Errorf("invalid image size %d", size)
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	icon, err := oksvg.ReadIconStream(bytes.NewReader(SVG(state)))
	if err != nil {
		return nil, fmt.Errorf("parse board svg: %w", err)
	}
	icon.SetTarget(0, 0, float64(size), float64(size))

	img := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.Transparent), image.Point{}, draw.Src)
	scanner := rasterx.NewScannerGV(size, size, img, img.Bounds())
	raster := rasterx.NewDasher(size, size, scanner)
	icon.Draw(raster, 1.0)

	drawLabels(img, size)

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	return img, nil
}

func drawLabels(dst draw.Image, size int) {
	face := basicfont.Face7x13
	drawer := &font.Drawer{Dst: dst, Face: face, Src: image.NewUniform(labelColor)}
	space := float64(size) / float64(board.Size+1)
	metrics := face.Metrics()
	ascent := metrics.Ascent.Ceil()
	for i := 1; i <= board.Size; i++ {
		text := strconv.Itoa(i)
		width := drawer.MeasureString(text).Round()
		center := int(float64(i) * space)

		// column numbers above the grid
		drawer.Dot = fixed.P(center-width/2, int(space/2)+ascent/2)
		drawer.DrawString(text)

		// row numbers left of the grid
		drawer.Dot = fixed.P(int(space/2)-width/2, center+ascent/2)
		drawer.DrawString(text)
	}
}
