package maprender

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg" // static map tiles may be JPEG
	_ "image/png"

	"github.com/couchcryptid/quakewatch/internal/domain"
	"github.com/fogleman/gg"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
)

const (
	titleFill    = "#ffffff"
	titleStroke  = "#010c80"
	strokeRadius = 8
	titleOffsetY = 30
	bandHeight   = 28
)

// overlay draws title and the watermark onto the raw tile and returns a PNG.
func (r *Renderer) overlay(raw []byte, title string) ([]byte, error) {
	base, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: decode base map: %w", domain.ErrAsset, err)
	}

	dc := gg.NewContextForImage(base)
	face, err := r.fontFace()
	if err != nil {
		return nil, err
	}
	dc.SetFontFace(face)

	if err := r.watermark(dc); err != nil {
		return nil, err
	}

	x := float64(dc.Width()) / 2
	y := float64(dc.Height())/2 - titleOffsetY
	drawOutlined(dc, title, x, y)

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("%w: encode map: %w", domain.ErrAsset, err)
	}
	return buf.Bytes(), nil
}

// drawOutlined draws s centered on (x, y) with a filled disc of offset copies
// in the stroke color beneath the white text.
func drawOutlined(dc *gg.Context, s string, x, y float64) {
	dc.SetHexColor(titleStroke)
	for dy := -strokeRadius; dy <= strokeRadius; dy++ {
		for dx := -strokeRadius; dx <= strokeRadius; dx++ {
			if dx*dx+dy*dy > strokeRadius*strokeRadius {
				continue
			}
			dc.DrawStringAnchored(s, x+float64(dx), y+float64(dy), 0.5, 0.5)
		}
	}
	dc.SetHexColor(titleFill)
	dc.DrawStringAnchored(s, x, y, 0.5, 0.5)
}

func (r *Renderer) fontFace() (font.Face, error) {
	if r.opts.FontFile != "" {
		face, err := gg.LoadFontFace(r.opts.FontFile, r.opts.FontSize)
		if err != nil {
			return nil, fmt.Errorf("%w: load font %s: %w", domain.ErrAsset, r.opts.FontFile, err)
		}
		return face, nil
	}

	f, err := opentype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("%w: parse embedded font: %w", domain.ErrAsset, err)
	}
	face, err := opentype.NewFace(f, &opentype.FaceOptions{Size: r.opts.FontSize, DPI: 72, Hinting: font.HintingFull})
	if err != nil {
		return nil, fmt.Errorf("%w: embedded font face: %w", domain.ErrAsset, err)
	}
	return face, nil
}

func (r *Renderer) watermark(dc *gg.Context) error {
	if r.opts.WatermarkFile == "" {
		w, h := float64(dc.Width()), float64(dc.Height())
		dc.SetRGBA(0, 0, 0, 0.35)
		dc.DrawRectangle(0, h-bandHeight, w, bandHeight)
		dc.Fill()
		return nil
	}

	mark, err := gg.LoadImage(r.opts.WatermarkFile)
	if err != nil {
		return fmt.Errorf("%w: load watermark %s: %w", domain.ErrAsset, r.opts.WatermarkFile, err)
	}
	dc.DrawImage(mark, 0, 0)
	return nil
}
