// Package badge renders a glucose status as a small icon image
package badge

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"github.com/sergeymakinen/go-ico"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/mrcode/nightscout-engine/internal/engine"
	"github.com/mrcode/nightscout-engine/internal/models"
	"github.com/mrcode/nightscout-engine/internal/trend"
)

// Format selects the encoded image container
type Format int

const (
	FormatPNG Format = iota
	FormatICO
)

const (
	size   = 64
	radius = 16

	colorUnknown = "#808080"
	colorStale   = "#9ca3af"
	colorUrgent  = "#ef4444"
	colorLow     = "#f97316"
	colorHigh    = "#facc15"
	colorInRange = "#4ade80"
)

// Render draws the current value, arrow and delta of a status
func Render(status *engine.Status, format Format) ([]byte, error) {
	text := "---"
	direction := trend.DirectionNone
	delta := ""
	if status != nil {
		text = status.GlucoseDisplay
		direction = status.Direction.Value
		if status.Direction.Display == nil {
			direction = status.Computed
		}
		if status.Delta != nil {
			delta = status.Delta.Display
		}
	}

	img, err := draw(text, delta, direction, StatusColor(status))
	if err != nil {
		return nil, err
	}

	if format == FormatICO {
		return toICO(img)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding badge: %w", err)
	}
	return buf.Bytes(), nil
}

// StatusColor returns the background colour for a status
func StatusColor(status *engine.Status) string {
	if status == nil {
		return colorUnknown
	}
	if status.Stale {
		return colorStale
	}

	switch status.Band {
	case models.StatusUrgentLow, models.StatusUrgentHigh:
		return colorUrgent
	case models.StatusLow:
		return colorLow
	case models.StatusHigh:
		return colorHigh
	default:
		return colorInRange
	}
}

func draw(text, delta string, direction trend.Direction, bgHex string) (image.Image, error) {
	dc := gg.NewContext(size, size)
	dc.SetRGBA(0, 0, 0, 0)
	dc.Clear()

	r, g, b := parseHexColor(bgHex)
	dc.SetRGB255(int(r), int(g), int(b))
	dc.DrawRoundedRectangle(0, 0, size, size, radius)
	dc.Fill()

	// Dark text on light backgrounds
	brightness := (int(r)*299 + int(g)*587 + int(b)*114) / 1000
	if brightness > 128 {
		dc.SetColor(color.Black)
	} else {
		dc.SetColor(color.White)
	}

	font, err := truetype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("parsing font: %w", err)
	}

	textSize := 34.0
	if len(text) > 3 {
		textSize = 26
	}
	dc.SetFontFace(truetype.NewFace(font, &truetype.Options{Size: textSize}))
	dc.DrawStringAnchored(text, size/2, size/2-12, 0.5, 0.5)

	if delta != "" {
		dc.SetFontFace(truetype.NewFace(font, &truetype.Options{Size: 14}))
		dc.DrawStringAnchored(delta, size/2-14, size-14, 0.5, 0.5)
		drawArrow(dc, size/2+16, size-14, 20, direction)
	} else {
		drawArrow(dc, size/2, size-16, 24, direction)
	}

	return dc.Image(), nil
}

// arrowAngle gives the rotation in degrees from pointing up and how many
// heads to draw. Zero heads means no arrow.
func arrowAngle(d trend.Direction) (angle float64, heads int) {
	switch d {
	case trend.DirectionTripleUp:
		return 0, 3
	case trend.DirectionDoubleUp:
		return 0, 2
	case trend.DirectionSingleUp:
		return 0, 1
	case trend.DirectionFortyFiveUp:
		return 45, 1
	case trend.DirectionFlat:
		return 90, 1
	case trend.DirectionFortyFiveDown:
		return 135, 1
	case trend.DirectionSingleDown:
		return 180, 1
	case trend.DirectionDoubleDown:
		return 180, 2
	case trend.DirectionTripleDown:
		return 180, 3
	default:
		return 0, 0
	}
}

func drawArrow(dc *gg.Context, x, y, length float64, d trend.Direction) {
	angle, heads := arrowAngle(d)
	if heads == 0 {
		return
	}

	dc.Push()
	defer dc.Pop()
	dc.Translate(x, y)
	dc.Rotate(gg.Radians(angle))

	if heads == 1 {
		drawSingleArrow(dc, 0, 0, length)
		return
	}
	step := length / float64(heads+1)
	scaled := length * 0.8
	for i := 0; i < heads; i++ {
		offset := (float64(i) - float64(heads-1)/2) * step
		drawSingleArrow(dc, 0, offset, scaled)
	}
}

func drawSingleArrow(dc *gg.Context, ox, oy, s float64) {
	w := s * 0.5

	dc.NewSubPath()
	dc.MoveTo(ox, oy-s/2)
	dc.LineTo(ox+w/2, oy)
	dc.LineTo(ox+w/6, oy)
	dc.LineTo(ox+w/6, oy+s/2)
	dc.LineTo(ox-w/6, oy+s/2)
	dc.LineTo(ox-w/6, oy)
	dc.LineTo(ox-w/2, oy)
	dc.ClosePath()
	dc.Fill()
}

func parseHexColor(hex string) (r, g, b byte) {
	if len(hex) == 7 && hex[0] == '#' {
		_, _ = fmt.Sscanf(hex, "#%02x%02x%02x", &r, &g, &b)
	}
	return
}

// toICO encodes the badge as a single-image ICO
func toICO(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := ico.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding badge icon: %w", err)
	}
	return buf.Bytes(), nil
}
