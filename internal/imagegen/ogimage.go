// Package imagegen draws the dashboard's Open Graph share card.
package imagegen

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"sync"
	"time"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// OGImageData contains the dynamic data for the OG image.
type OGImageData struct {
	Title    string
	Subtitle string // e.g. "12 stations · 2013-03-01 to 2017-02-28"
	Bars     []Bar  // optional ranking strip along the bottom
}

// Bar is one station's value in the ranking strip.
type Bar struct {
	Label     string
	Value     float64
	Highlight bool
}

// OGImageCache caches the generated OG image for a short period.
type OGImageCache struct {
	mu        sync.RWMutex
	data      []byte
	expiresAt time.Time
	cacheTTL  time.Duration
}

// NewOGImageCache creates a new OG image cache with the specified TTL.
func NewOGImageCache(ttl time.Duration) *OGImageCache {
	return &OGImageCache{
		cacheTTL: ttl,
	}
}

// Get returns the cached OG image if still valid.
func (c *OGImageCache) Get() ([]byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.data == nil || time.Now().After(c.expiresAt) {
		return nil, false
	}
	return c.data, true
}

// Set stores a new OG image in the cache.
func (c *OGImageCache) Set(data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.data = data
	c.expiresAt = time.Now().Add(c.cacheTTL)
}

// Invalidate drops the cached image, e.g. after new data is loaded.
func (c *OGImageCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = nil
}

// OGWidth and OGHeight are the standard Open Graph image dimensions.
const (
	OGWidth  = 1200
	OGHeight = 630
)

var (
	white     = color.RGBA{255, 255, 255, 255}
	lightGray = color.RGBA{200, 200, 200, 255}
	barBlue   = color.RGBA{0x4c, 0x8e, 0xda, 255}
	barRed    = color.RGBA{0xe0, 0x4b, 0x4b, 255}
)

// GenerateOGImage draws the share card: a dark gradient background, the
// title and subtitle, and an optional bar strip.
func GenerateOGImage(data OGImageData) ([]byte, error) {
	img := image.NewRGBA(image.Rect(0, 0, OGWidth, OGHeight))

	for y := 0; y < OGHeight; y++ {
		progress := float64(y) / float64(OGHeight)
		r := uint8(20 + progress*10)
		g := uint8(24 + progress*15)
		b := uint8(40 + progress*20)
		for x := 0; x < OGWidth; x++ {
			img.SetRGBA(x, y, color.RGBA{r, g, b, 255})
		}
	}

	drawText(img, data.Title, 60, 70, 5, white)
	if data.Subtitle != "" {
		drawText(img, data.Subtitle, 60, 170, 3, lightGray)
	}
	drawBars(img, data.Bars)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode OG image: %w", err)
	}
	return buf.Bytes(), nil
}

// drawBars fills the lower part of the card with vertical bars scaled to the
// largest value.
func drawBars(img *image.RGBA, bars []Bar) {
	if len(bars) == 0 {
		return
	}
	maxVal := 0.0
	for _, b := range bars {
		maxVal = math.Max(maxVal, b.Value)
	}
	if maxVal <= 0 {
		return
	}

	const (
		left, right = 60, OGWidth - 60
		top, bottom = 260, OGHeight - 60
	)
	slot := (right - left) / len(bars)
	gap := slot / 5
	for i, b := range bars {
		h := int(float64(bottom-top) * b.Value / maxVal)
		x0 := left + i*slot + gap/2
		x1 := x0 + slot - gap
		col := barBlue
		if b.Highlight {
			col = barRed
		}
		for y := bottom - h; y < bottom; y++ {
			for x := x0; x < x1; x++ {
				img.SetRGBA(x, y, col)
			}
		}
		label := b.Label
		if n := (x1 - x0) / 7; len(label) > n && n > 0 {
			label = label[:n]
		}
		drawText(img, label, x0, bottom+8, 1, lightGray)
	}
}

// drawText draws text with its top-left corner at x, y. The fixed 7x13 face
// is rendered once and scaled up by nearest neighbour.
func drawText(img *image.RGBA, text string, x, y, scale int, col color.Color) {
	face := basicfont.Face7x13
	width := font.MeasureString(face, text).Ceil()
	height := face.Height
	if width == 0 {
		return
	}

	mask := image.NewAlpha(image.Rect(0, 0, width, height))
	d := &font.Drawer{
		Dst:  mask,
		Src:  image.Opaque,
		Face: face,
		Dot:  fixed.Point26_6{X: 0, Y: fixed.I(face.Ascent)},
	}
	d.DrawString(text)

	cr, cg, cb, _ := col.RGBA()
	bounds := img.Bounds()
	for sy := 0; sy < height; sy++ {
		for sx := 0; sx < width; sx++ {
			if mask.AlphaAt(sx, sy).A == 0 {
				continue
			}
			for dy := 0; dy < scale; dy++ {
				for dx := 0; dx < scale; dx++ {
					px, py := x+sx*scale+dx, y+sy*scale+dy
					if image.Pt(px, py).In(bounds) {
						img.SetRGBA(px, py, color.RGBA{uint8(cr >> 8), uint8(cg >> 8), uint8(cb >> 8), 255})
					}
				}
			}
		}
	}
}
