package console

import (
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"os"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/teranos/posecam"
)

// CardConfig defines the layout of a status card
type CardConfig struct {
	Columns    int        // Text width in characters
	Rows       int        // Text height in lines
	PlotHeight int        // Trajectory panel height in pixels, 0 for none
	Background color.RGBA // Background color
	Foreground color.RGBA // Text color
	Left       color.RGBA // Left hand trajectory color
	Right      color.RGBA // Right hand trajectory color
}

// DefaultCardConfig returns a dark 60x12 card with a 160px trajectory panel.
func DefaultCardConfig() CardConfig {
	return CardConfig{
		Columns:    60,
		Rows:       12,
		PlotHeight: 160,
		Background: color.RGBA{R: 16, G: 18, B: 24, A: 255},
		Foreground: color.RGBA{R: 220, G: 220, B: 220, A: 255},
		Left:       color.RGBA{R: 80, G: 160, B: 255, A: 255},
		Right:      color.RGBA{R: 255, G: 120, B: 80, A: 255},
	}
}

// Card renders a capture summary and a front view of both hand trajectories
// to an image.
type Card struct {
	config     CardConfig
	buffer     [][]rune // Character buffer
	trails     [2][]posecam.Vec3
	charWidth  int
	charHeight int
	font       font.Face
}

// NewCard creates an empty card.
func NewCard(config CardConfig) *Card {
	buffer := make([][]rune, config.Rows)
	for i := range buffer {
		buffer[i] = make([]rune, config.Columns)
	}
	return &Card{
		config:     config,
		buffer:     buffer,
		charWidth:  7,
		charHeight: 16,
		font:       basicfont.Face7x13,
	}
}

// SetText replaces the text area. Lines and columns beyond the card are cut.
func (c *Card) SetText(text string) {
	for _, row := range c.buffer {
		for j := range row {
			row[j] = ' '
		}
	}
	for lineIdx, line := range strings.Split(text, "\n") {
		if lineIdx >= c.config.Rows {
			break
		}
		for charIdx, char := range []rune(line) {
			if charIdx >= c.config.Columns {
				break
			}
			c.buffer[lineIdx][charIdx] = char
		}
	}
}

// SetTrajectories records the present hand positions of poses for the plot.
func (c *Card) SetTrajectories(poses []posecam.PoseRecord) {
	for _, h := range posecam.Hands {
		c.trails[h] = c.trails[h][:0]
		for _, rec := range poses {
			if pos, ok := rec.Hand(h).Position(); ok {
				c.trails[h] = append(c.trails[h], pos)
			}
		}
	}
}

// Image renders the card.
func (c *Card) Image() *image.RGBA {
	width := c.config.Columns * c.charWidth
	textHeight := c.config.Rows * c.charHeight
	img := image.NewRGBA(image.Rect(0, 0, width, textHeight+c.config.PlotHeight))
	draw.Draw(img, img.Bounds(), image.NewUniform(c.config.Background), image.Point{}, draw.Src)

	drawer := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c.config.Foreground),
		Face: c.font,
	}
	for lineIdx, line := range c.buffer {
		for charIdx, char := range line {
			if char == ' ' || char == 0 {
				continue
			}
			drawer.Dot = fixed.Point26_6{
				X: fixed.I(charIdx * c.charWidth),
				Y: fixed.I((lineIdx + 1) * c.charHeight),
			}
			drawer.DrawString(string(char))
		}
	}

	if c.config.PlotHeight > 0 {
		c.plot(img, image.Rect(0, textHeight, width, textHeight+c.config.PlotHeight))
	}
	return img
}

// plot draws both trails into panel, scaled together so relative hand
// positions are preserved. X runs right, Y up.
func (c *Card) plot(img *image.RGBA, panel image.Rectangle) {
	var (
		minX, maxX, minY, maxY float32
		seen                   bool
	)
	for _, trail := range c.trails {
		for _, p := range trail {
			if !seen {
				minX, maxX, minY, maxY = p.X, p.X, p.Y, p.Y
				seen = true
				continue
			}
			minX, maxX = min(minX, p.X), max(maxX, p.X)
			minY, maxY = min(minY, p.Y), max(maxY, p.Y)
		}
	}
	if !seen {
		return
	}

	span := max(maxX-minX, maxY-minY)
	if span == 0 {
		span = 1
	}
	const margin = 8
	scale := float32(min(panel.Dx(), panel.Dy())-2*margin) / span

	colors := [2]color.RGBA{c.config.Left, c.config.Right}
	for h, trail := range c.trails {
		for _, p := range trail {
			x := panel.Min.X + margin + int((p.X-minX)*scale)
			y := panel.Max.Y - margin - int((p.Y-minY)*scale)
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					img.SetRGBA(x+dx, y+dy, colors[h])
				}
			}
		}
	}
}

// Encode writes the card as PNG.
func (c *Card) Encode(w io.Writer) error {
	return png.Encode(w, c.Image())
}

// Save writes the card as a PNG file.
func (c *Card) Save(filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	if err := c.Encode(file); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}
