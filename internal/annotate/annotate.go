package annotate

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"strconv"
	"strings"

	"object-detection-sensor/internal/detection"

	"github.com/disintegration/imaging"
	"github.com/lucasb-eyer/go-colorful"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"golang.org/x/image/colornames"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

// Text is drawn this far right of and above the box corner.
const (
	textOffsetX = 2
	textOffsetY = 10
)

// Annotator draws bounding boxes of matched labels onto snapshot images.
type Annotator struct {
	fs    afero.Fs
	style detection.BoxStyle
	face  font.Face
}

// New creates an annotator. The font face is built once from the bundled Go font.
func New(fs afero.Fs, style detection.BoxStyle) (*Annotator, error) {
	f, err := opentype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("failed to parse font: %w", err)
	}
	size := style.FontSize
	if size <= 0 {
		size = 25
	}
	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    float64(size),
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create font face: %w", err)
	}
	return &Annotator{fs: fs, style: style, face: face}, nil
}

// Annotate reads srcPath, draws every instance of every label in targets and
// writes the result as PNG to dstPath.
func (a *Annotator) Annotate(srcPath, dstPath string, labels []detection.Label, targets []string) error {
	boxColor, err := ParseColor(a.style.Color)
	if err != nil {
		return err
	}
	strokeColor := boxColor
	if a.style.StrokeColor != "" {
		if strokeColor, err = ParseColor(a.style.StrokeColor); err != nil {
			return err
		}
	}

	src, err := a.fs.Open(srcPath)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", srcPath, err)
	}
	img, err := imaging.Decode(src)
	src.Close()
	if err != nil {
		return fmt.Errorf("failed to decode %s: %w", srcPath, err)
	}

	bounds := img.Bounds()
	canvas := image.NewRGBA(bounds)
	draw.Draw(canvas, bounds, img, bounds.Min, draw.Src)

	drawn := 0
	for _, label := range detection.MatchingLabels(labels, targets) {
		for _, inst := range label.Instances {
			r := PixelRect(inst.BoundingBox, bounds)
			a.drawBox(canvas, r, boxColor)
			a.drawText(canvas, r.Min.X+textOffsetX, r.Min.Y-textOffsetY, Caption(label.Name, inst.Confidence), boxColor, strokeColor)
			drawn++
		}
	}

	out, err := a.fs.Create(dstPath)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dstPath, err)
	}
	defer out.Close()
	if err := imaging.Encode(out, canvas, imaging.PNG); err != nil {
		return fmt.Errorf("failed to encode %s: %w", dstPath, err)
	}

	log.Debugf("Wrote %s with %d boxes", dstPath, drawn)
	return nil
}

// PixelRect converts a fractional bounding box to image coordinates.
func PixelRect(bb detection.BoundingBox, bounds image.Rectangle) image.Rectangle {
	w := float64(bounds.Dx())
	h := float64(bounds.Dy())
	x1 := bb.Left * w
	y1 := bb.Top * h
	x2 := x1 + w*bb.Width
	y2 := y1 + h*bb.Height
	return image.Rect(
		bounds.Min.X+int(x1), bounds.Min.Y+int(y1),
		bounds.Min.X+int(x2), bounds.Min.Y+int(y2),
	)
}

// Caption is the text drawn next to a box.
func Caption(name string, confidence float64) string {
	return name + ": " + strconv.FormatFloat(confidence, 'f', -1, 64) + "%"
}

// drawBox outlines r inwards with the configured line width.
func (a *Annotator) drawBox(dst *image.RGBA, r image.Rectangle, c color.Color) {
	lw := max(a.style.Width, 1)
	u := image.NewUniform(c)
	edges := []image.Rectangle{
		image.Rect(r.Min.X, r.Min.Y, r.Max.X+1, r.Min.Y+lw),
		image.Rect(r.Min.X, r.Max.Y-lw+1, r.Max.X+1, r.Max.Y+1),
		image.Rect(r.Min.X, r.Min.Y, r.Min.X+lw, r.Max.Y+1),
		image.Rect(r.Max.X-lw+1, r.Min.Y, r.Max.X+1, r.Max.Y+1),
	}
	for _, e := range edges {
		draw.Draw(dst, e.Intersect(dst.Bounds()), u, image.Point{}, draw.Over)
	}
}

// drawText renders text with its top-left corner at (x, y). The outline is
// drawn first by repeating the text at every offset within the stroke width.
func (a *Annotator) drawText(dst *image.RGBA, x, y int, text string, fill, stroke color.Color) {
	baseline := y + a.face.Metrics().Ascent.Ceil()
	d := &font.Drawer{Dst: dst, Face: a.face}

	if sw := a.style.StrokeWidth; sw > 0 {
		d.Src = image.NewUniform(stroke)
		for dx := -sw; dx <= sw; dx++ {
			for dy := -sw; dy <= sw; dy++ {
				if dx == 0 && dy == 0 {
					continue
				}
				d.Dot = fixed.P(x+dx, baseline+dy)
				d.DrawString(text)
			}
		}
	}

	d.Src = image.NewUniform(fill)
	d.Dot = fixed.P(x, baseline)
	d.DrawString(text)
}

// ParseColor accepts an SVG/X11 color name in any case or a #rgb / #rrggbb value.
func ParseColor(s string) (color.Color, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if c, ok := colornames.Map[name]; ok {
		return c, nil
	}
	if strings.HasPrefix(name, "#") {
		c, err := colorful.Hex(name)
		if err != nil {
			return nil, fmt.Errorf("invalid color %q: %w", s, err)
		}
		return c, nil
	}
	return nil, fmt.Errorf("unknown color %q", s)
}
