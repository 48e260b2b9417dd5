package canvas

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"
)

// render replays the op log onto an RGBA image and encodes it.
func render(c *Canvas, format string) ([]byte, error) {
	img := image.NewRGBA(image.Rect(0, 0, c.Width, c.Height))
	draw.Draw(img, img.Bounds(), &image.Uniform{color.White}, image.Point{}, draw.Src)

	for _, op := range c.Ops {
		switch op.Type {
		case "rect":
			drawRect(img, op.Params)
		case "circle":
			drawCircle(img, op.Params)
		case "line":
			drawLine(img, op.Params)
		}
		// text and path ops are carried in the log but are not
		// rasterized; json export preserves them.
	}

	var encFormat imaging.Format
	switch format {
	case "png":
		encFormat = imaging.PNG
	case "jpeg":
		encFormat = imaging.JPEG
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, encFormat); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func paramInt(params map[string]interface{}, key string) int {
	switch v := params[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return 0
}

func paramColor(params map[string]interface{}) color.RGBA {
	s, _ := params["color"].(string)
	return parseColor(s)
}

func parseColor(s string) color.RGBA {
	switch strings.ToLower(s) {
	case "", "black":
		return color.RGBA{0, 0, 0, 255}
	case "white":
		return color.RGBA{255, 255, 255, 255}
	case "red":
		return color.RGBA{255, 0, 0, 255}
	case "green":
		return color.RGBA{0, 128, 0, 255}
	case "blue":
		return color.RGBA{0, 0, 255, 255}
	}
	if strings.HasPrefix(s, "#") {
		hex := s[1:]
		if len(hex) == 3 {
			hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
		}
		if len(hex) == 6 {
			if v, err := strconv.ParseUint(hex, 16, 32); err == nil {
				return color.RGBA{uint8(v >> 16), uint8(v >> 8), uint8(v), 255}
			}
		}
	}
	return color.RGBA{0, 0, 0, 255}
}

func drawRect(img *image.RGBA, params map[string]interface{}) {
	x, y := paramInt(params, "x"), paramInt(params, "y")
	w, h := paramInt(params, "width"), paramInt(params, "height")
	col := paramColor(params)
	rect := image.Rect(x, y, x+w, y+h).Intersect(img.Bounds())
	draw.Draw(img, rect, &image.Uniform{col}, image.Point{}, draw.Src)
}

func drawCircle(img *image.RGBA, params map[string]interface{}) {
	cx, cy := paramInt(params, "x"), paramInt(params, "y")
	radius := paramInt(params, "radius")
	col := paramColor(params)
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			if dx*dx+dy*dy <= radius*radius {
				px, py := cx+dx, cy+dy
				if image.Pt(px, py).In(img.Bounds()) {
					img.Set(px, py, col)
				}
			}
		}
	}
}

func drawLine(img *image.RGBA, params map[string]interface{}) {
	x0, y0 := paramInt(params, "x1"), paramInt(params, "y1")
	x1, y1 := paramInt(params, "x2"), paramInt(params, "y2")
	col := paramColor(params)

	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	err := dx + dy
	for {
		if image.Pt(x0, y0).In(img.Bounds()) {
			img.Set(x0, y0, col)
		}
		if x0 == x1 && y0 == y1 {
			break
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x0 += sx
		}
		if e2 <= dx {
			err += dx
			y0 += sy
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
