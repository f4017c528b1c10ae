// Package render rasterizes game snapshots into preview images.
//
// The renderer only reads snapshots, so it can run on any goroutine while
// the run keeps ticking.
package render

import (
	"fmt"
	"image"
	"image/color"
	"io"
	"math"

	"survivor-arena/internal/game"

	"github.com/fogleman/gg"
	"golang.org/x/image/font/basicfont"
)

// MaxDimension caps either side of a rendered frame.
const MaxDimension = 4096

var (
	backgrounds = map[string]color.RGBA{
		"clear": {26, 26, 46, 255},
		"rain":  {20, 28, 44, 255},
		"snow":  {44, 48, 60, 255},
	}
	gridColor    = color.RGBA{255, 255, 255, 14}
	hpBarBack    = color.RGBA{40, 40, 40, 220}
	hpBarFill    = color.RGBA{255, 71, 87, 255}
	expBarFill   = color.RGBA{79, 172, 254, 255}
	overlayColor = color.RGBA{0, 0, 0, 170}
	white        = color.RGBA{255, 255, 255, 255}
)

const gridSpacing = 100.0

// Render draws snap at its physical screen size.
func Render(snap *game.GameSnapshot) image.Image {
	return frame(snap).Image()
}

// EncodePNG renders snap and writes it to w as PNG.
func EncodePNG(w io.Writer, snap *game.GameSnapshot) error {
	if err := frame(snap).EncodePNG(w); err != nil {
		return fmt.Errorf("failed to encode frame: %w", err)
	}
	return nil
}

// Size returns the pixel size a snapshot renders at.
func Size(snap *game.GameSnapshot) (int, int) {
	return dimension(snap.Camera.PhysicalWidth), dimension(snap.Camera.PhysicalHeight)
}

func dimension(v float64) int {
	n := int(math.Round(v))
	if n < 1 {
		return 1
	}
	if n > MaxDimension {
		return MaxDimension
	}
	return n
}

func frame(snap *game.GameSnapshot) *gg.Context {
	w, h := Size(snap)
	dc := gg.NewContext(w, h)
	dc.SetFontFace(basicfont.Face7x13)

	bg, ok := backgrounds[snap.Weather]
	if !ok {
		bg = backgrounds["clear"]
	}
	dc.SetColor(bg)
	dc.Clear()

	cam := snap.Camera
	scale := cam.Scale
	if scale <= 0 {
		scale = 1
	}

	// World layer: logical units, offset by camera and shake.
	dc.Push()
	dc.Scale(scale, scale)
	dc.Translate(-cam.X+cam.ShakeX, -cam.Y+cam.ShakeY)
	drawGrid(dc, cam)
	drawOrbs(dc, snap.Orbs)
	drawEnemies(dc, snap.Enemies)
	drawProjectiles(dc, snap.Projectiles)
	drawExplosions(dc, snap.Explosions)
	drawPlayer(dc, snap.Player)
	drawParticles(dc, snap.Particles)
	drawTexts(dc, snap.Texts)
	dc.Pop()

	drawHUD(dc, snap, float64(w), float64(h))
	return dc
}

func drawGrid(dc *gg.Context, cam game.CameraSnapshot) {
	dc.SetColor(gridColor)
	dc.SetLineWidth(1)
	startX := math.Floor(cam.X/gridSpacing) * gridSpacing
	startY := math.Floor(cam.Y/gridSpacing) * gridSpacing
	for x := startX; x <= cam.X+cam.ViewWidth; x += gridSpacing {
		dc.DrawLine(x, cam.Y, x, cam.Y+cam.ViewHeight)
	}
	for y := startY; y <= cam.Y+cam.ViewHeight; y += gridSpacing {
		dc.DrawLine(cam.X, y, cam.X+cam.ViewWidth, y)
	}
	dc.Stroke()
}

func drawOrbs(dc *gg.Context, orbs []game.OrbSnapshot) {
	for _, o := range orbs {
		dc.SetColor(parseHexColor(o.Color))
		dc.DrawCircle(o.X, o.Y, o.Radius)
		dc.Fill()
	}
}

func drawEnemies(dc *gg.Context, enemies []game.EnemySnapshot) {
	for _, en := range enemies {
		dc.SetColor(parseHexColor(en.Color))
		dc.DrawRectangle(en.X-en.Width/2, en.Y-en.Height/2, en.Width, en.Height)
		dc.Fill()

		if en.Kind == "boss" && en.MaxHP > 0 {
			drawBar(dc, en.X-en.Width/2, en.Y-en.Height/2-10, en.Width, 5, en.HP/en.MaxHP, hpBarFill)
		}
	}
}

func drawProjectiles(dc *gg.Context, projectiles []game.ProjectileSnapshot) {
	for _, p := range projectiles {
		c := parseHexColor(p.Color)
		switch p.Kind {
		case "knife":
			dc.Push()
			dc.Translate(p.X, p.Y)
			dc.Rotate(p.Angle)
			dc.SetColor(c)
			dc.SetLineWidth(3)
			dc.DrawLine(-p.Radius*2, 0, p.Radius*2, 0)
			dc.Stroke()
			dc.Pop()
		case "bomb":
			// Shadow on the ground, bomb raised by its arc height.
			dc.SetColor(color.RGBA{0, 0, 0, 90})
			dc.DrawEllipse(p.X, p.Y, p.Radius, p.Radius/2)
			dc.Fill()
			dc.SetColor(c)
			dc.DrawCircle(p.X, p.Y+p.Z, p.Radius)
			dc.Fill()
		case "aura":
			c.A = 50
			dc.SetColor(c)
			dc.DrawCircle(p.X, p.Y, p.Radius)
			dc.Fill()
		}
	}
}

func drawExplosions(dc *gg.Context, explosions []game.ExplosionSnapshot) {
	for _, x := range explosions {
		alpha := 1 - x.Progress
		dc.SetColor(color.RGBA{255, 165, 2, uint8(alpha * 180)})
		dc.DrawCircle(x.X, x.Y, x.Radius*(0.6+0.4*x.Progress))
		dc.Fill()
	}
}

func drawPlayer(dc *gg.Context, p game.PlayerSnapshot) {
	c := parseHexColor(p.Color)
	if p.Invulnerable {
		c.A = 128
	}
	dc.SetColor(c)
	dc.DrawCircle(p.X, p.Y, p.Radius)
	dc.Fill()
}

func drawParticles(dc *gg.Context, particles []game.ParticleSnapshot) {
	for _, p := range particles {
		c := parseHexColor(p.Color)
		c.A = uint8(p.Alpha * 255)
		dc.SetColor(c)
		dc.DrawCircle(p.X, p.Y, p.Size)
		dc.Fill()
	}
}

func drawTexts(dc *gg.Context, texts []game.TextSnapshot) {
	for _, t := range texts {
		c := parseHexColor(t.Color)
		c.A = uint8(t.Alpha * 255)
		dc.SetColor(c)
		dc.DrawStringAnchored(t.Text, t.X, t.Y, 0.5, 0.5)
	}
}

// drawHUD draws screen-space UI: bars, counters and state overlays.
func drawHUD(dc *gg.Context, snap *game.GameSnapshot, w, h float64) {
	p := snap.Player
	margin := 12.0
	barW := math.Min(240, w-2*margin)

	if p.MaxHP > 0 {
		drawBar(dc, margin, margin, barW, 10, p.HP/p.MaxHP, hpBarFill)
	}
	if p.NextLevelExp > 0 {
		drawBar(dc, margin, margin+16, barW, 6, p.Exp/p.NextLevelExp, expBarFill)
	}

	dc.SetColor(white)
	minutes := int(snap.Elapsed) / 60
	seconds := int(snap.Elapsed) % 60
	dc.DrawString(fmt.Sprintf("LV %d   %02d:%02d   %d kills", p.Level, minutes, seconds, snap.Kills), margin, margin+40)

	if snap.BossWarning {
		dc.SetColor(hpBarFill)
		dc.DrawStringAnchored("WARNING: BOSS APPROACHING", w/2, h*0.2, 0.5, 0.5)
	}

	switch snap.State {
	case "start":
		drawOverlay(dc, w, h, "SURVIVOR ARENA", "press start")
	case "levelup":
		drawOverlay(dc, w, h, "LEVEL UP", "")
		for i, opt := range snap.Options {
			dc.SetColor(white)
			line := opt.Name
			if opt.IsNew {
				line += " (new)"
			}
			dc.DrawStringAnchored(line, w/2, h/2+float64(i+1)*20, 0.5, 0.5)
		}
	case "gameover":
		sub := ""
		if s := snap.Summary; s != nil {
			sub = fmt.Sprintf("%.0fs   level %d   %d kills", s.Elapsed, s.Level, s.Kills)
		}
		drawOverlay(dc, w, h, "GAME OVER", sub)
	}
}

func drawOverlay(dc *gg.Context, w, h float64, title, subtitle string) {
	dc.SetColor(overlayColor)
	dc.DrawRectangle(0, 0, w, h)
	dc.Fill()
	dc.SetColor(white)
	dc.DrawStringAnchored(title, w/2, h/2-20, 0.5, 0.5)
	if subtitle != "" {
		dc.DrawStringAnchored(subtitle, w/2, h/2, 0.5, 0.5)
	}
}

func drawBar(dc *gg.Context, x, y, w, h, frac float64, fill color.Color) {
	frac = math.Max(0, math.Min(1, frac))
	dc.SetColor(hpBarBack)
	dc.DrawRectangle(x, y, w, h)
	dc.Fill()
	dc.SetColor(fill)
	dc.DrawRectangle(x, y, w*frac, h)
	dc.Fill()
}

// parseHexColor converts "#rrggbb" to RGBA. Anything else is white.
func parseHexColor(hex string) color.RGBA {
	if len(hex) != 7 || hex[0] != '#' {
		return white
	}
	return color.RGBA{
		R: hexToByte(hex[1], hex[2]),
		G: hexToByte(hex[3], hex[4]),
		B: hexToByte(hex[5], hex[6]),
		A: 255,
	}
}

func hexToByte(h1, h2 byte) uint8 {
	return hexCharToNibble(h1)<<4 | hexCharToNibble(h2)
}

func hexCharToNibble(c byte) uint8 {
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10
	default:
		return 0
	}
}
