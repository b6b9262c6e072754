package captcha

import (
	"bytes"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/png"
	mrand "math/rand"
)

// Render dibuja el valor como PNG: dígitos de fuente bitmap 5x7 escalados,
// con jitter vertical por dígito, ruido de fondo y líneas de distracción.
// No hay ninguna librería de captcha en el ecosistema que usemos, así que el
// render es nuestro; la dificultad visual es deliberadamente modesta.
func Render(value string) ([]byte, error) {
	const (
		scale   = 6
		glyphW  = 5
		glyphH  = 7
		padding = 14
		gap     = 10
		jitter  = 8
	)

	for _, r := range value {
		if r < '0' || r > '9' {
			return nil, errors.New("captcha: render solo soporta dígitos")
		}
	}

	w := padding*2 + len(value)*(glyphW*scale) + (len(value)-1)*gap
	h := padding*2 + glyphH*scale + jitter
	img := image.NewRGBA(image.Rect(0, 0, w, h))

	bg := color.RGBA{245, 246, 248, 255}
	fg := color.RGBA{32, 42, 68, 255}
	noiseC := color.RGBA{150, 158, 175, 255}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, bg)
		}
	}

	// rand determinístico por valor: misma imagen para el mismo desafío.
	seed := int64(0)
	for _, r := range value {
		seed = seed*31 + int64(r)
	}
	rng := mrand.New(mrand.NewSource(seed))

	// Ruido de fondo.
	for i := 0; i < w*h/40; i++ {
		img.Set(rng.Intn(w), rng.Intn(h), noiseC)
	}

	// Dígitos.
	for i, r := range value {
		x0 := padding + i*(glyphW*scale+gap)
		y0 := padding/2 + rng.Intn(jitter)
		drawGlyph(img, digitFont[r-'0'], x0, y0, scale, fg)
	}

	// Dos líneas de distracción.
	for i := 0; i < 2; i++ {
		y := rng.Intn(h)
		dy := rng.Intn(5) - 2
		for x := 0; x < w; x++ {
			yy := y + (x*dy)/w
			if yy >= 0 && yy < h {
				img.Set(x, yy, noiseC)
			}
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DataURI envuelve el PNG como data URI para respuestas JSON.
func DataURI(pngBytes []byte) string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngBytes)
}

func drawGlyph(img *image.RGBA, glyph [7]uint8, x0, y0, scale int, c color.Color) {
	for row := 0; row < 7; row++ {
		bits := glyph[row]
		for col := 0; col < 5; col++ {
			if bits&(1<<(4-col)) == 0 {
				continue
			}
			for dy := 0; dy < scale; dy++ {
				for dx := 0; dx < scale; dx++ {
					img.Set(x0+col*scale+dx, y0+row*scale+dy, c)
				}
			}
		}
	}
}

// digitFont es una fuente bitmap 5x7 para '0'..'9'; cada fila usa los 5 bits
// bajos, MSB a la izquierda.
var digitFont = [10][7]uint8{
	{0b01110, 0b10001, 0b10011, 0b10101, 0b11001, 0b10001, 0b01110}, // 0
	{0b00100, 0b01100, 0b00100, 0b00100, 0b00100, 0b00100, 0b01110}, // 1
	{0b01110, 0b10001, 0b00001, 0b00010, 0b00100, 0b01000, 0b11111}, // 2
	{0b11111, 0b00010, 0b00100, 0b00010, 0b00001, 0b10001, 0b01110}, // 3
	{0b00010, 0b00110, 0b01010, 0b10010, 0b11111, 0b00010, 0b00010}, // 4
	{0b11111, 0b10000, 0b11110, 0b00001, 0b00001, 0b10001, 0b01110}, // 5
	{0b00110, 0b01000, 0b10000, 0b11110, 0b10001, 0b10001, 0b01110}, // 6
	{0b11111, 0b00001, 0b00010, 0b00100, 0b01000, 0b01000, 0b01000}, // 7
	{0b01110, 0b10001, 0b10001, 0b01110, 0b10001, 0b10001, 0b01110}, // 8
	{0b01110, 0b10001, 0b10001, 0b01111, 0b00001, 0b00010, 0b01100}, // 9
}
