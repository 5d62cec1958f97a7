package imagepkg

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

const (
	cardW   = 215
	cardH   = 300
	gap     = 8
	margin  = 48
	columns = 10
	// copies beyond this are not drawn as extra layers
	maxStack = 4
	stackOff = 6
)

var (
	background  = color.NRGBA{R: 0xee, G: 0xee, B: 0xee, A: 0xff}
	placeholder = color.NRGBA{R: 0xbb, G: 0xbb, B: 0xc4, A: 0xff}
	stackShade  = color.NRGBA{R: 0x55, G: 0x55, B: 0x60, A: 0xff}
)

// SheetCard is one tile of a collection sheet. A nil Image draws a blank
// placeholder so the layout still shows the entry.
type SheetCard struct {
	Image image.Image
	Count int
}

// ComposeCollectionSheet lays the cards out in a grid, ten per row. Each
// extra copy adds a shaded layer behind the tile, up to four.
func ComposeCollectionSheet(tiles []SheetCard, qr image.Image) image.Image {
	rows := (len(tiles) + columns - 1) / columns
	if rows == 0 {
		rows = 1
	}
	cellW := cardW + gap + maxStack*stackOff
	cellH := cardH + gap + maxStack*stackOff
	W := 2*margin + columns*cellW
	H := 2*margin + rows*cellH
	qrSize := 0
	if qr != nil {
		qrSize = 400
		H += qrSize + gap
	}
	canvas := imaging.New(W, H, background)

	for i, t := range tiles {
		x := margin + (i%columns)*cellW
		y := margin + (i/columns)*cellH
		layers := t.Count - 1
		if layers > maxStack {
			layers = maxStack
		}
		for l := layers; l >= 1; l-- {
			shadow := imaging.New(cardW, cardH, stackShade)
			canvas = imaging.Paste(canvas, shadow, image.Pt(x+l*stackOff, y+l*stackOff))
		}
		var tile image.Image
		if t.Image != nil {
			tile = imaging.Fill(t.Image, cardW, cardH, imaging.Center, imaging.Lanczos)
		} else {
			tile = imaging.New(cardW, cardH, placeholder)
		}
		canvas = imaging.Paste(canvas, tile, image.Pt(x, y))
	}

	// draw QR at bottom right if provided
	if qr != nil {
		q := imaging.Resize(qr, qrSize, qrSize, imaging.Lanczos)
		canvas = imaging.Paste(canvas, q, image.Pt(W-margin-qrSize, H-margin-qrSize))
	}
	return canvas
}
