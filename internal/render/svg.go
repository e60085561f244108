package render

import (
	"fmt"
	"strings"

	"github.com/park285/stoneboard/internal/board"
)

const (
	// ViewBox is the side of the square SVG coordinate space.
	ViewBox = 600
	// Space is the distance between grid lines; one space of padding surrounds the grid.
	Space = ViewBox / (board.Size + 1)
)

// starPoints are (row, col) of the marked intersections.
var starPoints = [][2]int{{3, 3}, {3, 7}, {5, 5}, {7, 3}, {7, 7}}

const (
	colorBoard       = "#dcb35c"
	colorLine        = "#3b2f1e"
	colorBlack       = "#111111"
	colorWhite       = "#f4f4f0"
	colorWhiteStroke = "#333333"
	colorRemove      = "#d62828"
)

// SVG builds the board document: grid, star points, stones, then the preview
// on top. Styling is inline so rasterizers without CSS support draw it too.
func SVG(state board.BoardState) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %d %d" width="%d" height="%d" preserveAspectRatio="xMidYMid meet">`, ViewBox, ViewBox, ViewBox, ViewBox)
	b.WriteString("\n")
	fmt.Fprintf(&b, `<rect x="0" y="0" width="%d" height="%d" fill="%s"/>`+"\n", ViewBox, ViewBox, colorBoard)

	for i := 1; i <= board.Size; i++ {
		p := i * Space
		fmt.Fprintf(&b, `<line class="hGrid-line" x1="%d" y1="%d" x2="%d" y2="%d" stroke="%s" stroke-width="2"/>`+"\n", Space, p, ViewBox-Space, p, colorLine)
		fmt.Fprintf(&b, `<line class="vGrid-line" x1="%d" y1="%d" x2="%d" y2="%d" stroke="%s" stroke-width="2"/>`+"\n", p, Space, p, ViewBox-Space, colorLine)
	}
	for _, sp := range starPoints {
		fmt.Fprintf(&b, `<circle class="grid-point" cx="%d" cy="%d" r="4" fill="%s"/>`+"\n", sp[1]*Space, sp[0]*Space, colorLine)
	}

	for _, mv := range state.Stones {
		if !board.InBounds(mv.Row, mv.Col) {
			continue
		}
		switch mv.Color {
		case board.Black:
			stone(&b, "black stone", mv.Row, mv.Col, colorBlack, "", 1)
		case board.White:
			stone(&b, "white stone", mv.Row, mv.Col, colorWhite, colorWhiteStroke, 1)
		}
	}

	if p := state.Preview; !p.Empty() && board.InBounds(p.Row, p.Col) {
		switch p.Kind {
		case board.PreviewBlack:
			stone(&b, "preview stone black", p.Row, p.Col, colorBlack, "", 0.5)
		case board.PreviewWhite:
			stone(&b, "preview stone white", p.Row, p.Col, colorWhite, colorWhiteStroke, 0.5)
		case board.PreviewRemove:
			stone(&b, "preview stone remove", p.Row, p.Col, colorRemove, "", 0.45)
		}
	}

	b.WriteString("</svg>\n")
	return []byte(b.String())
}

func stone(b *strings.Builder, class string, row, col int, fill, stroke string, opacity float64) {
	fmt.Fprintf(b, `<circle class="%s" cx="%d" cy="%d" r="%d" fill="%s"`, class, col*Space, row*Space, Space/2, fill)
	if stroke != "" {
		fmt.Fprintf(b, ` stroke="%s" stroke-width="1.5"`, stroke)
	}
	if opacity < 1 {
		fmt.Fprintf(b, ` fill-opacity="%.2f"`, opacity)
	}
	b.WriteString("/>\n")
}
