// Package render turns session payloads into plain-text boards. Output is a
// pure function of the payload.
package render

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/DoyleJ11/arcade-sessions/internal/engine"
)

var pieces = [3]string{".", "X", "O"}

type Text struct {
	glyphs  map[engine.Symbol]string
	printer *message.Printer
}

type Option func(*Text)

func WithGlyphs(g map[engine.Symbol]string) Option { return func(t *Text) { t.glyphs = g } }

func WithLanguage(tag language.Tag) Option {
	return func(t *Text) { t.printer = message.NewPrinter(tag) }
}

func NewText(opts ...Option) *Text {
	t := &Text{printer: message.NewPrinter(language.English)}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Amount formats a chip amount with grouping separators.
func (t *Text) Amount(n int64) string { return t.printer.Sprintf("%d", n) }

func (t *Text) Render(p engine.Payload) ([]byte, error) {
	var b strings.Builder
	switch p := p.(type) {
	case engine.SpinPayload:
		t.spin(&b, p)
	case engine.DuelPayload:
		t.duel(&b, p)
	case engine.WordPayload:
		t.word(&b, p)
	default:
		return nil, fmt.Errorf("render: unsupported payload %T", p)
	}
	return []byte(b.String()), nil
}

func (t *Text) glyph(s engine.Symbol) string {
	if g, ok := t.glyphs[s]; ok && g != "" {
		return g
	}
	return string(s)
}

func (t *Text) spin(b *strings.Builder, p engine.SpinPayload) {
	fmt.Fprintf(b, "[ %s | %s | %s ]\n", t.glyph(p.Reels[0]), t.glyph(p.Reels[1]), t.glyph(p.Reels[2]))
	fmt.Fprintf(b, "bet %s", t.Amount(p.Bet))
	switch {
	case p.Voided:
		b.WriteString(" · void")
	case p.Payout > 0:
		fmt.Fprintf(b, " · %s · won %s", p.Match, t.Amount(p.Payout))
	default:
		b.WriteString(" · no win")
	}
	b.WriteByte('\n')
}

func (t *Text) duel(b *strings.Builder, p engine.DuelPayload) {
	var highlight map[engine.Cell]bool
	if len(p.WinLine) > 0 {
		highlight = make(map[engine.Cell]bool, len(p.WinLine))
		for _, c := range p.WinLine {
			highlight[c] = true
		}
	}
	for row := 0; row < engine.BoardRows; row++ {
		for col := 0; col < engine.BoardCols; col++ {
			if col > 0 {
				b.WriteByte(' ')
			}
			piece := pieces[p.Board[row][col]]
			if highlight[engine.Cell{Row: row, Col: col}] {
				piece = strings.ToLower(piece)
				if piece == "." {
					piece = "*"
				}
			}
			b.WriteString(piece)
		}
		b.WriteByte('\n')
	}
	b.WriteString("1 2 3 4 5 6 7\n")

	switch p.Outcome {
	case engine.OutcomeNone:
		fmt.Fprintf(b, "%s (%s) to move\n", p.CurrentPlayer(), pieces[p.Turn+1])
	case engine.OutcomeTie:
		b.WriteString("tie\n")
	case engine.OutcomeDeclined, engine.OutcomeExpired:
		fmt.Fprintf(b, "challenge %s\n", p.Outcome)
	default:
		fmt.Fprintf(b, "%s wins (%s)\n", p.Winner, p.Outcome)
	}
}

func (t *Text) word(b *strings.Builder, p engine.WordPayload) {
	b.WriteString(strings.Join(strings.Split(p.Masked(), ""), " "))
	b.WriteByte('\n')
	fmt.Fprintf(b, "wrong %d/%d", p.Wrong, p.MaxWrong)
	if len(p.Guessed) > 0 {
		fmt.Fprintf(b, " · guessed %s", string(p.Guessed))
	}
	b.WriteByte('\n')
}
