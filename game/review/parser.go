package review

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/baduklab/goban-server/game/board"
)

// ErrInvalidSGF flags record text the parser could not make sense of.
var ErrInvalidSGF = errors.New("invalid SGF record")

// Meta holds the free-form record header fields worth surfacing.
type Meta struct {
	Black   string  `json:"black,omitempty"`
	White   string  `json:"white,omitempty"`
	Result  string  `json:"result,omitempty"`
	Rules   string  `json:"rules,omitempty"`
	Komi    float64 `json:"komi,omitempty"`
	Comment string  `json:"comment,omitempty"`
}

// Parsed is the outcome of reading one SGF record: header metadata,
// pre-placed stones, and the mainline move sequence. Branches are
// skipped, only the main variation is kept.
type Parsed struct {
	BoardSize   int
	Komi        float64
	Meta        Meta
	Setup       board.Setup
	Moves       []board.Move
	FinalStones board.Stones
}

// ParseSGF reads an SGF record and extracts the mainline.
func ParseSGF(input string) (*Parsed, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return nil, fmt.Errorf("%w: empty input", ErrInvalidSGF)
	}

	p := &sgfReader{src: trimmed}
	nodes, err := p.mainSequence()
	if err != nil {
		return nil, err
	}
	if len(nodes) == 0 {
		return nil, fmt.Errorf("%w: no nodes", ErrInvalidSGF)
	}
	root := nodes[0]

	size := board.DefaultSize
	if v, ok := root.first("SZ"); ok {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && n >= board.MinSize && n <= board.MaxSize {
			size = n
		}
	}

	var komi float64
	if v, ok := root.first("KM"); ok {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			komi = f
		}
	}

	meta := Meta{
		Black:   trimmedProp(root, "PB"),
		White:   trimmedProp(root, "PW"),
		Result:  trimmedProp(root, "RE"),
		Rules:   trimmedProp(root, "RU"),
		Comment: trimmedProp(root, "C"),
		Komi:    komi,
	}

	setup := board.Setup{
		Black: normaliseCoords(root.all("AB")),
		White: normaliseCoords(root.all("AW")),
		Empty: normaliseCoords(root.all("AE")),
	}
	if v, ok := root.first("PL"); ok {
		switch strings.ToUpper(strings.TrimSpace(v)) {
		case "B":
			setup.ToPlay = board.Black
		case "W":
			setup.ToPlay = board.White
		}
	}

	var moves []board.Move
	index := 0
	for _, node := range nodes[1:] {
		// MN renumbers the sequence from the given move number.
		if v, ok := node.first("MN"); ok {
			if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && n > 0 {
				index = n - 1
			}
		}
		color := board.Color("")
		var raw string
		if v, ok := node.first("B"); ok {
			color, raw = board.Black, v
		} else if v, ok := node.first("W"); ok {
			color, raw = board.White, v
		} else {
			continue
		}
		index++
		moves = append(moves, board.Move{
			Index:   index,
			Color:   color,
			Coord:   normaliseCoord(raw),
			Comment: trimmedProp(node, "C"),
		})
	}

	final, err := board.Replay(size, setup, moves, len(moves))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSGF, err)
	}

	return &Parsed{
		BoardSize:   size,
		Komi:        komi,
		Meta:        meta,
		Setup:       setup,
		Moves:       moves,
		FinalStones: final.Stones(),
	}, nil
}

func trimmedProp(n *sgfNode, key string) string {
	v, _ := n.first(key)
	return strings.TrimSpace(v)
}

func normaliseCoord(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	if len(s) != 2 {
		return "" // pass or malformed
	}
	return s
}

func normaliseCoords(raw []string) []string {
	var out []string
	for _, r := range raw {
		if c := normaliseCoord(r); c != "" {
			out = append(out, c)
		}
	}
	return out
}

type sgfNode struct {
	props map[string][]string
}

func (n *sgfNode) first(key string) (string, bool) {
	vs := n.props[key]
	if len(vs) == 0 {
		return "", false
	}
	return vs[0], true
}

func (n *sgfNode) all(key string) []string {
	return n.props[key]
}

// sgfReader is a minimal cursor over SGF text. It walks the main
// sequence only and skips variation subtrees wholesale.
type sgfReader struct {
	src string
	pos int
}

func (p *sgfReader) mainSequence() ([]*sgfNode, error) {
	p.skipSpace()
	if !p.consume('(') {
		return nil, fmt.Errorf("%w: must start with '('", ErrInvalidSGF)
	}
	var nodes []*sgfNode
	for {
		p.skipSpace()
		ch, ok := p.peek()
		if !ok {
			break
		}
		switch ch {
		case ';':
			node, err := p.node()
			if err != nil {
				return nil, err
			}
			nodes = append(nodes, node)
		case '(':
			if err := p.skipSubtree(); err != nil {
				return nil, err
			}
		case ')':
			p.pos++
			return nodes, nil
		default:
			p.pos++
		}
	}
	return nodes, nil
}

func (p *sgfReader) node() (*sgfNode, error) {
	if !p.consume(';') {
		return nil, fmt.Errorf("%w: expected ';'", ErrInvalidSGF)
	}
	props := make(map[string][]string)
	for {
		p.skipSpace()
		name := p.ident()
		if name == "" {
			break
		}
		props[name] = append(props[name], p.values()...)
	}
	return &sgfNode{props: props}, nil
}

func (p *sgfReader) ident() string {
	start := p.pos
	for p.pos < len(p.src) && p.src[p.pos] >= 'A' && p.src[p.pos] <= 'Z' {
		p.pos++
	}
	return p.src[start:p.pos]
}

func (p *sgfReader) values() []string {
	var values []string
	for {
		p.skipSpace()
		if !p.consume('[') {
			return values
		}
		var b strings.Builder
		escaped := false
		for p.pos < len(p.src) {
			ch := p.src[p.pos]
			p.pos++
			if escaped {
				escaped = false
				switch ch {
				case 'n', 'r':
					b.WriteByte('\n')
				case 't':
					b.WriteByte('\t')
				default:
					b.WriteByte(ch)
				}
				continue
			}
			switch ch {
			case '\\':
				escaped = true
			case ']':
				values = append(values, b.String())
				b.Reset()
			case '\r':
				if p.pos < len(p.src) && p.src[p.pos] == '\n' {
					p.pos++
				}
				b.WriteByte('\n')
			default:
				b.WriteByte(ch)
			}
			if ch == ']' {
				break
			}
		}
	}
}

// skipSubtree discards a variation, tracking bracket nesting and
// property values so a ')' inside a comment does not end it early.
func (p *sgfReader) skipSubtree() error {
	if !p.consume('(') {
		return fmt.Errorf("%w: expected '('", ErrInvalidSGF)
	}
	depth := 1
	inValue := false
	escaped := false
	for p.pos < len(p.src) {
		ch := p.src[p.pos]
		p.pos++
		if inValue {
			if escaped {
				escaped = false
				continue
			}
			switch ch {
			case '\\':
				escaped = true
			case ']':
				inValue = false
			}
			continue
		}
		switch ch {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return nil
			}
		case '[':
			inValue = true
		}
	}
	return fmt.Errorf("%w: unterminated subtree", ErrInvalidSGF)
}

func (p *sgfReader) skipSpace() {
	for p.pos < len(p.src) {
		switch p.src[p.pos] {
		case ' ', '\t', '\r', '\n':
			p.pos++
		default:
			return
		}
	}
}

func (p *sgfReader) consume(target byte) bool {
	if p.pos < len(p.src) && p.src[p.pos] == target {
		p.pos++
		return true
	}
	return false
}

func (p *sgfReader) peek() (byte, bool) {
	if p.pos >= len(p.src) {
		return 0, false
	}
	return p.src[p.pos], true
}
