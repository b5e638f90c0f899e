package board

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrOffBoard   = errors.New("point is off the board")
	ErrOccupied   = errors.New("point is occupied")
	ErrBadCoord   = errors.New("malformed coordinate")
	ErrOutOfRange = errors.New("move index out of range")
)

// gtpColumns skips the letter I per GTP convention.
const gtpColumns = "ABCDEFGHJKLMNOPQRSTUVWXYZ"

// Board is a mutable Go position with capture bookkeeping.
type Board struct {
	Size            int
	ToMove          Color
	CapturedByBlack int // white stones removed by black
	CapturedByWhite int // black stones removed by white

	grid []Color // "" means empty, indexed y*Size+x
}

// New creates an empty board of the given size with black to move.
func New(size int) (*Board, error) {
	if size < MinSize || size > MaxSize {
		return nil, fmt.Errorf("board size %d outside [%d,%d]", size, MinSize, MaxSize)
	}
	return &Board{
		Size:   size,
		ToMove: Black,
		grid:   make([]Color, size*size),
	}, nil
}

// NewFromSetup creates a board and applies pre-placed stones.
func NewFromSetup(size int, setup Setup) (*Board, error) {
	b, err := New(size)
	if err != nil {
		return nil, err
	}
	for _, c := range setup.Black {
		if p, ok := ParseSGF(c, size); ok {
			b.grid[b.index(p)] = Black
		}
	}
	for _, c := range setup.White {
		if p, ok := ParseSGF(c, size); ok {
			b.grid[b.index(p)] = White
		}
	}
	for _, c := range setup.Empty {
		if p, ok := ParseSGF(c, size); ok {
			b.grid[b.index(p)] = ""
		}
	}
	if setup.ToPlay.Valid() {
		b.ToMove = setup.ToPlay
	}
	return b, nil
}

// Clone returns an independent copy of the board.
func (b *Board) Clone() *Board {
	dup := *b
	dup.grid = make([]Color, len(b.grid))
	copy(dup.grid, b.grid)
	return &dup
}

// At returns the stone at p, or "" when empty or off-board.
func (b *Board) At(p Point) Color {
	if !b.onBoard(p) {
		return ""
	}
	return b.grid[b.index(p)]
}

// CheckLegal validates a live-play move: the coordinate must parse,
// be on the board, and target an empty point. Pass is always legal.
func (b *Board) CheckLegal(color Color, coord string) error {
	if !color.Valid() {
		return fmt.Errorf("%w: color %q", ErrBadCoord, color)
	}
	if coord == "" {
		return nil
	}
	p, ok := ParseSGF(coord, b.Size)
	if !ok {
		return fmt.Errorf("%w: %q", ErrBadCoord, coord)
	}
	if !b.onBoard(p) {
		return fmt.Errorf("%w: %q", ErrOffBoard, coord)
	}
	if b.grid[b.index(p)] != "" {
		return fmt.Errorf("%w: %q", ErrOccupied, coord)
	}
	return nil
}

// Apply places a stone and resolves captures. Opponent groups left
// without liberties are removed first; if the placed group then has no
// liberties and nothing was captured, it is removed itself (suicide is
// resolved rather than rejected so that imported records replay
// consistently). The number of opponent stones captured is returned.
// Pass moves only flip the side to move.
func (b *Board) Apply(color Color, coord string) (int, error) {
	if !color.Valid() {
		return 0, fmt.Errorf("%w: color %q", ErrBadCoord, color)
	}
	if coord == "" {
		b.ToMove = color.Opponent()
		return 0, nil
	}
	p, ok := ParseSGF(coord, b.Size)
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrBadCoord, coord)
	}
	idx := b.index(p)
	b.grid[idx] = color

	opponent := color.Opponent()
	captured := 0
	for _, n := range b.neighbors(p) {
		if b.grid[b.index(n)] != opponent {
			continue
		}
		group, liberties := b.collectGroup(n, opponent)
		if liberties == 0 {
			captured += len(group)
			for _, g := range group {
				b.grid[b.index(g)] = ""
			}
		}
	}
	if captured > 0 {
		if color == Black {
			b.CapturedByBlack += captured
		} else {
			b.CapturedByWhite += captured
		}
	} else {
		// Self-capture: remove the freshly placed group when it ends
		// up without liberties.
		group, liberties := b.collectGroup(p, color)
		if liberties == 0 {
			for _, g := range group {
				b.grid[b.index(g)] = ""
			}
		}
	}
	b.ToMove = opponent
	return captured, nil
}

// Stones returns the occupied points in row-major order.
func (b *Board) Stones() Stones {
	var s Stones
	for y := 0; y < b.Size; y++ {
		for x := 0; x < b.Size; x++ {
			switch b.grid[y*b.Size+x] {
			case Black:
				s.Black = append(s.Black, FormatSGF(Point{X: x, Y: y}))
			case White:
				s.White = append(s.White, FormatSGF(Point{X: x, Y: y}))
			}
		}
	}
	return s
}

// Replay builds the position after moves[0..upto] on top of setup.
// It is pure: identical inputs yield identical stone sets. upto counts
// moves, so 0 returns the setup position and len(moves) the final one.
func Replay(size int, setup Setup, moves []Move, upto int) (*Board, error) {
	if upto < 0 || upto > len(moves) {
		return nil, fmt.Errorf("%w: %d of %d", ErrOutOfRange, upto, len(moves))
	}
	b, err := NewFromSetup(size, setup)
	if err != nil {
		return nil, err
	}
	for _, mv := range moves[:upto] {
		// Imported records may hold out-of-board coords; skip rather
		// than fail so a single bad node does not poison the review.
		if mv.Coord != "" {
			if _, ok := ParseSGF(mv.Coord, size); !ok {
				continue
			}
		}
		if _, err := b.Apply(mv.Color, mv.Coord); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// ParseSGF converts a two-letter SGF coordinate to a point.
func ParseSGF(coord string, size int) (Point, bool) {
	if len(coord) != 2 {
		return Point{}, false
	}
	x := int(coord[0] - 'a')
	y := int(coord[1] - 'a')
	if x < 0 || y < 0 || x >= size || y >= size {
		return Point{}, false
	}
	return Point{X: x, Y: y}, true
}

// FormatSGF converts a point to its two-letter SGF coordinate.
func FormatSGF(p Point) string {
	return string([]byte{byte('a' + p.X), byte('a' + p.Y)})
}

// ParseGTP converts a GTP vertex like "Q16" (or "pass") to an SGF
// coordinate. The I column is skipped and rows count from the bottom.
func ParseGTP(vertex string, size int) (string, error) {
	v := strings.ToUpper(strings.TrimSpace(vertex))
	if v == "" {
		return "", fmt.Errorf("%w: empty vertex", ErrBadCoord)
	}
	if v == "PASS" || v == "RESIGN" {
		return "", nil
	}
	col := strings.IndexByte(gtpColumns, v[0])
	if col < 0 || col >= size {
		return "", fmt.Errorf("%w: %q", ErrBadCoord, vertex)
	}
	row, err := strconv.Atoi(v[1:])
	if err != nil || row < 1 || row > size {
		return "", fmt.Errorf("%w: %q", ErrBadCoord, vertex)
	}
	return FormatSGF(Point{X: col, Y: size - row}), nil
}

// FormatGTP converts an SGF coordinate to a GTP vertex. An empty
// coordinate becomes "pass".
func FormatGTP(coord string, size int) (string, error) {
	if coord == "" {
		return "pass", nil
	}
	p, ok := ParseSGF(coord, size)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrBadCoord, coord)
	}
	return fmt.Sprintf("%c%d", gtpColumns[p.X], size-p.Y), nil
}

func (b *Board) index(p Point) int { return p.Y*b.Size + p.X }

func (b *Board) onBoard(p Point) bool {
	return p.X >= 0 && p.Y >= 0 && p.X < b.Size && p.Y < b.Size
}

func (b *Board) neighbors(p Point) []Point {
	out := make([]Point, 0, 4)
	for _, n := range [4]Point{{p.X - 1, p.Y}, {p.X, p.Y - 1}, {p.X + 1, p.Y}, {p.X, p.Y + 1}} {
		if b.onBoard(n) {
			out = append(out, n)
		}
	}
	return out
}

// collectGroup flood-fills the group containing start and counts its
// distinct liberties.
func (b *Board) collectGroup(start Point, color Color) ([]Point, int) {
	visited := make(map[Point]bool)
	liberties := make(map[Point]bool)
	queue := []Point{start}
	for len(queue) > 0 {
		p := queue[0]
		queue = queue[1:]
		if visited[p] {
			continue
		}
		visited[p] = true
		for _, n := range b.neighbors(p) {
			switch b.grid[b.index(n)] {
			case color:
				queue = append(queue, n)
			case "":
				liberties[n] = true
			}
		}
	}
	group := make([]Point, 0, len(visited))
	for p := range visited {
		group = append(group, p)
	}
	return group, len(liberties)
}
