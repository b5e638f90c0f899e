package board

// Color identifies the owner of a stone.
type Color string

const (
	Black Color = "black"
	White Color = "white"

	// Board size bounds accepted from imported records.
	MinSize = 5
	MaxSize = 25

	// DefaultSize is used when a record carries no SZ property.
	DefaultSize = 19
)

// Opponent returns the other color.
func (c Color) Opponent() Color {
	if c == Black {
		return White
	}
	return Black
}

// Valid reports whether c is one of the two playable colors.
func (c Color) Valid() bool {
	return c == Black || c == White
}

// Point is a zero-based board coordinate, (0,0) at the top-left
// following SGF convention.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Move is a single mainline move. An empty Coord is a pass.
type Move struct {
	Index   int    `json:"index"`
	Color   Color  `json:"color"`
	Coord   string `json:"coord,omitempty"`
	Comment string `json:"comment,omitempty"`
}

// Setup describes pre-placed stones (SGF AB/AW/AE) and the side to play.
type Setup struct {
	Black  []string `json:"black,omitempty"`
	White  []string `json:"white,omitempty"`
	Empty  []string `json:"empty,omitempty"`
	ToPlay Color    `json:"to_play,omitempty"`
}

// Stones is a snapshot of occupied points in SGF coordinates.
type Stones struct {
	Black []string `json:"black,omitempty"`
	White []string `json:"white,omitempty"`
}
