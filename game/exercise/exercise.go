package exercise

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/baduklab/goban-server/game/board"
)

var ErrValidation = errors.New("invalid exercise")

// Category is the difficulty bucket. Exactly two values exist.
type Category string

const (
	Beginner Category = "beginner"
	Advanced Category = "advanced"
)

func (c Category) Valid() bool {
	return c == Beginner || c == Advanced
}

// AnswerKind selects the answer variant.
type AnswerKind string

const (
	// AnswerMainline continues the source record for Length moves.
	AnswerMainline AnswerKind = "mainline"
	// AnswerEngine stores an engine suggestion with its evaluation.
	AnswerEngine AnswerKind = "engine"
	// AnswerManual stores a hand-entered continuation.
	AnswerManual AnswerKind = "manual"
)

// ManualMove is one step of a hand-entered line.
type ManualMove struct {
	Color  board.Color `json:"color"`
	Vertex string      `json:"vertex"`
}

// Answer is the tagged answer payload. Kind decides which fields are
// meaningful; Validate checks the selected variant exhaustively.
type Answer struct {
	Kind AnswerKind `json:"kind"`

	// Mainline.
	Length int `json:"length,omitempty"`

	// Engine suggestion.
	PV           []string `json:"pv,omitempty"`
	Winrate      float64  `json:"winrate,omitempty"`
	ScoreLead    float64  `json:"scoreLead,omitempty"`
	Alternatives []string `json:"alternatives,omitempty"`

	// Manual.
	Primary     []ManualMove   `json:"primary,omitempty"`
	ManualLines [][]ManualMove `json:"manualLines,omitempty"`
}

// Source is the record an exercise is cut from.
type Source struct {
	RawSGF    string
	BoardSize int
	Komi      float64
	Setup     board.Setup
	Moves     []board.Move
}

// Position is a question snapshot: the stones plus whose turn it is.
type Position struct {
	Stones board.Stones `json:"stones"`
	ToPlay board.Color  `json:"toPlay"`
}

// Document is the immutable artifact written per exercise.
type Document struct {
	ID        string      `json:"id"`
	Category  Category    `json:"category"`
	MoveIndex int         `json:"moveIndex"`
	BoardSize int         `json:"boardSize"`
	Komi      float64     `json:"komi"`
	Setup     board.Setup `json:"initialSetup"`
	Question  Position    `json:"questionPosition"`
	Answer    Answer      `json:"answer"`
	CreatedAt time.Time   `json:"createdAt"`
	RawSGF    string      `json:"rawSGF,omitempty"`
}

// DeriveID computes the stable exercise identifier from the source
// record and the move index. Identical inputs always yield the same
// ID, which makes re-saves detectable.
func DeriveID(rawSGF string, moveIndex int) string {
	sum := sha256.Sum256([]byte(rawSGF))
	return fmt.Sprintf("ex-%s-%d", hex.EncodeToString(sum[:6]), moveIndex)
}

// Build validates the request and assembles the artifact document.
// No partial state: any validation failure happens before the
// position replay and ID derivation are used anywhere.
func Build(src Source, moveIndex int, category Category, answer Answer) (*Document, error) {
	if !category.Valid() {
		return nil, fmt.Errorf("%w: unknown category %q", ErrValidation, category)
	}
	if moveIndex < 0 || moveIndex > len(src.Moves) {
		return nil, fmt.Errorf("%w: move index %d of %d", ErrValidation, moveIndex, len(src.Moves))
	}

	toPlay := toPlayAt(src, moveIndex)
	if err := validateAnswer(src, moveIndex, toPlay, answer); err != nil {
		return nil, err
	}

	b, err := board.Replay(src.BoardSize, src.Setup, src.Moves, moveIndex)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	return &Document{
		ID:        DeriveID(src.RawSGF, moveIndex),
		Category:  category,
		MoveIndex: moveIndex,
		BoardSize: src.BoardSize,
		Komi:      src.Komi,
		Setup:     src.Setup,
		Question:  Position{Stones: b.Stones(), ToPlay: toPlay},
		Answer:    answer,
		CreatedAt: time.Now().UTC(),
		RawSGF:    src.RawSGF,
	}, nil
}

func validateAnswer(src Source, moveIndex int, toPlay board.Color, answer Answer) error {
	switch answer.Kind {
	case AnswerMainline:
		if answer.Length < 1 {
			return fmt.Errorf("%w: mainline length must be positive", ErrValidation)
		}
		if moveIndex+answer.Length > len(src.Moves) {
			return fmt.Errorf("%w: mainline continuation of %d exceeds record length %d",
				ErrValidation, answer.Length, len(src.Moves))
		}
	case AnswerEngine:
		if len(answer.PV) == 0 {
			return fmt.Errorf("%w: engine answer needs a principal variation", ErrValidation)
		}
		for _, v := range answer.PV {
			if _, err := board.ParseGTP(v, src.BoardSize); err != nil {
				return fmt.Errorf("%w: pv vertex %q: %v", ErrValidation, v, err)
			}
		}
		for _, v := range answer.Alternatives {
			if _, err := board.ParseGTP(v, src.BoardSize); err != nil {
				return fmt.Errorf("%w: alternative vertex %q: %v", ErrValidation, v, err)
			}
		}
	case AnswerManual:
		if len(answer.Primary) == 0 {
			return fmt.Errorf("%w: manual answer needs a primary line", ErrValidation)
		}
		if err := validateManualLine(src.BoardSize, toPlay, answer.Primary); err != nil {
			return err
		}
		for _, line := range answer.ManualLines {
			if err := validateManualLine(src.BoardSize, toPlay, line); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("%w: unknown answer kind %q", ErrValidation, answer.Kind)
	}
	return nil
}

// validateManualLine checks every vertex parses and that colors
// alternate starting with the side to move at the question position.
func validateManualLine(size int, toPlay board.Color, line []ManualMove) error {
	want := toPlay
	for i, mv := range line {
		if !mv.Color.Valid() {
			return fmt.Errorf("%w: move %d has no color", ErrValidation, i+1)
		}
		if mv.Color != want {
			return fmt.Errorf("%w: move %d should be %s to keep turn order", ErrValidation, i+1, want)
		}
		if _, err := board.ParseGTP(mv.Vertex, size); err != nil {
			return fmt.Errorf("%w: move %d vertex %q: %v", ErrValidation, i+1, mv.Vertex, err)
		}
		want = want.Opponent()
	}
	return nil
}

// toPlayAt determines whose turn it is after moveIndex moves: the
// color of the next recorded move when one exists, otherwise the
// opponent of the last move played, otherwise the setup's declaration.
func toPlayAt(src Source, moveIndex int) board.Color {
	if moveIndex < len(src.Moves) {
		return src.Moves[moveIndex].Color
	}
	if moveIndex > 0 {
		return src.Moves[moveIndex-1].Color.Opponent()
	}
	if src.Setup.ToPlay.Valid() {
		return src.Setup.ToPlay
	}
	return board.Black
}
