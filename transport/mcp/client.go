package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/baduklab/goban-server/game/board"
	"github.com/baduklab/goban-server/game/gtp"
	"github.com/baduklab/goban-server/game/service"
	"github.com/baduklab/goban-server/game/session"
)

// Client is a thin MCP client that proxies to the REST API
type Client struct {
	baseURL    string
	sid        string
	httpClient *http.Client
	mcpServer  *server.MCPServer
}

// NewClient creates a new MCP client that calls the REST API. Each
// client carries its own sid, so its games and reviews count against
// one owner.
func NewClient(baseURL string) *Client {
	c := &Client{
		baseURL: baseURL,
		sid:     uuid.NewString(),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}

	c.initMCPServer()
	return c
}

func (c *Client) initMCPServer() {
	c.mcpServer = server.NewMCPServer(
		"Goban Server",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions(`Goban Server - MCP Interface

Play Go (Baduk) against a GTP engine and review SGF game records.

AVAILABLE TOOLS:
- new_game: Start a game against the engine (board size, komi, rules, level, color)
- play_move: Play a move in GTP coordinates (e.g. Q16, D4, or "pass"); the engine answers
- game_state: Show the current board
- close_game: End a game and free its slot
- engine_status: Engine availability and your active game count
- import_sgf: Import an SGF record for review
- position_at: Show the board after N moves of an imported record
- analyze_position: Ask the engine for winrate, score lead, and best line at a position
- save_exercise: Store a review position as a practice exercise
- list_exercises: List stored exercises

NOTES:
- Coordinates are GTP style: columns A-T skipping I, rows 1-19 from the bottom.
- Each owner may hold a limited number of live games at once; close games you
  are done with or the slot stays taken until the idle sweeper reclaims it.`),
	)

	c.registerTools()
}

func (c *Client) registerTools() {
	// Live games
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "new_game",
		Description: "Start a new game against the engine",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"board_size": map[string]interface{}{
					"type":        "integer",
					"description": "Board size, 5-25 (default 19)",
				},
				"komi": map[string]interface{}{
					"type":        "number",
					"description": "Komi (default follows the ruleset)",
				},
				"rules": map[string]interface{}{
					"type":        "string",
					"enum":        []string{"chinese", "japanese"},
					"description": "Ruleset (default chinese)",
				},
				"level": map[string]interface{}{
					"type":        "integer",
					"description": "Engine strength 1-10 (default 3)",
				},
				"color": map[string]interface{}{
					"type":        "string",
					"enum":        []string{"black", "white"},
					"description": "Your color (default black)",
				},
			},
		},
	}, c.handleNewGame)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "play_move",
		Description: "Play a move; the engine replies with its own",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"game_id": map[string]interface{}{
					"type":        "string",
					"description": "Game ID",
				},
				"move": map[string]interface{}{
					"type":        "string",
					"description": "GTP vertex (e.g. Q16) or \"pass\"",
				},
			},
			Required: []string{"game_id", "move"},
		},
	}, c.handlePlayMove)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "game_state",
		Description: "Get the current board for a game",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"game_id": map[string]interface{}{
					"type":        "string",
					"description": "Game ID",
				},
			},
			Required: []string{"game_id"},
		},
	}, c.handleGameState)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "close_game",
		Description: "Close a game and release its engine slot",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"game_id": map[string]interface{}{
					"type":        "string",
					"description": "Game ID",
				},
			},
			Required: []string{"game_id"},
		},
	}, c.handleCloseGame)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "engine_status",
		Description: "Engine availability and active game count",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleEngineStatus)

	// Reviews
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "import_sgf",
		Description: "Import an SGF game record for review",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"sgf": map[string]interface{}{
					"type":        "string",
					"description": "SGF text",
				},
			},
			Required: []string{"sgf"},
		},
	}, c.handleImportSGF)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "position_at",
		Description: "Board position after the first N moves of a review",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"review_id": map[string]interface{}{
					"type":        "string",
					"description": "Review ID",
				},
				"move_index": map[string]interface{}{
					"type":        "integer",
					"description": "Number of moves played, 0 = setup position",
				},
			},
			Required: []string{"review_id", "move_index"},
		},
	}, c.handlePositionAt)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "analyze_position",
		Description: "Engine analysis (winrate, score lead, best line) at a review position",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"review_id": map[string]interface{}{
					"type":        "string",
					"description": "Review ID",
				},
				"move_index": map[string]interface{}{
					"type":        "integer",
					"description": "Position to analyze (moves played so far)",
				},
				"max_visits": map[string]interface{}{
					"type":        "integer",
					"description": "Search visit cap (optional)",
				},
			},
			Required: []string{"review_id", "move_index"},
		},
	}, c.handleAnalyzePosition)

	// Exercises
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "save_exercise",
		Description: "Save a review position as a practice exercise with the record's next moves as the answer",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"review_id": map[string]interface{}{
					"type":        "string",
					"description": "Review ID",
				},
				"move_index": map[string]interface{}{
					"type":        "integer",
					"description": "Position the exercise starts from",
				},
				"category": map[string]interface{}{
					"type":        "string",
					"enum":        []string{"beginner", "advanced"},
					"description": "Difficulty category",
				},
				"answer_length": map[string]interface{}{
					"type":        "integer",
					"description": "How many moves of the record form the answer (default 1)",
				},
			},
			Required: []string{"review_id", "move_index", "category"},
		},
	}, c.handleSaveExercise)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_exercises",
		Description: "List stored exercises",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleListExercises)
}

// GetMCPServer returns the underlying MCP server for serving
func (c *Client) GetMCPServer() *server.MCPServer {
	return c.mcpServer
}

// Helper methods for API calls

func (c *Client) apiCall(method, path string, body interface{}, result interface{}) error {
	url := c.baseURL + path

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewBuffer(data)
	}

	req, err := http.NewRequest(method, url, reqBody)
	if err != nil {
		return err
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.AddCookie(&http.Cookie{Name: "sid", Value: c.sid})

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp map[string]string
		json.NewDecoder(resp.Body).Decode(&errResp)
		if msg, ok := errResp["error"]; ok {
			return fmt.Errorf("%s", msg)
		}
		return fmt.Errorf("API error: %d", resp.StatusCode)
	}

	if result != nil && resp.StatusCode != http.StatusNoContent {
		return json.NewDecoder(resp.Body).Decode(result)
	}

	return nil
}

// Tool handlers

func (c *Client) handleNewGame(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := request.Params.Arguments.(map[string]interface{})

	body := map[string]interface{}{}
	if size, ok := args["board_size"].(float64); ok {
		body["boardSize"] = int(size)
	}
	if komi, ok := args["komi"].(float64); ok {
		body["komi"] = komi
	}
	if rules, ok := args["rules"].(string); ok && rules != "" {
		body["rules"] = rules
	}
	if level, ok := args["level"].(float64); ok {
		body["engineLevel"] = int(level)
	}
	if color, ok := args["color"].(string); ok && color != "" {
		body["playerColor"] = color
	}

	var game service.NewGameResult
	if err := c.apiCall("POST", "/api/game/new", body, &game); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := fmt.Sprintf("Game %s started\nBoard: %dx%d | Komi: %.1f | Rules: %s | Level: %d\nYou play %s | Active games: %d\n",
		game.GameID, game.Config.BoardSize, game.Config.BoardSize,
		game.Config.Komi, game.Config.Rules, game.Config.Level,
		game.Config.HumanColor, game.ActiveGames)
	if game.EngineMove != "" {
		result += fmt.Sprintf("Engine opened with %s\n", game.EngineMove)
	}
	return mcp.NewToolResultText(result), nil
}

func (c *Client) handlePlayMove(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := request.Params.Arguments.(map[string]interface{})
	gameID, _ := args["game_id"].(string)
	move, _ := args["move"].(string)

	var reply session.MoveReply
	err := c.apiCall("POST", "/api/game/play", map[string]string{
		"gameId": gameID, "move": move,
	}, &reply)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You: %s | Engine: %s\n", move, reply.EngineMove)
	if reply.Captures.ByBlack > 0 || reply.Captures.ByWhite > 0 {
		fmt.Fprintf(&b, "Captures: black %d, white %d\n", reply.Captures.ByBlack, reply.Captures.ByWhite)
	}
	if reply.End.Finished {
		fmt.Fprintf(&b, "Game over (%s)\n", reply.End.Reason)
	}

	// Append the board so the caller sees the position without a
	// second tool call.
	var state service.GameStateResult
	if err := c.apiCall("GET", "/api/game/"+gameID, nil, &state); err == nil {
		b.WriteString("\n")
		b.WriteString(renderBoard(state.Config.BoardSize, state.Stones))
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (c *Client) handleGameState(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := request.Params.Arguments.(map[string]interface{})
	gameID, _ := args["game_id"].(string)

	var state service.GameStateResult
	if err := c.apiCall("GET", "/api/game/"+gameID, nil, &state); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := fmt.Sprintf("Game %s | Status: %s | Expires: %s\n\n%s",
		state.GameID, state.Status, state.ExpiresAt.Format("15:04:05"),
		renderBoard(state.Config.BoardSize, state.Stones))
	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleCloseGame(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := request.Params.Arguments.(map[string]interface{})
	gameID, _ := args["game_id"].(string)

	if err := c.apiCall("POST", "/api/game/close", map[string]string{"gameId": gameID}, nil); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Game %s closed", gameID)), nil
}

func (c *Client) handleEngineStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var status service.EngineStatusResult
	if err := c.apiCall("GET", "/api/engine/status", nil, &status); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	mode := "live engine"
	if status.Placeholder {
		mode = "placeholder"
	}
	result := fmt.Sprintf("Engine: online=%v (%s)\nYour games: %d/%d\nUptime: %s",
		status.Online, mode, status.ActiveGamesForOwner, status.ConcurrencyCap, status.Uptime)
	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleImportSGF(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := request.Params.Arguments.(map[string]interface{})
	sgf, _ := args["sgf"].(string)

	var imported service.ImportResult
	if err := c.apiCall("POST", "/api/review/import", map[string]string{"sgf": sgf}, &imported); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Review %s imported\n", imported.ReviewID)
	fmt.Fprintf(&b, "Board: %dx%d | Komi: %.1f | Moves: %d\n",
		imported.BoardSize, imported.BoardSize, imported.Komi, imported.MoveCount)
	if imported.Meta.Black != "" || imported.Meta.White != "" {
		fmt.Fprintf(&b, "Players: %s (B) vs %s (W)\n", imported.Meta.Black, imported.Meta.White)
	}
	if imported.Meta.Result != "" {
		fmt.Fprintf(&b, "Result: %s\n", imported.Meta.Result)
	}
	b.WriteString("\nFinal position:\n")
	b.WriteString(renderBoard(imported.BoardSize, imported.FinalStones))
	return mcp.NewToolResultText(b.String()), nil
}

func (c *Client) handlePositionAt(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := request.Params.Arguments.(map[string]interface{})
	reviewID, _ := args["review_id"].(string)
	moveIndex := intArg(args, "move_index")

	var info service.ImportResult
	if err := c.apiCall("GET", "/api/review/"+reviewID, nil, &info); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var pos struct {
		MoveIndex int          `json:"moveIndex"`
		Stones    board.Stones `json:"stones"`
	}
	path := fmt.Sprintf("/api/review/%s/position?moveIndex=%d", reviewID, moveIndex)
	if err := c.apiCall("GET", path, nil, &pos); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := fmt.Sprintf("Position after move %d of %d:\n\n%s",
		pos.MoveIndex, info.MoveCount, renderBoard(info.BoardSize, pos.Stones))
	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleAnalyzePosition(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := request.Params.Arguments.(map[string]interface{})
	reviewID, _ := args["review_id"].(string)
	moveIndex := intArg(args, "move_index")

	body := map[string]interface{}{
		"reviewId":  reviewID,
		"moveIndex": moveIndex,
	}
	if visits, ok := args["max_visits"].(float64); ok {
		body["maxVisits"] = int(visits)
	}

	var analysis gtp.Analysis
	if err := c.apiCall("POST", "/api/review/analyze", body, &analysis); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := fmt.Sprintf("Analysis at move %d:\nWinrate: %.1f%% | Score lead: %+.1f | Visits: %d\nBest line: %s",
		moveIndex, analysis.Winrate*100, analysis.ScoreLead, analysis.Visits,
		strings.Join(analysis.PV, " "))
	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleSaveExercise(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := request.Params.Arguments.(map[string]interface{})
	reviewID, _ := args["review_id"].(string)
	moveIndex := intArg(args, "move_index")
	category, _ := args["category"].(string)

	length := intArg(args, "answer_length")
	if length <= 0 {
		length = 1
	}

	var saved service.SaveExerciseResult
	err := c.apiCall("POST", "/api/exercise/save", map[string]interface{}{
		"reviewId":  reviewID,
		"moveIndex": moveIndex,
		"category":  category,
		"answer":    map[string]interface{}{"kind": "mainline", "length": length},
	}, &saved)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := fmt.Sprintf("Exercise saved: %s", saved.ExerciseID)
	if saved.Overwritten {
		result += " (overwrote previous version)"
	}
	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleListExercises(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var response struct {
		Count     int `json:"count"`
		Exercises []struct {
			ID        string `json:"id"`
			Category  string `json:"category"`
			MoveIndex int    `json:"moveIndex"`
			BoardSize int    `json:"boardSize"`
		} `json:"exercises"`
	}
	if err := c.apiCall("GET", "/api/exercises", nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Exercises (%d):\n\n", response.Count)
	for _, e := range response.Exercises {
		fmt.Fprintf(&b, "- %s [%s] move %d, %dx%d\n",
			e.ID, e.Category, e.MoveIndex, e.BoardSize, e.BoardSize)
	}
	return mcp.NewToolResultText(b.String()), nil
}

func intArg(args map[string]interface{}, key string) int {
	if v, ok := args[key].(float64); ok {
		return int(v)
	}
	return 0
}

// Formatting helpers

// gtpColumns is the column letter run with I skipped.
const gtpColumns = "ABCDEFGHJKLMNOPQRST"

// renderBoard draws the position as text. Stones arrive in SGF
// coordinates (column then row, both from the top-left); X is black,
// O is white. The highest-numbered row prints first, matching how
// boards are usually diagrammed.
func renderBoard(size int, stones board.Stones) string {
	if size < 1 || size > len(gtpColumns) {
		return fmt.Sprintf("(board size %d not renderable)", size)
	}

	grid := make([][]byte, size)
	for y := range grid {
		grid[y] = bytes.Repeat([]byte{'.'}, size)
	}
	place := func(coords []string, mark byte) {
		for _, c := range coords {
			if len(c) != 2 {
				continue
			}
			x, y := int(c[0]-'a'), int(c[1]-'a')
			if x >= 0 && x < size && y >= 0 && y < size {
				grid[y][x] = mark
			}
		}
	}
	place(stones.Black, 'X')
	place(stones.White, 'O')

	var b strings.Builder
	for y := 0; y < size; y++ {
		fmt.Fprintf(&b, "%2d ", size-y)
		for x := 0; x < size; x++ {
			b.WriteByte(grid[y][x])
			b.WriteByte(' ')
		}
		b.WriteByte('\n')
	}
	b.WriteString("   ")
	for x := 0; x < size; x++ {
		b.WriteByte(gtpColumns[x])
		b.WriteByte(' ')
	}
	b.WriteByte('\n')
	return b.String()
}
