package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/baduklab/goban-server/game/exercise"
	"github.com/baduklab/goban-server/game/gtp"
	"github.com/baduklab/goban-server/game/review"
	"github.com/baduklab/goban-server/game/service"
	"github.com/baduklab/goban-server/game/session"
	"github.com/baduklab/goban-server/transport/websocket"
)

const testSGF = "(;SZ[9]KM[6.5]PB[Alice]PW[Bob];B[dd];W[ff];B[cc];W[gg];B[ee])"

func newTestServer(t *testing.T) *Server {
	t.Helper()

	games := session.NewStore(session.NewAdmission(3), func(cfg session.GameConfig) (gtp.Engine, error) {
		return gtp.NewStub(), nil
	}, 30*time.Minute)
	reviews := review.NewStore(func() (gtp.Engine, error) {
		return gtp.NewStub(), nil
	}, 30*time.Minute)
	dir := t.TempDir()
	exercises, err := exercise.Open(dir, filepath.Join(dir, "index.db"))
	if err != nil {
		t.Fatalf("open persister: %v", err)
	}
	t.Cleanup(func() { exercises.Close() })

	hub := websocket.NewHub()
	go hub.Run()

	svc := service.NewGameService(games, reviews, exercises, true)
	return NewServer(svc, hub)
}

// doJSON performs a request with an optional sid cookie and JSON body.
func doJSON(t *testing.T, server *Server, method, path, sid string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if sid != "" {
		req.AddCookie(&http.Cookie{Name: "sid", Value: sid})
	}
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, target interface{}) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(target); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, rec.Body.String())
	}
}

func TestSidCookieMinted(t *testing.T) {
	server := newTestServer(t)

	rec := doJSON(t, server, "GET", "/api/engine/status", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var sidCookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == "sid" {
			sidCookie = c
		}
	}
	if sidCookie == nil {
		t.Fatal("expected a sid cookie to be set")
	}
	if !sidCookie.HttpOnly {
		t.Error("sid cookie should be HttpOnly")
	}

	// A request carrying a sid must not get a new one.
	rec = doJSON(t, server, "GET", "/api/engine/status", "sid-1", nil)
	for _, c := range rec.Result().Cookies() {
		if c.Name == "sid" {
			t.Error("existing sid should be kept, not replaced")
		}
	}
}

func TestGameLifecycleEndpoints(t *testing.T) {
	server := newTestServer(t)

	rec := doJSON(t, server, "POST", "/api/game/new", "sid-1", map[string]interface{}{"boardSize": 9})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var created struct {
		GameID      string `json:"gameId"`
		ActiveGames int    `json:"activeGames"`
	}
	decode(t, rec, &created)
	if created.GameID == "" {
		t.Fatal("expected a game id")
	}
	if created.ActiveGames != 1 {
		t.Errorf("expected activeGames 1, got %d", created.ActiveGames)
	}

	rec = doJSON(t, server, "POST", "/api/game/play", "sid-1", map[string]string{
		"gameId": created.GameID,
		"move":   "C3",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("play: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var reply struct {
		EngineMove string `json:"engineMove"`
	}
	decode(t, rec, &reply)
	if reply.EngineMove == "" {
		t.Error("expected an engine move")
	}

	rec = doJSON(t, server, "GET", "/api/game/"+created.GameID, "sid-1", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("state: expected 200, got %d", rec.Code)
	}

	rec = doJSON(t, server, "POST", "/api/game/heartbeat", "sid-1", map[string]string{"gameId": created.GameID})
	if rec.Code != http.StatusNoContent {
		t.Errorf("heartbeat: expected 204, got %d", rec.Code)
	}

	rec = doJSON(t, server, "POST", "/api/game/close", "sid-1", map[string]string{"gameId": created.GameID})
	if rec.Code != http.StatusNoContent {
		t.Errorf("close: expected 204, got %d", rec.Code)
	}

	rec = doJSON(t, server, "GET", "/api/game/"+created.GameID, "sid-1", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("closed game: expected 404, got %d", rec.Code)
	}
}

func TestCapacityScenario(t *testing.T) {
	server := newTestServer(t)

	var ids []string
	for i := 1; i <= 3; i++ {
		rec := doJSON(t, server, "POST", "/api/game/new", "u1", nil)
		if rec.Code != http.StatusCreated {
			t.Fatalf("game %d: expected 201, got %d", i, rec.Code)
		}
		var created struct {
			GameID      string `json:"gameId"`
			ActiveGames int    `json:"activeGames"`
		}
		decode(t, rec, &created)
		if created.ActiveGames != i {
			t.Errorf("game %d: expected activeGames %d, got %d", i, i, created.ActiveGames)
		}
		ids = append(ids, created.GameID)
	}

	rec := doJSON(t, server, "POST", "/api/game/new", "u1", nil)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("4th game: expected 429, got %d", rec.Code)
	}

	// A different owner is unaffected by u1's cap.
	rec = doJSON(t, server, "POST", "/api/game/new", "u2", nil)
	if rec.Code != http.StatusCreated {
		t.Errorf("other owner: expected 201, got %d", rec.Code)
	}

	rec = doJSON(t, server, "POST", "/api/game/close", "u1", map[string]string{"gameId": ids[0]})
	if rec.Code != http.StatusNoContent {
		t.Fatalf("close: expected 204, got %d", rec.Code)
	}
	rec = doJSON(t, server, "POST", "/api/game/new", "u1", nil)
	if rec.Code != http.StatusCreated {
		t.Errorf("retry after close: expected 201, got %d", rec.Code)
	}
	var created struct {
		ActiveGames int `json:"activeGames"`
	}
	decode(t, rec, &created)
	if created.ActiveGames != 3 {
		t.Errorf("expected activeGames back to 3, got %d", created.ActiveGames)
	}
}

func TestErrorMapping(t *testing.T) {
	server := newTestServer(t)

	rec := doJSON(t, server, "POST", "/api/game/new", "sid-1", nil)
	var created struct {
		GameID string `json:"gameId"`
	}
	decode(t, rec, &created)

	t.Run("forbidden", func(t *testing.T) {
		rec := doJSON(t, server, "POST", "/api/game/play", "sid-other", map[string]string{
			"gameId": created.GameID, "move": "C3",
		})
		if rec.Code != http.StatusForbidden {
			t.Errorf("expected 403, got %d", rec.Code)
		}
	})

	t.Run("not found", func(t *testing.T) {
		rec := doJSON(t, server, "POST", "/api/game/play", "sid-1", map[string]string{
			"gameId": "g-missing", "move": "C3",
		})
		if rec.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d", rec.Code)
		}
	})

	t.Run("illegal move", func(t *testing.T) {
		rec := doJSON(t, server, "POST", "/api/game/play", "sid-1", map[string]string{
			"gameId": created.GameID, "move": "Z99",
		})
		if rec.Code != http.StatusUnprocessableEntity {
			t.Errorf("expected 422, got %d", rec.Code)
		}
	})

	t.Run("invalid sgf", func(t *testing.T) {
		rec := doJSON(t, server, "POST", "/api/review/import", "sid-1", map[string]string{"sgf": "not sgf"})
		if rec.Code != http.StatusUnprocessableEntity {
			t.Errorf("expected 422, got %d", rec.Code)
		}
	})
}

func TestReviewEndpoints(t *testing.T) {
	server := newTestServer(t)

	rec := doJSON(t, server, "POST", "/api/review/import", "sid-1", map[string]string{"sgf": testSGF})
	if rec.Code != http.StatusOK {
		t.Fatalf("import: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var imported struct {
		ReviewID  string `json:"reviewId"`
		BoardSize int    `json:"boardSize"`
		MoveCount int    `json:"moveCount"`
	}
	decode(t, rec, &imported)
	if imported.BoardSize != 9 || imported.MoveCount != 5 {
		t.Errorf("unexpected import result: %+v", imported)
	}

	t.Run("info", func(t *testing.T) {
		rec := doJSON(t, server, "GET", "/api/review/"+imported.ReviewID, "sid-1", nil)
		if rec.Code != http.StatusOK {
			t.Errorf("expected 200, got %d", rec.Code)
		}
	})

	t.Run("position", func(t *testing.T) {
		path := fmt.Sprintf("/api/review/%s/position?moveIndex=2", imported.ReviewID)
		rec := doJSON(t, server, "GET", path, "sid-1", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		var pos struct {
			MoveIndex int `json:"moveIndex"`
			Stones    struct {
				Black []string `json:"black"`
				White []string `json:"white"`
			} `json:"stones"`
		}
		decode(t, rec, &pos)
		if len(pos.Stones.Black) != 1 || len(pos.Stones.White) != 1 {
			t.Errorf("unexpected stones after 2 moves: %+v", pos.Stones)
		}
	})

	t.Run("position out of range", func(t *testing.T) {
		path := fmt.Sprintf("/api/review/%s/position?moveIndex=6", imported.ReviewID)
		rec := doJSON(t, server, "GET", path, "sid-1", nil)
		if rec.Code != http.StatusUnprocessableEntity {
			t.Errorf("expected 422, got %d", rec.Code)
		}
	})

	t.Run("analyze", func(t *testing.T) {
		rec := doJSON(t, server, "POST", "/api/review/analyze", "sid-1", map[string]interface{}{
			"reviewId":  imported.ReviewID,
			"moveIndex": 3,
		})
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		var analysis struct {
			Winrate float64  `json:"winrate"`
			PV      []string `json:"pv"`
		}
		decode(t, rec, &analysis)
		if len(analysis.PV) == 0 {
			t.Error("expected a principal variation")
		}
	})

	t.Run("cross owner", func(t *testing.T) {
		rec := doJSON(t, server, "GET", "/api/review/"+imported.ReviewID, "sid-2", nil)
		if rec.Code != http.StatusForbidden {
			t.Errorf("expected 403, got %d", rec.Code)
		}
	})

	t.Run("close", func(t *testing.T) {
		rec := doJSON(t, server, "POST", "/api/review/close", "sid-1", map[string]string{"reviewId": imported.ReviewID})
		if rec.Code != http.StatusNoContent {
			t.Errorf("expected 204, got %d", rec.Code)
		}
	})
}

func TestExerciseEndpoints(t *testing.T) {
	server := newTestServer(t)

	rec := doJSON(t, server, "POST", "/api/review/import", "sid-1", map[string]string{"sgf": testSGF})
	var imported struct {
		ReviewID string `json:"reviewId"`
	}
	decode(t, rec, &imported)

	save := map[string]interface{}{
		"reviewId":  imported.ReviewID,
		"moveIndex": 2,
		"category":  "beginner",
		"answer":    map[string]interface{}{"kind": "mainline", "length": 2},
	}
	rec = doJSON(t, server, "POST", "/api/exercise/save", "sid-1", save)
	if rec.Code != http.StatusOK {
		t.Fatalf("save: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var saved struct {
		ExerciseID  string `json:"exerciseId"`
		Overwritten bool   `json:"overwritten"`
	}
	decode(t, rec, &saved)
	if saved.ExerciseID == "" {
		t.Fatal("expected an exercise id")
	}
	if saved.Overwritten {
		t.Error("first save must not report overwrite")
	}

	// Same position again: same id, flagged as overwrite.
	rec = doJSON(t, server, "POST", "/api/exercise/save", "sid-1", save)
	var again struct {
		ExerciseID  string `json:"exerciseId"`
		Overwritten bool   `json:"overwritten"`
	}
	decode(t, rec, &again)
	if again.ExerciseID != saved.ExerciseID {
		t.Errorf("expected stable id, got %s vs %s", again.ExerciseID, saved.ExerciseID)
	}
	if !again.Overwritten {
		t.Error("re-save should report overwrite")
	}

	t.Run("bad category", func(t *testing.T) {
		bad := map[string]interface{}{
			"reviewId":  imported.ReviewID,
			"moveIndex": 2,
			"category":  "expert",
			"answer":    map[string]interface{}{"kind": "mainline", "length": 1},
		}
		rec := doJSON(t, server, "POST", "/api/exercise/save", "sid-1", bad)
		if rec.Code != http.StatusUnprocessableEntity {
			t.Errorf("expected 422, got %d", rec.Code)
		}
	})

	t.Run("list and get", func(t *testing.T) {
		rec := doJSON(t, server, "GET", "/api/exercises", "sid-1", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("list: expected 200, got %d", rec.Code)
		}
		var list struct {
			Count int `json:"count"`
		}
		decode(t, rec, &list)
		if list.Count != 1 {
			t.Errorf("expected 1 exercise, got %d", list.Count)
		}

		rec = doJSON(t, server, "GET", "/api/exercises/"+saved.ExerciseID, "sid-1", nil)
		if rec.Code != http.StatusOK {
			t.Errorf("get: expected 200, got %d", rec.Code)
		}

		rec = doJSON(t, server, "GET", "/api/exercises/ex-missing-0", "sid-1", nil)
		if rec.Code != http.StatusNotFound {
			t.Errorf("missing: expected 404, got %d", rec.Code)
		}
	})
}

func TestWebSocketParamValidation(t *testing.T) {
	server := newTestServer(t)

	rec := doJSON(t, server, "GET", "/ws", "sid-1", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing game param: expected 400, got %d", rec.Code)
	}

	rec = doJSON(t, server, "GET", "/ws?game=g-missing", "sid-1", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown game: expected 404, got %d", rec.Code)
	}
}

func TestHealthEndpoint(t *testing.T) {
	server := newTestServer(t)

	rec := doJSON(t, server, "GET", "/api/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}
