package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/baduklab/goban-server/game/board"
	"github.com/baduklab/goban-server/game/exercise"
	"github.com/baduklab/goban-server/game/gtp"
	"github.com/baduklab/goban-server/game/review"
	"github.com/baduklab/goban-server/game/service"
	"github.com/baduklab/goban-server/game/session"
	"github.com/baduklab/goban-server/transport/websocket"
)

const maxSGFBytes = 1 << 20

// Server represents the REST API server
type Server struct {
	service service.GameService
	hub     *websocket.Hub
	router  *mux.Router
}

// NewServer creates a new API server
func NewServer(gameService service.GameService, hub *websocket.Hub) *Server {
	s := &Server{
		service: gameService,
		hub:     hub,
		router:  mux.NewRouter(),
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()

	// Live games
	api.HandleFunc("/game/new", s.handleGameNew).Methods("POST")
	api.HandleFunc("/game/play", s.handleGamePlay).Methods("POST")
	api.HandleFunc("/game/heartbeat", s.handleGameHeartbeat).Methods("POST")
	api.HandleFunc("/game/close", s.handleGameClose).Methods("POST")
	api.HandleFunc("/game/{id}", s.handleGameState).Methods("GET")
	api.HandleFunc("/engine/status", s.handleEngineStatus).Methods("GET")

	// Reviews
	api.HandleFunc("/review/import", s.handleReviewImport).Methods("POST")
	api.HandleFunc("/review/analyze", s.handleReviewAnalyze).Methods("POST")
	api.HandleFunc("/review/close", s.handleReviewClose).Methods("POST")
	api.HandleFunc("/review/{id}", s.handleReviewInfo).Methods("GET")
	api.HandleFunc("/review/{id}/position", s.handleReviewPosition).Methods("GET")

	// Exercises
	api.HandleFunc("/exercise/save", s.handleExerciseSave).Methods("POST")
	api.HandleFunc("/exercises", s.handleExerciseList).Methods("GET")
	api.HandleFunc("/exercises/{id}", s.handleExerciseGet).Methods("GET")

	api.HandleFunc("/health", s.handleHealth).Methods("GET")

	// WebSocket
	s.router.HandleFunc("/ws", s.handleWebSocket)

	// Static files (if needed)
	s.router.PathPrefix("/").Handler(http.FileServer(http.Dir("./static/")))
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Response helpers
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondServiceError maps domain errors onto HTTP statuses. Any
// error no case claims is an internal one.
func respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrCapacityExceeded):
		respondError(w, http.StatusTooManyRequests, err.Error())
	case errors.Is(err, session.ErrNotFound),
		errors.Is(err, review.ErrNotFound),
		errors.Is(err, exercise.ErrNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, session.ErrForbidden),
		errors.Is(err, review.ErrForbidden):
		respondError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, session.ErrIllegalMove),
		errors.Is(err, session.ErrGameEnded),
		errors.Is(err, board.ErrOutOfRange),
		errors.Is(err, review.ErrInvalidSGF),
		errors.Is(err, exercise.ErrValidation):
		respondError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, gtp.ErrEngineUnavailable),
		errors.Is(err, gtp.ErrCommandFailed):
		respondError(w, http.StatusServiceUnavailable, err.Error())
	default:
		respondError(w, http.StatusInternalServerError, err.Error())
	}
}

// ownerID reads the sid cookie, minting one when the client has none.
// The cookie is the opaque owner identity for admission counting and
// access control.
func ownerID(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie("sid"); err == nil && c.Value != "" {
		return c.Value
	}
	sid := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     "sid",
		Value:    sid,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return sid
}

// Game Handlers

func (s *Server) handleGameNew(w http.ResponseWriter, r *http.Request) {
	sid := ownerID(w, r)

	var cfg session.GameConfig
	if r.Body != nil {
		json.NewDecoder(r.Body).Decode(&cfg)
	}

	result, err := s.service.NewGame(r.Context(), sid, cfg)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	log.Printf("[GAME] new id=%s owner=%s size=%d level=%d active=%d",
		result.GameID, sid, result.Config.BoardSize, result.Config.Level, result.ActiveGames)
	respondJSON(w, http.StatusCreated, result)
}

func (s *Server) handleGamePlay(w http.ResponseWriter, r *http.Request) {
	sid := ownerID(w, r)

	var req struct {
		GameID string `json:"gameId"`
		Move   string `json:"move"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := s.service.Play(r.Context(), sid, req.GameID, req.Move)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	// Broadcast to WebSocket clients
	if s.hub != nil {
		s.hub.BroadcastToGame(req.GameID, result)
	}

	log.Printf("[MOVE] game=%s %s -> %s finished=%v", req.GameID, req.Move, result.EngineMove, result.End.Finished)
	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleGameHeartbeat(w http.ResponseWriter, r *http.Request) {
	sid := ownerID(w, r)

	var req struct {
		GameID string `json:"gameId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := s.service.Heartbeat(sid, req.GameID); err != nil {
		respondServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGameClose(w http.ResponseWriter, r *http.Request) {
	sid := ownerID(w, r)

	var req struct {
		GameID string `json:"gameId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := s.service.CloseGame(sid, req.GameID); err != nil {
		respondServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGameState(w http.ResponseWriter, r *http.Request) {
	sid := ownerID(w, r)
	gameID := mux.Vars(r)["id"]

	state, err := s.service.GameState(sid, gameID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, state)
}

func (s *Server) handleEngineStatus(w http.ResponseWriter, r *http.Request) {
	sid := ownerID(w, r)
	respondJSON(w, http.StatusOK, s.service.EngineStatus(sid))
}

// Review Handlers

func (s *Server) handleReviewImport(w http.ResponseWriter, r *http.Request) {
	sid := ownerID(w, r)

	sgf, err := readSGF(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := s.service.ImportSGF(sid, sgf)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	log.Printf("[REVIEW] import id=%s owner=%s moves=%d", result.ReviewID, sid, result.MoveCount)
	respondJSON(w, http.StatusOK, result)
}

// readSGF accepts the record as a multipart file upload, a JSON body
// with an "sgf" field, or a URL to fetch it from.
func readSGF(r *http.Request) (string, error) {
	if err := r.ParseMultipartForm(maxSGFBytes); err == nil {
		file, _, err := r.FormFile("file")
		if err == nil {
			defer file.Close()
			data, err := io.ReadAll(io.LimitReader(file, maxSGFBytes))
			if err != nil {
				return "", fmt.Errorf("read upload: %w", err)
			}
			return string(data), nil
		}
	}

	var req struct {
		SGF       string `json:"sgf"`
		SourceURL string `json:"sourceUrl"`
	}
	if err := json.NewDecoder(io.LimitReader(r.Body, maxSGFBytes)).Decode(&req); err != nil {
		return "", fmt.Errorf("invalid request body")
	}
	if req.SGF != "" {
		return req.SGF, nil
	}
	if req.SourceURL != "" {
		resp, err := http.Get(req.SourceURL)
		if err != nil {
			return "", fmt.Errorf("fetch source url: %w", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return "", fmt.Errorf("fetch source url: status %d", resp.StatusCode)
		}
		data, err := io.ReadAll(io.LimitReader(resp.Body, maxSGFBytes))
		if err != nil {
			return "", fmt.Errorf("read source url: %w", err)
		}
		return string(data), nil
	}
	return "", fmt.Errorf("provide a file, an sgf field, or a sourceUrl")
}

func (s *Server) handleReviewInfo(w http.ResponseWriter, r *http.Request) {
	sid := ownerID(w, r)
	reviewID := mux.Vars(r)["id"]

	result, err := s.service.ReviewInfo(sid, reviewID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleReviewPosition(w http.ResponseWriter, r *http.Request) {
	sid := ownerID(w, r)
	reviewID := mux.Vars(r)["id"]

	moveIndex, err := strconv.Atoi(r.URL.Query().Get("moveIndex"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "moveIndex query parameter required")
		return
	}

	stones, err := s.service.PositionAt(sid, reviewID, moveIndex)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"moveIndex": moveIndex,
		"stones":    stones,
	})
}

func (s *Server) handleReviewAnalyze(w http.ResponseWriter, r *http.Request) {
	sid := ownerID(w, r)

	var req struct {
		ReviewID  string `json:"reviewId"`
		MoveIndex int    `json:"moveIndex"`
		MaxVisits int    `json:"maxVisits,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := s.service.Analyze(r.Context(), sid, req.ReviewID, req.MoveIndex, req.MaxVisits)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleReviewClose(w http.ResponseWriter, r *http.Request) {
	sid := ownerID(w, r)

	var req struct {
		ReviewID string `json:"reviewId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := s.service.CloseReview(sid, req.ReviewID); err != nil {
		respondServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Exercise Handlers

func (s *Server) handleExerciseSave(w http.ResponseWriter, r *http.Request) {
	sid := ownerID(w, r)

	var req struct {
		ReviewID  string            `json:"reviewId"`
		MoveIndex int               `json:"moveIndex"`
		Category  exercise.Category `json:"category"`
		Answer    exercise.Answer   `json:"answer"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := s.service.SaveExercise(sid, req.ReviewID, req.MoveIndex, req.Category, req.Answer)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	log.Printf("[EXERCISE] saved id=%s review=%s overwrite=%v", result.ExerciseID, req.ReviewID, result.Overwritten)
	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleExerciseList(w http.ResponseWriter, r *http.Request) {
	list, err := s.service.ListExercises()
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count":     len(list),
		"exercises": list,
	})
}

func (s *Server) handleExerciseGet(w http.ResponseWriter, r *http.Request) {
	doc, err := s.service.GetExercise(mux.Vars(r)["id"])
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, doc)
}

// WebSocket Handler

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sid := ownerID(w, r)

	gameID := r.URL.Query().Get("game")
	if gameID == "" {
		http.Error(w, "game parameter required", http.StatusBadRequest)
		return
	}

	// Verify the game exists and belongs to the caller before
	// upgrading the connection.
	if _, err := s.service.GameState(sid, gameID); err != nil {
		http.Error(w, "Invalid game", http.StatusNotFound)
		return
	}

	s.hub.ServeWS(w, r, gameID)
}

// Health check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}
