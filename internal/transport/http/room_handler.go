package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/julienschmidt/httprouter"
	"quiz-room-service/internal/app"
	"quiz-room-service/internal/domain"
)

// RoomHandler serves the room lifecycle surface: create, validate, and
// read-only state snapshots. Gameplay itself goes over the websocket.
type RoomHandler struct {
	directory *app.Directory
}

func NewRoomHandler(directory *app.Directory) *RoomHandler {
	return &RoomHandler{directory: directory}
}

type createRoomRequest struct {
	HostName string `json:"hostName"`
	QuizID   string `json:"quizId"`
	RoomCode string `json:"roomCode"`
}

type createRoomResponse struct {
	RoomCode string `json:"roomCode"`
}

type validateRoomResponse struct {
	Exists bool `json:"exists"`
}

type errorResponse struct {
	Message string `json:"message"`
}

// Create handles POST /rooms.
func (h *RoomHandler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req createRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.HostName == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: domain.ErrInvalidPayload.Error()})
		return
	}

	code, err := h.directory.CreateRoom(r.Context(), req.HostName, req.QuizID, req.RoomCode)
	switch {
	case errors.Is(err, domain.ErrQuizNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Message: err.Error()})
	case errors.Is(err, domain.ErrRoomCodeTaken):
		writeJSON(w, http.StatusConflict, errorResponse{Message: err.Error()})
	case errors.Is(err, domain.ErrEmptyQuestionSet):
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: err.Error()})
	case err != nil:
		log.Printf("create room failed: %v", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Message: "internal error"})
	default:
		writeJSON(w, http.StatusCreated, createRoomResponse{RoomCode: code})
	}
}

// Validate handles GET /rooms/:code.
func (h *RoomHandler) Validate(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	exists, err := h.directory.Exists(r.Context(), p.ByName("code"))
	if err != nil {
		log.Printf("validate room failed: %v", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Message: "internal error"})
		return
	}
	writeJSON(w, http.StatusOK, validateRoomResponse{Exists: exists})
}

// State handles GET /rooms/:code/state.
func (h *RoomHandler) State(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	snapshot, err := h.directory.Snapshot(r.Context(), p.ByName("code"))
	if errors.Is(err, domain.ErrRoomNotFound) {
		writeJSON(w, http.StatusNotFound, errorResponse{Message: err.Error()})
		return
	}
	if err != nil {
		log.Printf("room state read failed: %v", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Message: "internal error"})
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("write response: %v", err)
	}
}
