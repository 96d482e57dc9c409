package api

import (
	"encoding/json"
	"net/http"

	"github.com/ayusman/signpost/internal/calibration"
	"github.com/ayusman/signpost/internal/logger"
)

// CommandPusher accepts operator commands for the frame loop.
type CommandPusher interface {
	Push(cmd calibration.Command) bool
}

// CommandsHandler queues remote calibration commands.
type CommandsHandler struct {
	queue CommandPusher
}

// NewCommandsHandler creates a new CommandsHandler feeding queue.
func NewCommandsHandler(queue CommandPusher) *CommandsHandler {
	return &CommandsHandler{queue: queue}
}

type commandRequest struct {
	Command string `json:"command"`
}

type commandResponse struct {
	Queued string `json:"queued"`
}

// ServeHTTP handles POST /api/commands with a body such as
// {"command": "increase"}. The command runs on a later frame.
func (h *CommandsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req commandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	cmd, ok := calibration.ParseCommand(req.Command)
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown command: "+req.Command)
		return
	}

	if !h.queue.Push(cmd) {
		writeError(w, http.StatusServiceUnavailable, "command queue full")
		return
	}

	logger.Named("api").Infow("Remote command queued", "command", cmd.String(), "remote", r.RemoteAddr)
	writeJSON(w, http.StatusAccepted, commandResponse{Queued: cmd.String()})
}
