// Package main provides a hook that speaks committed sign actions with the
// host's text-to-speech command.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"

	"github.com/cockroachdb/errors"
)

// Request represents the input from the hook dispatcher.
type Request struct {
	Action     string          `json:"action"`
	Event      string          `json:"event"`
	MarkerID   int             `json:"marker_id"`
	DistanceCm float64         `json:"distance_cm"`
	Focal      int             `json:"focal"`
	Config     json.RawMessage `json:"config"`
	Params     json.RawMessage `json:"params"`
}

// Response represents the output to the hook dispatcher.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Config optionally overrides the speech command. With DryRun set the
// phrase is returned instead of spoken.
type Config struct {
	Command string `json:"command"`
	DryRun  bool   `json:"dry_run"`
}

func main() {
	var req Request
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		writeErrorResponse(fmt.Sprintf("failed to decode request: %v", err))
		return
	}

	var cfg Config
	if len(req.Config) > 0 {
		if err := json.Unmarshal(req.Config, &cfg); err != nil {
			writeErrorResponse(fmt.Sprintf("failed to parse config: %v", err))
			return
		}
	}

	text := phrase(req)
	if !cfg.DryRun {
		if err := speak(cfg.Command, text); err != nil {
			writeErrorResponse(fmt.Sprintf("speech failed: %v", err))
			return
		}
	}

	writeSuccessResponse(map[string]any{"phrase": text})
}

// phrase builds the spoken sentence, e.g. "Stop confirmed, 120 centimeters".
func phrase(req Request) string {
	action := strings.ToLower(req.Action)
	if req.Event == "stop_confirmed" {
		action += " confirmed"
	}
	if action == "" {
		action = "unknown sign"
	}
	return fmt.Sprintf("%s%s, %.0f centimeters", strings.ToUpper(action[:1]), action[1:], req.DistanceCm)
}

// speechCommand returns the default text-to-speech program for the host.
func speechCommand() string {
	switch runtime.GOOS {
	case "darwin":
		return "say"
	case "windows":
		return ""
	default:
		return "espeak"
	}
}

// speak runs the speech command with text as its argument.
func speak(command, text string) error {
	if command == "" {
		command = speechCommand()
	}
	if command == "" {
		return errors.Newf("no speech command available on %s", runtime.GOOS)
	}

	output, err := exec.Command(command, text).CombinedOutput()
	if err != nil {
		return errors.Wrapf(err, "%s", strings.TrimSpace(string(output)))
	}
	return nil
}

// writeErrorResponse writes an error response to stdout.
func writeErrorResponse(errMsg string) {
	resp := Response{
		Success: false,
		Error:   errMsg,
	}
	json.NewEncoder(os.Stdout).Encode(resp)
}

// writeSuccessResponse writes a success response with data to stdout.
func writeSuccessResponse(data any) {
	resp := Response{Success: true}
	if raw, err := json.Marshal(data); err == nil {
		resp.Data = raw
	}
	json.NewEncoder(os.Stdout).Encode(resp)
}
