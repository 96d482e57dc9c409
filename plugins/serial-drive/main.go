// Package main provides a hook that forwards committed sign actions to a
// motor controller as one text line per action over a serial port.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/cockroachdb/errors"
	"go.bug.st/serial"
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

// Config selects the serial port. With DryRun set the line is returned
// instead of written.
type Config struct {
	Port   string `json:"port"`
	Baud   int    `json:"baud"`
	DryRun bool   `json:"dry_run"`
}

// driveCommands maps sign actions to controller commands.
var driveCommands = map[string]string{
	"NO ENTRY":   "HALT",
	"DEAD END":   "REVERSE",
	"TURN RIGHT": "RIGHT",
	"TURN LEFT":  "LEFT",
	"FORWARD":    "FWD",
	"STOP":       "STOP",
}

func main() {
	var req Request
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		writeErrorResponse(fmt.Sprintf("failed to decode request: %v", err))
		return
	}

	line, err := driveLine(req)
	if err != nil {
		writeErrorResponse(err.Error())
		return
	}

	cfg := Config{Baud: 115200}
	if len(req.Config) > 0 {
		if err := json.Unmarshal(req.Config, &cfg); err != nil {
			writeErrorResponse(fmt.Sprintf("failed to parse config: %v", err))
			return
		}
	}

	if !cfg.DryRun {
		if err := send(cfg, line); err != nil {
			writeErrorResponse(fmt.Sprintf("serial write failed: %v", err))
			return
		}
	}

	writeSuccessResponse(map[string]any{"line": line, "port": cfg.Port, "sent": !cfg.DryRun})
}

// driveLine formats the controller line for a request, e.g. "STOP 118.4".
func driveLine(req Request) (string, error) {
	cmd, ok := driveCommands[req.Action]
	if !ok {
		return "", errors.Newf("no drive command for action %q", req.Action)
	}
	return fmt.Sprintf("%s %.1f\n", cmd, req.DistanceCm), nil
}

// send opens the port, writes the line and closes it again.
func send(cfg Config, line string) error {
	if cfg.Port == "" {
		return errors.New("config.port is required")
	}

	mode := &serial.Mode{
		BaudRate: cfg.Baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(cfg.Port, mode)
	if err != nil {
		return errors.Wrapf(err, "open %s", cfg.Port)
	}
	defer port.Close()

	if _, err := io.WriteString(port, line); err != nil {
		return errors.Wrapf(err, "write %s", cfg.Port)
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
