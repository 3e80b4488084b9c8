// Package main provides a desktop notification plugin for posture alerts.
// It uses AppleScript on macOS and notify-send on Linux.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
)

// Request represents the input from the plugin executor.
type Request struct {
	Event       string          `json:"event"`
	User        string          `json:"user"`
	PostureType string          `json:"posture_type"`
	BadFor      float64         `json:"bad_for_seconds"`
	Config      json.RawMessage `json:"config"`
}

// Response represents the output to the plugin executor.
type Response struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// Config is read from the manifest.
type Config struct {
	Sound           bool `json:"sound"`
	NotifyRecovered bool `json:"notify_recovered"`
}

var hints = map[string]string{
	"slouch":        "Sit back and straighten your back.",
	"severe_slouch": "You are slouching a lot. Sit up straight.",
	"bad_slouch":    "You are slouching a lot. Sit up straight.",
	"forward_head":  "Pull your head back over your shoulders.",
	"shoulder_tilt": "Level your shoulders.",
}

func main() {
	var req Request
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		writeResponse(fmt.Errorf("failed to decode request: %w", err))
		return
	}

	var cfg Config
	if len(req.Config) > 0 {
		if err := json.Unmarshal(req.Config, &cfg); err != nil {
			writeResponse(fmt.Errorf("invalid config: %w", err))
			return
		}
	}

	title, body, ok := message(req, cfg)
	if !ok {
		writeResponse(nil)
		return
	}
	writeResponse(notify(title, body, cfg.Sound))
}

// message builds the notification text. ok is false when nothing should be shown.
func message(req Request, cfg Config) (title, body string, ok bool) {
	switch req.Event {
	case "bad_posture":
		hint, found := hints[req.PostureType]
		if !found {
			hint = "Check your posture."
		}
		return "Posture", fmt.Sprintf("%s (%s for %s)", hint, strings.ReplaceAll(req.PostureType, "_", " "), duration(req.BadFor)), true
	case "posture_recovered":
		if !cfg.NotifyRecovered {
			return "", "", false
		}
		return "Posture", "Nice, back to good posture.", true
	default:
		return "", "", false
	}
}

func duration(seconds float64) string {
	if seconds < 60 {
		return fmt.Sprintf("%.0fs", seconds)
	}
	return fmt.Sprintf("%.0fm", seconds/60)
}

func notify(title, body string, sound bool) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		script := fmt.Sprintf("display notification %q with title %q", body, title)
		if sound {
			script += ` sound name "Submarine"`
		}
		cmd = exec.Command("osascript", "-e", script)
	case "linux":
		cmd = exec.Command("notify-send", "--app-name=posture", title, body)
	default:
		return fmt.Errorf("notifications are not supported on %s", runtime.GOOS)
	}

	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %s", err, string(output))
	}
	return nil
}

// writeResponse writes the outcome to stdout.
func writeResponse(err error) {
	resp := Response{Success: err == nil}
	if err != nil {
		resp.Error = err.Error()
	}
	json.NewEncoder(os.Stdout).Encode(resp)
}
