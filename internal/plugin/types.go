// Package plugin runs external alert hooks when a session's posture stays bad.
//
// A plugin is a directory holding a plugin.json manifest and an executable.
// Each alert runs the executable once, with a JSON Request on stdin, and
// reads a JSON Response from stdout.
package plugin

import (
	"encoding/json"
	"slices"
)

// Alert events sent to plugins.
const (
	EventBadPosture = "bad_posture"
	EventRecovered  = "posture_recovered"
)

// Manifest describes a plugin's metadata and the events it handles.
type Manifest struct {
	Name        string          `json:"name"`
	Version     string          `json:"version"`
	Description string          `json:"description"`
	Executable  string          `json:"executable"`
	Events      []string        `json:"events"`
	Config      json.RawMessage `json:"config,omitempty"`
}

// Handles reports whether the plugin subscribes to event.
func (m Manifest) Handles(event string) bool {
	return slices.Contains(m.Events, event)
}

// Metrics are the smoothed angles at the time of the alert, in degrees.
type Metrics struct {
	TorsoAngle   float64 `json:"torso_angle"`
	NeckAngle    float64 `json:"neck_angle"`
	ShoulderTilt float64 `json:"shoulder_tilt"`
}

// Request is sent to a plugin on stdin.
type Request struct {
	Event       string          `json:"event"`
	SessionID   string          `json:"session_id"`
	User        string          `json:"user"`
	PostureType string          `json:"posture_type"`
	BadFor      float64         `json:"bad_for_seconds"`
	Metrics     Metrics         `json:"metrics"`
	Config      json.RawMessage `json:"config,omitempty"`
}

// Response is read from a plugin's stdout.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Plugin represents a discovered plugin with its manifest and location.
type Plugin struct {
	Manifest   Manifest
	Path       string
	Executable string
}
