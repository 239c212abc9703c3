// Package model contains domain models passed between layers.
package model

import "time"

// RoomStatus is the lifecycle state of a room. Transitions are monotonic:
// lobby -> running -> finished.
type RoomStatus string

// Room lifecycle states.
const (
	StatusLobby    RoomStatus = "lobby"
	StatusRunning  RoomStatus = "running"
	StatusFinished RoomStatus = "finished"
)

// TagOutcome labels the result of a tag attempt. Success aside, these are
// expected rejection reasons, not errors.
type TagOutcome string

// Tag attempt outcomes.
const (
	OutcomeSuccess          TagOutcome = "success"
	OutcomeMissingSignal    TagOutcome = "missing_signal"
	OutcomeAttackerCooldown TagOutcome = "attacker_cooldown"
	OutcomeDefenderImmunity TagOutcome = "defender_immunity"
	OutcomeTooFar           TagOutcome = "too_far"
)

// Player is the authoritative game-state record for one device identity.
// Sensor-derived fields live in the telemetry store, not here.
type Player struct {
	ID          string
	DeviceToken string
	Name        string

	// RoomID is empty when the player is not in a room.
	RoomID string

	IsIt         bool
	Score        int
	TagsMade     int
	TagsReceived int
	TagAttempts  int

	// Zero values mean "never happened".
	LastTagAttemptAt time.Time
	LastTaggedAt     time.Time

	Online     bool
	LastSeenAt time.Time
	CreatedAt  time.Time
}

// RoomSettings carries per-room threshold overrides. Zero values fall back
// to the global defaults.
type RoomSettings struct {
	SignalThresholdDBM float64       `json:"signal_threshold_dbm,omitempty"`
	Cooldown           time.Duration `json:"cooldown,omitempty"`
	Immunity           time.Duration `json:"immunity,omitempty"`
}

// Room is the authoritative record for one game room.
type Room struct {
	ID     string
	Code   string
	Name   string
	Status RoomStatus

	// ItPlayerID mirrors the single IsIt flag among members while running.
	ItPlayerID string

	Settings RoomSettings

	CreatedAt  time.Time
	StartedAt  time.Time
	FinishedAt time.Time
}

// MotionVector is a raw accelerometer-style sample.
type MotionVector struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// TelemetryKind discriminates queued telemetry updates.
type TelemetryKind string

// Telemetry update kinds.
const (
	TelemetrySignal TelemetryKind = "signal"
	TelemetryMotion TelemetryKind = "motion"
)

// TelemetryUpdate is the payload flowing through the ingestion queue.
type TelemetryUpdate struct {
	PlayerID string
	Kind     TelemetryKind
	RSSI     int
	Vector   MotionVector
	At       time.Time
}

// TagEvent records one arbitration outcome in a room's bounded event log.
// MeanSignalDBM and Distance are populated only when the validation reached
// the distance comparison (success or too_far).
type TagEvent struct {
	At            time.Time  `json:"at"`
	RoomID        string     `json:"room_id"`
	AttackerID    string     `json:"attacker_id"`
	DefenderID    string     `json:"defender_id"`
	Success       bool       `json:"success"`
	Reason        TagOutcome `json:"reason"`
	MeanSignalDBM float64    `json:"mean_signal_dbm,omitempty"`
	Distance      float64    `json:"distance,omitempty"`
}

// PlayerView is the read shape of a player inside a snapshot.
type PlayerView struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	IsIt         bool   `json:"is_it"`
	Score        int    `json:"score"`
	TagsMade     int    `json:"tags_made"`
	TagsReceived int    `json:"tags_received"`
	Online       bool   `json:"online"`
}

// RoomSnapshot is a complete, self-consistent view of a room and its roster.
// Every emission carries full state so a subscriber joining mid-stream never
// needs prior history.
type RoomSnapshot struct {
	RoomID      string       `json:"room_id"`
	Code        string       `json:"code"`
	Name        string       `json:"name,omitempty"`
	Status      RoomStatus   `json:"status"`
	ItPlayerID  string       `json:"it_player_id,omitempty"`
	PlayerCount int          `json:"player_count"`
	Players     []PlayerView `json:"players"`
	EventCount  int          `json:"event_count"`
	At          time.Time    `json:"at"`
}
