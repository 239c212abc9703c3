package simulate

import "time"

// Config holds configuration for a simulation run.
type Config struct {
	BaseURL      string        // Base URL of the service
	Players      int           // Number of players to register
	RoomSize     int           // Players per room
	Duration     time.Duration // How long to stream traffic
	Workers      int           // Number of concurrent traffic workers
	Timeout      time.Duration // HTTP request timeout
	TagInterval  time.Duration // Delay between tag attempts per worker
	SignalFloor  int           // Weakest simulated reading (dBm)
	SignalCeil   int           // Strongest simulated reading (dBm)
	LogFile      string        // Log file for run output
	Verbose      bool          // Enable verbose logging
}

// player tracks one registered simulated player.
type player struct {
	ID     string
	Name   string
	RoomID string
	Code   string
}

// room tracks one created room and its roster.
type room struct {
	ID      string
	Code    string
	Members []string
}

// playerResponse mirrors POST /players responses.
type playerResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// roomResponse mirrors POST /rooms and /rooms/join responses.
type roomResponse struct {
	ID     string `json:"id"`
	Code   string `json:"code"`
	Status string `json:"status"`
}

// snapshotResponse mirrors room snapshot payloads.
type snapshotResponse struct {
	RoomID      string `json:"room_id"`
	Status      string `json:"status"`
	ItPlayerID  string `json:"it_player_id"`
	PlayerCount int    `json:"player_count"`
	Players     []struct {
		ID    string `json:"id"`
		IsIt  bool   `json:"is_it"`
		Score int    `json:"score"`
	} `json:"players"`
}

// tagResponse mirrors POST /tag responses.
type tagResponse struct {
	Success       bool   `json:"success"`
	Reason        string `json:"reason"`
	NewItPlayerID string `json:"new_it_player_id"`
}

// ackResponse mirrors telemetry acknowledgements.
type ackResponse struct {
	Status string `json:"status"`
}

// Stats holds simulation statistics.
type Stats struct {
	PlayersRegistered int
	RoomsCreated      int
	GamesStarted      int
	SignalsSubmitted  int
	SignalsRejected   int
	TagsAttempted     int
	TagsSucceeded     int
	TagsRejected      int
	TagsFailed        int
	RoomsVerified     int
	StartTime         time.Time
	EndTime           time.Time
	Duration          time.Duration
}
