package game

import "errors"

// Sentinel kinds for arbitration and lifecycle errors. Tag rejection reasons
// are not errors; they come back as TagResult values.
var (
	ErrPlayerNotFound      = errors.New("player not found")
	ErrRoomNotFound        = errors.New("room not found")
	ErrRoomNotJoinable     = errors.New("room not joinable")
	ErrInvalidTransition   = errors.New("invalid room transition")
	ErrInsufficientPlayers = errors.New("insufficient players")
	ErrCrossRoomTag        = errors.New("players are not in the same room")
	ErrRoomNotRunning      = errors.New("room is not running")
	ErrCodeSpaceExhausted  = errors.New("room code space exhausted")
)
