package game

import (
	"encoding/json"
	"time"
)

// EventType enum for event classification
type EventType uint8

const (
	EventTypeUnknown EventType = iota
	EventTypeRunStarted
	EventTypeBossWarning
	EventTypeBossSpawned
	EventTypeBossDefeated
	EventTypeLevelUp
	EventTypeUpgradeApplied
	EventTypeGameOver
	EventTypeShake
	EventTypeFault
)

// EventVersion for backwards compatibility of the event log
const EventVersion uint8 = 1

// Event is a discrete occurrence in a run, for the host (UI, audio) and the event log.
type Event struct {
	Version   uint8           `json:"version"`   // Schema version
	Type      EventType       `json:"type"`      // Event type
	Timestamp int64           `json:"timestamp"` // Unix nano
	Sequence  uint64          `json:"sequence"`  // Monotonic sequence, set by the event log
	TickNum   uint64          `json:"tickNum"`   // Run tick this occurred in
	RunID     string          `json:"runId"`     // Source run (for rate limiting)
	Payload   json.RawMessage `json:"payload"`   // JSON-encoded payload
}

// String returns human-readable event type
func (t EventType) String() string {
	switch t {
	case EventTypeRunStarted:
		return "run_started"
	case EventTypeBossWarning:
		return "boss_warning"
	case EventTypeBossSpawned:
		return "boss_spawned"
	case EventTypeBossDefeated:
		return "boss_defeated"
	case EventTypeLevelUp:
		return "level_up"
	case EventTypeUpgradeApplied:
		return "upgrade_applied"
	case EventTypeGameOver:
		return "game_over"
	case EventTypeShake:
		return "shake"
	case EventTypeFault:
		return "fault"
	default:
		return "unknown"
	}
}

// MarshalText lets event types appear by name in JSON.
func (t EventType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText parses a name written by MarshalText. Unknown names decode
// to EventTypeUnknown.
func (t *EventType) UnmarshalText(text []byte) error {
	name := string(text)
	for c := EventTypeRunStarted; c <= EventTypeFault; c++ {
		if c.String() == name {
			*t = c
			return nil
		}
	}
	*t = EventTypeUnknown
	return nil
}

// Typed payloads for different event types

// RunStartedPayload is sent when a run enters PLAYING from START or GAMEOVER.
type RunStartedPayload struct {
	Seed   int64  `json:"seed"`
	Policy string `json:"policy"`
}

// BossWarningPayload announces a boss arriving after Delay seconds.
type BossWarningPayload struct {
	Delay float64 `json:"delay"`
}

// BossSpawnedPayload contains the boss as it materialized.
type BossSpawnedPayload struct {
	EnemyID uint64  `json:"enemyId"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	HP      float64 `json:"hp"`
}

// BossDefeatedPayload is sent once no boss remains.
type BossDefeatedPayload struct {
	Elapsed float64 `json:"elapsed"`
}

// LevelUpPayload contains the new level and the upgrade choices.
type LevelUpPayload struct {
	Level        int             `json:"level"`
	NextLevelExp float64         `json:"nextLevelExp"`
	Pending      int             `json:"pending"`
	Options      []UpgradeOption `json:"options"`
}

// UpgradeAppliedPayload contains the chosen upgrade.
type UpgradeAppliedPayload struct {
	ID    string      `json:"id"`
	Kind  UpgradeKind `json:"kind"`
	Level int         `json:"level"`
}

// ShakePayload mirrors a screen-shake request.
type ShakePayload struct {
	Intensity float64 `json:"intensity"`
	Duration  float64 `json:"duration"`
}

// FaultPayload is sent when a run's tick or a command panicked. The run is
// stopped afterwards.
type FaultPayload struct {
	Error string `json:"error"`
}

// GameOverSummary is the end-of-run summary.
type GameOverSummary struct {
	Elapsed float64 `json:"elapsed"`
	Level   int     `json:"level"`
	Kills   int     `json:"kills"`
}

// EncodePayload marshals a payload to JSON bytes
func EncodePayload(payload interface{}) json.RawMessage {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil
	}
	return data
}

// NewEvent creates a new event with the current timestamp
func NewEvent(eventType EventType, tickNum uint64, runID string, payload interface{}) Event {
	return Event{
		Version:   EventVersion,
		Type:      eventType,
		Timestamp: time.Now().UnixNano(),
		TickNum:   tickNum,
		RunID:     runID,
		Payload:   EncodePayload(payload),
	}
}
