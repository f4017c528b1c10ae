// Package config provides centralized configuration management.
// Process-level settings come from the environment; gameplay tuning lives in
// the Balance tables (see balance.go), which may be overridden by a YAML file.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// =============================================================================
// SIMULATION CONFIGURATION
// =============================================================================

// SimulationConfig controls how runs are stepped.
type SimulationConfig struct {
	TickRate      int     // Ticks per second for every hosted run
	MaxFrameDelta float64 // Largest delta (seconds) a single tick may consume
	BroadcastRate int     // Snapshot pushes per second over WebSocket
	LevelPolicy   string  // Name of the weapon level-up policy table
}

// DefaultSimulation returns the default simulation configuration.
func DefaultSimulation() SimulationConfig {
	return SimulationConfig{
		TickRate:      60,
		MaxFrameDelta: 0.1, // A stalled host never produces more than 100ms of simulated time
		BroadcastRate: 30,
		LevelPolicy:   "classic",
	}
}

// SimulationFromEnv returns simulation configuration with environment overrides.
func SimulationFromEnv() SimulationConfig {
	cfg := DefaultSimulation()

	if tr := getEnvInt("TICK_RATE", 0); tr > 0 {
		cfg.TickRate = tr
	}
	if br := getEnvInt("BROADCAST_RATE", 0); br > 0 {
		cfg.BroadcastRate = br
	}
	if md := getEnvFloat("MAX_FRAME_DELTA", 0); md > 0 {
		cfg.MaxFrameDelta = md
	}
	if p := os.Getenv("LEVEL_POLICY"); p != "" {
		cfg.LevelPolicy = p
	}

	return cfg
}

// =============================================================================
// VIEWPORT CONFIGURATION
// =============================================================================

// ViewportConfig describes the logical coordinate space.
// The short side of the logical viewport is always ReferenceSize units;
// the long side follows the physical aspect ratio.
type ViewportConfig struct {
	ReferenceSize   float64 // Logical units along the short edge
	DefaultWidth    int     // Physical width assumed until a client reports its size
	DefaultHeight   int
	PointerDeadZone float64 // Logical radius around the player where a held pointer does not steer
}

// DefaultViewport returns the default viewport configuration.
func DefaultViewport() ViewportConfig {
	return ViewportConfig{
		ReferenceSize:   720,
		DefaultWidth:    1280,
		DefaultHeight:   720,
		PointerDeadZone: 30,
	}
}

// ViewportFromEnv returns viewport configuration with environment overrides.
func ViewportFromEnv() ViewportConfig {
	cfg := DefaultViewport()

	if r := getEnvFloat("VIEWPORT_REFERENCE", 0); r > 0 {
		cfg.ReferenceSize = r
	}
	if w := getEnvInt("VIEWPORT_WIDTH", 0); w > 0 {
		cfg.DefaultWidth = w
	}
	if h := getEnvInt("VIEWPORT_HEIGHT", 0); h > 0 {
		cfg.DefaultHeight = h
	}
	if dz := getEnvFloat("POINTER_DEAD_ZONE", -1); dz >= 0 {
		cfg.PointerDeadZone = dz
	}

	return cfg
}

// =============================================================================
// RESOURCE LIMITS
// =============================================================================

// ResourceLimits caps every entity pool of a run.
type ResourceLimits struct {
	MaxEnemies     int
	MaxProjectiles int
	MaxExplosions  int
	MaxParticles   int
	MaxTexts       int
	MaxPickups     int
}

// DefaultLimits returns the default resource limits.
func DefaultLimits() ResourceLimits {
	return ResourceLimits{
		MaxEnemies:     400,
		MaxProjectiles: 200,
		MaxExplosions:  20,
		MaxParticles:   600,
		MaxTexts:       80,
		MaxPickups:     400,
	}
}

// =============================================================================
// SERVER CONFIGURATION
// =============================================================================

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               int
	MaxSessions        int
	SessionIdleTimeout time.Duration
	EventLogPath       string
	BalancePath        string
	AllowedOrigins     []string // Browser origins accepted by CORS and the WebSocket upgrade
}

// DefaultServer returns the default server configuration.
func DefaultServer() ServerConfig {
	return ServerConfig{
		Port:               3000,
		MaxSessions:        64,
		SessionIdleTimeout: 5 * time.Minute,
		EventLogPath:       "events.jsonl",
		AllowedOrigins: []string{
			"http://localhost:*",
			"http://127.0.0.1:*",
		},
	}
}

// ServerFromEnv returns server configuration with environment overrides.
func ServerFromEnv() ServerConfig {
	cfg := DefaultServer()

	if p := getEnvInt("PORT", 0); p > 0 {
		cfg.Port = p
	}
	if ms := getEnvInt("MAX_SESSIONS", 0); ms > 0 {
		cfg.MaxSessions = ms
	}
	if v := os.Getenv("SESSION_IDLE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.SessionIdleTimeout = d
		}
	}
	if v, ok := os.LookupEnv("EVENT_LOG_PATH"); ok {
		cfg.EventLogPath = v
	}
	if v := os.Getenv("BALANCE_PATH"); v != "" {
		cfg.BalancePath = v
	}
	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		cfg.AllowedOrigins = splitList(v)
	}

	return cfg
}

// =============================================================================
// DEBUG SERVER CONFIGURATION
// =============================================================================

// DebugConfig configures the pprof/metrics listener.
type DebugConfig struct {
	Enabled    bool
	ListenAddr string
}

// DefaultDebug returns the default debug configuration (localhost only).
func DefaultDebug() DebugConfig {
	return DebugConfig{
		Enabled:    true,
		ListenAddr: "127.0.0.1:6060",
	}
}

// DebugFromEnv returns debug configuration with environment overrides.
func DebugFromEnv() DebugConfig {
	cfg := DefaultDebug()
	if os.Getenv("DISABLE_DEBUG_SERVER") == "true" {
		cfg.Enabled = false
	}
	if addr := os.Getenv("DEBUG_ADDR"); addr != "" {
		cfg.ListenAddr = addr
	}
	return cfg
}

// =============================================================================
// COMPLETE APP CONFIGURATION
// =============================================================================

// AppConfig holds the complete application configuration.
type AppConfig struct {
	Simulation SimulationConfig
	Viewport   ViewportConfig
	Server     ServerConfig
	Limits     ResourceLimits
	Debug      DebugConfig
}

// Load returns the complete configuration with environment overrides.
func Load() AppConfig {
	return AppConfig{
		Simulation: SimulationFromEnv(),
		Viewport:   ViewportFromEnv(),
		Server:     ServerFromEnv(),
		Limits:     DefaultLimits(),
		Debug:      DebugFromEnv(),
	}
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}
