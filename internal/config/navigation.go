package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pTommyed/osgar/internal/units"
)

// DefaultConfigPath is the path to the canonical navigation defaults file.
const DefaultConfigPath = "config/navigation.defaults.json"

// Return strategies for the second half of the mission.
const (
	ReturnRetrace = "retrace"
	ReturnHome    = "home"
)

// NavConfig holds the navigator tuning. Every field is optional; the Get*
// methods supply the defaults for anything left unset, so partial files are
// safe.
type NavConfig struct {
	// Exploration
	RightWall          *bool    `json:"right_wall,omitempty"`
	MaxSpeed           *float64 `json:"max_speed,omitempty"`             // m/s
	MaxAngularSpeedDeg *float64 `json:"max_angular_speed_deg,omitempty"` // deg/s
	WallRadius         *float64 `json:"wall_radius,omitempty"`           // m
	UseLocalPlanner    *bool    `json:"use_local_planner,omitempty"`

	// Dispatcher
	TraceStep          *float64 `json:"trace_step,omitempty"`
	DedupRadius        *float64 `json:"dedup_radius,omitempty"`
	CollisionThreshold *float64 `json:"collision_threshold,omitempty"`
	VirtualWorld       *bool    `json:"virtual_world,omitempty"`

	// Mission script
	EntranceDistance  *float64 `json:"entrance_distance,omitempty"`
	SearchBegin       *string  `json:"search_begin,omitempty"` // duration string like "4m"
	SearchEnd         *string  `json:"search_end,omitempty"`
	ReturnTimeout     *string  `json:"return_timeout,omitempty"`
	ReturnStrategy    *string  `json:"return_strategy,omitempty"`
	ArtifactStopCount *int     `json:"artifact_stop_count,omitempty"`
	SettleDuration    *string  `json:"settle_duration,omitempty"`

	// Homing
	ShortcutRadius    *float64 `json:"shortcut_radius,omitempty"`
	MaxTargetDistance *float64 `json:"max_target_distance,omitempty"`
	HomeThreshold     *float64 `json:"home_threshold,omitempty"`

	// Transport
	SubscriberBuffer *int `json:"subscriber_buffer,omitempty"`
}

// EmptyNavConfig returns a NavConfig with every field unset.
func EmptyNavConfig() *NavConfig {
	return &NavConfig{}
}

// LoadNavConfig loads a NavConfig from a JSON file and validates it.
func LoadNavConfig(path string) (*NavConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyNavConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath from the current directory or
// one of its parents. Panics if the file cannot be loaded, intended for test
// setup.
func MustLoadDefaultConfig() *NavConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath,    // from internal/config/
		"../../../" + DefaultConfigPath, // from cmd/tools/trace-plot/
	}
	for _, path := range candidates {
		if cfg, err := LoadNavConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are usable.
func (c *NavConfig) Validate() error {
	positive := []struct {
		name string
		v    *float64
	}{
		{"max_speed", c.MaxSpeed},
		{"max_angular_speed_deg", c.MaxAngularSpeedDeg},
		{"wall_radius", c.WallRadius},
		{"trace_step", c.TraceStep},
		{"dedup_radius", c.DedupRadius},
		{"collision_threshold", c.CollisionThreshold},
		{"shortcut_radius", c.ShortcutRadius},
		{"max_target_distance", c.MaxTargetDistance},
		{"home_threshold", c.HomeThreshold},
	}
	for _, p := range positive {
		if p.v != nil && *p.v <= 0 {
			return fmt.Errorf("%s must be positive, got %f", p.name, *p.v)
		}
	}

	if c.EntranceDistance != nil && *c.EntranceDistance < 0 {
		return fmt.Errorf("entrance_distance must be non-negative, got %f", *c.EntranceDistance)
	}

	durations := []struct {
		name string
		v    *string
	}{
		{"search_begin", c.SearchBegin},
		{"search_end", c.SearchEnd},
		{"return_timeout", c.ReturnTimeout},
		{"settle_duration", c.SettleDuration},
	}
	for _, d := range durations {
		if d.v == nil || *d.v == "" {
			continue
		}
		parsed, err := time.ParseDuration(*d.v)
		if err != nil {
			return fmt.Errorf("invalid %s '%s': %w", d.name, *d.v, err)
		}
		if parsed < 0 {
			return fmt.Errorf("%s must be non-negative, got %s", d.name, *d.v)
		}
	}

	if c.ReturnStrategy != nil {
		switch *c.ReturnStrategy {
		case ReturnRetrace, ReturnHome:
		default:
			return fmt.Errorf("return_strategy must be %q or %q, got %q", ReturnRetrace, ReturnHome, *c.ReturnStrategy)
		}
	}

	if c.ArtifactStopCount != nil && *c.ArtifactStopCount < 0 {
		return fmt.Errorf("artifact_stop_count must be non-negative, got %d", *c.ArtifactStopCount)
	}
	if c.SubscriberBuffer != nil && *c.SubscriberBuffer <= 0 {
		return fmt.Errorf("subscriber_buffer must be positive, got %d", *c.SubscriberBuffer)
	}

	// A waypoint farther away than the robot already is would send it
	// backwards along the trace.
	if c.GetMaxTargetDistance() <= c.GetShortcutRadius() {
		return fmt.Errorf("max_target_distance (%.2f) must exceed shortcut_radius (%.2f)",
			c.GetMaxTargetDistance(), c.GetShortcutRadius())
	}
	return nil
}

func durationOr(s *string, def time.Duration) time.Duration {
	if s == nil || *s == "" {
		return def
	}
	d, err := time.ParseDuration(*s)
	if err != nil {
		return def
	}
	return d
}

func floatOr(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}

// GetRightWall returns right_wall, default true.
func (c *NavConfig) GetRightWall() bool { return boolOr(c.RightWall, true) }

// GetMaxSpeed returns max_speed in m/s, default 0.3.
func (c *NavConfig) GetMaxSpeed() float64 { return floatOr(c.MaxSpeed, 0.3) }

// GetMaxAngularSpeed returns max_angular_speed_deg converted to rad/s.
func (c *NavConfig) GetMaxAngularSpeed() float64 {
	return units.Radians(floatOr(c.MaxAngularSpeedDeg, 45))
}

// GetWallRadius returns wall_radius, default 0.6 m.
func (c *NavConfig) GetWallRadius() float64 { return floatOr(c.WallRadius, 0.6) }

// GetUseLocalPlanner returns use_local_planner, default false.
func (c *NavConfig) GetUseLocalPlanner() bool { return boolOr(c.UseLocalPlanner, false) }

// GetTraceStep returns trace_step, default 0.5 m.
func (c *NavConfig) GetTraceStep() float64 { return floatOr(c.TraceStep, 0.5) }

// GetDedupRadius returns dedup_radius, default 4.0 m.
func (c *NavConfig) GetDedupRadius() float64 { return floatOr(c.DedupRadius, 4.0) }

// GetCollisionThreshold returns collision_threshold, default 12.
func (c *NavConfig) GetCollisionThreshold() float64 { return floatOr(c.CollisionThreshold, 12.0) }

// GetVirtualWorld returns virtual_world, default false.
func (c *NavConfig) GetVirtualWorld() bool { return boolOr(c.VirtualWorld, false) }

// GetEntranceDistance returns entrance_distance, default 2.5 m.
func (c *NavConfig) GetEntranceDistance() float64 { return floatOr(c.EntranceDistance, 2.5) }

// GetSearchBegin returns search_begin, default 4 minutes.
func (c *NavConfig) GetSearchBegin() time.Duration { return durationOr(c.SearchBegin, 4*time.Minute) }

// GetSearchEnd returns search_end, default 4 minutes.
func (c *NavConfig) GetSearchEnd() time.Duration { return durationOr(c.SearchEnd, 4*time.Minute) }

// GetReturnTimeout returns return_timeout, default 14 minutes.
func (c *NavConfig) GetReturnTimeout() time.Duration {
	return durationOr(c.ReturnTimeout, 14*time.Minute)
}

// GetReturnStrategy returns return_strategy, default "retrace".
func (c *NavConfig) GetReturnStrategy() string {
	if c.ReturnStrategy == nil || *c.ReturnStrategy == "" {
		return ReturnRetrace
	}
	return *c.ReturnStrategy
}

// GetArtifactStopCount returns artifact_stop_count, default 1.
func (c *NavConfig) GetArtifactStopCount() int {
	if c.ArtifactStopCount == nil {
		return 1
	}
	return *c.ArtifactStopCount
}

// GetSettleDuration returns settle_duration, default 3 seconds.
func (c *NavConfig) GetSettleDuration() time.Duration {
	return durationOr(c.SettleDuration, 3*time.Second)
}

// GetShortcutRadius returns shortcut_radius, default 2.3 m.
func (c *NavConfig) GetShortcutRadius() float64 { return floatOr(c.ShortcutRadius, 2.3) }

// GetMaxTargetDistance returns max_target_distance, default 5.0 m.
func (c *NavConfig) GetMaxTargetDistance() float64 { return floatOr(c.MaxTargetDistance, 5.0) }

// GetHomeThreshold returns home_threshold, default 5.0 m.
func (c *NavConfig) GetHomeThreshold() float64 { return floatOr(c.HomeThreshold, 5.0) }

// GetSubscriberBuffer returns subscriber_buffer, default 256.
func (c *NavConfig) GetSubscriberBuffer() int {
	if c.SubscriberBuffer == nil {
		return 256
	}
	return *c.SubscriberBuffer
}
