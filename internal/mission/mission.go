// Package mission runs the fixed exploration script: enter the tunnel,
// follow a wall while looking for artifacts, come back, and report what was
// found.
package mission

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pTommyed/osgar/internal/artifact"
	"github.com/pTommyed/osgar/internal/config"
	"github.com/pTommyed/osgar/internal/monitoring"
	"github.com/pTommyed/osgar/internal/navigation"
	"github.com/pTommyed/osgar/internal/telemetry"
)

// Phase is the stage the mission is in.
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseEntering  Phase = "entering"
	PhaseExploring Phase = "exploring"
	PhaseReturning Phase = "returning"
	PhaseReporting Phase = "reporting"
	PhaseDone      Phase = "done"
	PhaseFailed    Phase = "failed"
)

// Active reports whether the robot is still carrying out the script.
func (p Phase) Active() bool {
	switch p {
	case PhaseEntering, PhaseExploring, PhaseReturning, PhaseReporting:
		return true
	}
	return false
}

// ReverseSpeed is the linear speed held during the turn-around pivots; a
// slow back-up keeps the wall in view.
const ReverseSpeed = -0.1

// Result summarises a finished run.
type Result struct {
	ID        string
	Strategy  string
	RightWall bool
	// Explored is the distance covered by the exploration leg.
	Explored  float64
	Traveled  float64
	Artifacts []artifact.Record
	// Trace is the path recorded up to the return leg; Pruned is the
	// shortcut path used for homing, empty for the retrace strategy.
	Trace    []r3.Vec
	Pruned   []r3.Vec
	Final    r3.Vec
	Started  time.Duration
	Finished time.Duration
	Stats    telemetry.Stats
}

// Mission sequences the controller through one run.
type Mission struct {
	nav *navigation.Navigator
	cfg *config.NavConfig
	id  string

	mu      sync.Mutex
	phase   Phase
	onPhase func(Phase)
}

// New returns a mission driving nav with cfg.
func New(nav *navigation.Navigator, cfg *config.NavConfig) *Mission {
	if cfg == nil {
		cfg = nav.Config()
	}
	return &Mission{nav: nav, cfg: cfg, id: uuid.New().String(), phase: PhaseIdle}
}

// ID returns the run identifier.
func (m *Mission) ID() string { return m.id }

// OnPhase registers a callback invoked on every phase change. It runs on
// the mission goroutine and must not block.
func (m *Mission) OnPhase(f func(Phase)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onPhase = f
}

// Phase returns the current phase. Safe to call from other goroutines.
func (m *Mission) Phase() Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phase
}

func (m *Mission) setPhase(p Phase) {
	m.mu.Lock()
	m.phase = p
	cb := m.onPhase
	m.mu.Unlock()
	monitoring.Logf("[mission] %v %s", m.nav.Now(), p)
	if cb != nil {
		cb(p)
	}
}

// Run executes the configured script to completion. The returned Result is
// populated even when err is non-nil.
func (m *Mission) Run(ctx context.Context) (*Result, error) {
	strategy := m.cfg.GetReturnStrategy()
	res := &Result{
		ID:        m.id,
		Strategy:  strategy,
		RightWall: m.cfg.GetRightWall(),
		Started:   m.nav.Now(),
	}
	monitoring.Logf("[mission] %s starting, strategy=%s right_wall=%v", m.id, strategy, res.RightWall)

	var err error
	switch strategy {
	case config.ReturnHome:
		err = m.runHome(ctx, res)
	default:
		err = m.runRetrace(ctx, res)
	}

	res.Artifacts = m.nav.Artifacts().Records()
	res.Traveled = m.nav.Traveled()
	res.Final = m.nav.XYZ()
	res.Finished = m.nav.Now()
	res.Stats = m.nav.Stats()
	if res.Trace == nil {
		res.Trace = m.nav.Trace().Points()
	}
	if err != nil {
		m.setPhase(PhaseFailed)
		return res, fmt.Errorf("mission %s: %w", m.id, err)
	}
	m.setPhase(PhaseDone)
	return res, nil
}

func (m *Mission) exploreParams() navigation.WallParams {
	return navigation.WallParams{
		Radius:          m.cfg.GetWallRadius(),
		RightWall:       m.cfg.GetRightWall(),
		Timeout:         m.cfg.GetSearchEnd(),
		StopOnArtifacts: m.cfg.GetArtifactStopCount(),
		SearchSince:     m.cfg.GetSearchBegin(),
	}
}

// retraceParams follows the opposite wall for the explored distance plus a
// metre. Net backward exploration gives a non-positive limit, which still
// bounds the run.
func (m *Mission) retraceParams(explore navigation.WallParams, explored float64) navigation.WallParams {
	limit := explored + 1
	return navigation.WallParams{
		Radius:    explore.Radius,
		RightWall: !explore.RightWall,
		Timeout:   m.cfg.GetReturnTimeout(),
		DistLimit: &limit,
	}
}

// runRetrace explores, turns around and follows the opposite wall back for
// the explored distance plus a metre.
func (m *Mission) runRetrace(ctx context.Context, res *Result) error {
	nav := m.nav
	m.setPhase(PhaseEntering)
	if err := nav.GoStraight(ctx, m.cfg.GetEntranceDistance()); err != nil {
		return fmt.Errorf("entrance: %w", err)
	}

	m.setPhase(PhaseExploring)
	explore := m.exploreParams()
	dist, err := nav.FollowWall(ctx, explore)
	res.Explored = dist
	if err != nil {
		return fmt.Errorf("explore: %w", err)
	}

	m.setPhase(PhaseReturning)
	res.Trace = nav.Trace().Points()
	for i := 0; i < 2; i++ {
		if err := nav.Turn(ctx, math.Pi/2, true, ReverseSpeed); err != nil {
			return fmt.Errorf("turn around: %w", err)
		}
	}
	if _, err := nav.FollowWall(ctx, m.retraceParams(explore, dist)); err != nil {
		return fmt.Errorf("retrace: %w", err)
	}

	m.setPhase(PhaseReporting)
	nav.ReportArtifacts()
	nav.SendSpeed(0, 0)
	return nav.Wait(ctx, m.cfg.GetSettleDuration())
}

// runHome explores with the collision detector armed and returns along the
// pruned trace.
func (m *Mission) runHome(ctx context.Context, res *Result) error {
	nav := m.nav
	m.setPhase(PhaseEntering)
	if err := nav.GoStraight(ctx, m.cfg.GetEntranceDistance()); err != nil {
		return fmt.Errorf("entrance: %w", err)
	}

	m.setPhase(PhaseExploring)
	nav.SetCollisionArmed(true)
	dist, err := nav.FollowWall(ctx, m.exploreParams())
	nav.SetCollisionArmed(false)
	res.Explored = dist
	if err != nil {
		return fmt.Errorf("explore: %w", err)
	}
	monitoring.Logf("[mission] artifacts: %d", nav.Artifacts().Len())

	m.setPhase(PhaseReturning)
	res.Trace = nav.Trace().Points()
	if err := nav.ReturnHome(ctx); err != nil {
		res.Pruned = nav.Trace().Points()
		return fmt.Errorf("return home: %w", err)
	}
	res.Pruned = nav.Trace().Points()

	m.setPhase(PhaseReporting)
	nav.SendSpeed(0, 0)
	nav.ReportArtifacts()
	return nav.Wait(ctx, m.cfg.GetSettleDuration())
}
