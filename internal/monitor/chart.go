// Package monitor renders debug views of a mission: an interactive trace
// chart served over HTTP and a static PNG plot for offline review.
package monitor

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"net/http"
	"sync"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pTommyed/osgar/internal/artifact"
	"github.com/pTommyed/osgar/internal/db"
)

const echartsAssetsPrefix = "https://go-echarts.github.io/go-echarts-assets/assets/"

// ErrNoSnapshot is returned by a Source that has nothing to show yet.
var ErrNoSnapshot = errors.New("no mission snapshot available")

// Snapshot is the part of a mission the debug views draw.
type Snapshot struct {
	ID        string
	Trace     []r3.Vec
	Pruned    []r3.Vec
	Artifacts []artifact.Record
}

// FromRecord copies the drawable parts of a logged mission.
func FromRecord(rec *db.MissionRecord) *Snapshot {
	return &Snapshot{
		ID:        rec.ID,
		Trace:     rec.Trace,
		Pruned:    rec.Pruned,
		Artifacts: rec.Artifacts,
	}
}

// Source supplies the snapshot for a chart request.
type Source interface {
	Snapshot(r *http.Request) (*Snapshot, error)
}

// Live holds the most recent snapshot of the running mission. The mission
// goroutine calls Set; HTTP handlers read it concurrently.
type Live struct {
	mu   sync.RWMutex
	snap *Snapshot
}

// Set replaces the held snapshot.
func (l *Live) Set(s *Snapshot) {
	l.mu.Lock()
	l.snap = s
	l.mu.Unlock()
}

func (l *Live) Snapshot(*http.Request) (*Snapshot, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.snap == nil {
		return nil, ErrNoSnapshot
	}
	return l.snap, nil
}

// LogSource reads missions from the mission log: the one named by the id
// query parameter, or the newest one.
type LogSource struct {
	DB *db.DB
}

func (s LogSource) Snapshot(r *http.Request) (*Snapshot, error) {
	id := r.URL.Query().Get("id")
	if id == "" {
		latest, err := s.DB.LatestMissionID()
		if err != nil {
			return nil, err
		}
		id = latest
	}
	rec, err := s.DB.LoadMission(id)
	if err != nil {
		return nil, err
	}
	return FromRecord(rec), nil
}

func scatterData(pts []r3.Vec) []opts.ScatterData {
	data := make([]opts.ScatterData, 0, len(pts))
	for _, p := range pts {
		data = append(data, opts.ScatterData{Value: []interface{}{p.X, p.Y}})
	}
	return data
}

// extent is the half-width of a square window around the origin that
// holds every point, padded so edge markers stay visible.
func extent(s *Snapshot) float64 {
	maxAbs := 0.0
	grow := func(p r3.Vec) {
		maxAbs = math.Max(maxAbs, math.Max(math.Abs(p.X), math.Abs(p.Y)))
	}
	for _, p := range s.Trace {
		grow(p)
	}
	for _, p := range s.Pruned {
		grow(p)
	}
	for _, a := range s.Artifacts {
		grow(a.Position)
	}
	if maxAbs == 0 {
		return 1.0
	}
	return maxAbs * 1.05
}

// RenderTrace writes the snapshot as a standalone HTML page with the
// recorded trace, the pruned trace and the artifacts as separate series.
func RenderTrace(buf *bytes.Buffer, s *Snapshot) error {
	pad := extent(s)

	arts := make([]opts.ScatterData, 0, len(s.Artifacts))
	for _, a := range s.Artifacts {
		arts = append(arts, opts.ScatterData{Name: a.Label, Value: []interface{}{a.Position.X, a.Position.Y}})
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Mission Trace", Theme: "dark", Width: "900px", Height: "900px", AssetsHost: echartsAssetsPrefix}),
		charts.WithTitleOpts(opts.Title{Title: "Mission Trace", Subtitle: fmt.Sprintf("mission=%s trace=%d pruned=%d artifacts=%d", s.ID, len(s.Trace), len(s.Pruned), len(s.Artifacts))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Min: -pad, Max: pad, Name: "X (m)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Min: -pad, Max: pad, Name: "Y (m)", NameLocation: "middle", NameGap: 30}),
	)
	scatter.AddSeries("trace", scatterData(s.Trace), charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 3}))
	scatter.AddSeries("pruned", scatterData(s.Pruned), charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 7}))
	scatter.AddSeries("artifacts", arts, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 14}))

	return scatter.Render(buf)
}

// TraceChartHandler serves RenderTrace for whatever src returns.
func TraceChartHandler(src Source) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		snap, err := src.Snapshot(r)
		switch {
		case errors.Is(err, ErrNoSnapshot), errors.Is(err, db.ErrMissionNotFound):
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		case err != nil:
			http.Error(w, fmt.Sprintf("failed to load mission: %v", err), http.StatusInternalServerError)
			return
		}

		var buf bytes.Buffer
		if err := RenderTrace(&buf, snap); err != nil {
			http.Error(w, fmt.Sprintf("failed to render chart: %v", err), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write(buf.Bytes())
	})
}
