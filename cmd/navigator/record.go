package main

import (
	"net/http"

	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"tailscale.com/tsweb"

	"github.com/pTommyed/osgar/internal/db"
	"github.com/pTommyed/osgar/internal/mission"
	"github.com/pTommyed/osgar/internal/monitor"
	"github.com/pTommyed/osgar/internal/navigation"
)

func servingStatus(p mission.Phase) healthpb.HealthCheckResponse_ServingStatus {
	if p.Active() {
		return healthpb.HealthCheckResponse_SERVING
	}
	return healthpb.HealthCheckResponse_NOT_SERVING
}

// liveSnapshot reads the navigator state. It must run on the mission
// goroutine.
func liveSnapshot(id string, nav *navigation.Navigator) *monitor.Snapshot {
	s := &monitor.Snapshot{
		ID:        id,
		Artifacts: nav.Artifacts().Records(),
	}
	if nav.Trace().Pruned() {
		s.Pruned = nav.Trace().Points()
	} else {
		s.Trace = nav.Trace().Points()
	}
	return s
}

func resultSnapshot(res *mission.Result) *monitor.Snapshot {
	return &monitor.Snapshot{
		ID:        res.ID,
		Trace:     res.Trace,
		Pruned:    res.Pruned,
		Artifacts: res.Artifacts,
	}
}

func missionRecord(res *mission.Result, runErr error) *db.MissionRecord {
	rec := &db.MissionRecord{
		ID:        res.ID,
		Strategy:  res.Strategy,
		RightWall: res.RightWall,
		Status:    db.StatusCompleted,
		Explored:  res.Explored,
		Traveled:  res.Traveled,
		Final:     res.Final,
		Started:   res.Started,
		Finished:  res.Finished,
		Artifacts: res.Artifacts,
		Trace:     res.Trace,
		Pruned:    res.Pruned,
	}
	if runErr != nil {
		rec.Status = db.StatusFailed
		rec.Error = runErr.Error()
	}
	return rec
}

func attachTraceRoutes(mux *http.ServeMux, live *monitor.Live, store *db.DB) {
	debug := tsweb.Debugger(mux)
	debug.Handle("trace", "Trace of the running mission", monitor.TraceChartHandler(live))
	debug.Handle("trace-log", "Trace of a logged mission (?id=, default latest)", monitor.TraceChartHandler(monitor.LogSource{DB: store}))
}
