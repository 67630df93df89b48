// Command trace-plot renders a logged mission to an image: the recorded
// trace, the pruned homing trace and the artifacts found.
package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/pTommyed/osgar/internal/db"
	"github.com/pTommyed/osgar/internal/fsutil"
	"github.com/pTommyed/osgar/internal/monitor"
)

func main() {
	var dbPath, id, out string
	var list bool

	flag.StringVar(&dbPath, "db", "missions.db", "path to the mission log")
	flag.StringVar(&id, "id", "", "mission ID (default: latest)")
	flag.StringVar(&out, "out", "", "output image, extension picks the format (default: <id>.png)")
	flag.BoolVar(&list, "list", false, "list logged missions and exit")
	flag.Parse()

	store, err := db.Open(dbPath)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer store.Close()

	if list {
		missions, err := store.Missions()
		if err != nil {
			log.Fatalf("list missions: %v", err)
		}
		for _, m := range missions {
			fmt.Printf("%s  %-8s %-9s explored=%.1fm traveled=%.1fm %v\n",
				m.ID, m.Strategy, m.Status, m.Explored, m.Traveled, m.Finished)
		}
		return
	}

	if id == "" {
		if id, err = store.LatestMissionID(); err != nil {
			log.Fatalf("latest mission: %v", err)
		}
	}
	rec, err := store.LoadMission(id)
	if err != nil {
		log.Fatalf("load mission: %v", err)
	}
	if out == "" {
		out = id + ".png"
	}

	if err := monitor.SaveTracePlot(fsutil.OSFileSystem{}, out, monitor.FromRecord(rec)); err != nil {
		log.Fatalf("plot: %v", err)
	}
	fmt.Printf("✓ %s: %d trace points, %d pruned, %d artifacts -> %s\n",
		id, len(rec.Trace), len(rec.Pruned), len(rec.Artifacts), out)
}
