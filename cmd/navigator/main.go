package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/pTommyed/osgar/internal/config"
	"github.com/pTommyed/osgar/internal/db"
	"github.com/pTommyed/osgar/internal/mission"
	"github.com/pTommyed/osgar/internal/monitor"
	"github.com/pTommyed/osgar/internal/navigation"
	"github.com/pTommyed/osgar/internal/serialmux"
	"github.com/pTommyed/osgar/internal/sim"
	"github.com/pTommyed/osgar/internal/telemetry"
	"github.com/pTommyed/osgar/internal/version"
)

var (
	configPath = flag.String("config", "", "Navigation config JSON (defaults to "+config.DefaultConfigPath+")")
	port       = flag.String("port", "/dev/ttyUSB0", "Serial port of the sensor/motor board")
	serialMode = flag.String("serial-mode", serialmux.DefaultMode, "Serial baud rate and framing")
	dbPath     = flag.String("db", "missions.db", "Mission log database")
	listen     = flag.String("listen", ":8080", "Debug HTTP listen address (empty to disable)")
	grpcListen = flag.String("grpc", ":50051", "gRPC health listen address (empty to disable)")
	simulate   = flag.Bool("simulate", false, "Drive a simulated robot in a straight tunnel instead of the serial link")
	simLength  = flag.Float64("sim-length", 40, "Simulated tunnel length in meters")
	simLimit   = flag.Duration("sim-limit", 30*time.Minute, "Simulated mission time before the link closes")
)

// HealthService is the gRPC health service name reporting the mission.
const HealthService = "navigator"

// loadConfig reads -config, or the defaults file when present. Without
// either the built-in defaults apply.
func loadConfig() (*config.NavConfig, error) {
	if *configPath != "" {
		return config.LoadNavConfig(*configPath)
	}
	if _, err := os.Stat(config.DefaultConfigPath); err == nil {
		return config.LoadNavConfig(config.DefaultConfigPath)
	}
	log.Printf("[navigator] %s not found, using built-in defaults", config.DefaultConfigPath)
	return config.EmptyNavConfig(), nil
}

func main() {
	flag.Parse()
	log.Printf("[navigator] %s", version.String())

	if err := run(); err != nil {
		log.Printf("[navigator] %v", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	store, err := db.Open(*dbPath)
	if err != nil {
		return fmt.Errorf("failed to open mission log: %w", err)
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	mux := http.NewServeMux()

	var bus telemetry.Bus
	if *simulate {
		robot := sim.NewRobot(sim.Tunnel(*simLength, 3.0), *simLimit)
		bus = robot.Bus()
		log.Printf("[navigator] simulating %.0f m tunnel", *simLength)
	} else {
		opts, err := serialmux.ParseMode(*serialMode)
		if err != nil {
			return err
		}
		link, err := serialmux.OpenPort(*port, opts)
		if err != nil {
			return fmt.Errorf("failed to open serial port: %w", err)
		}
		log.Printf("[navigator] telemetry link %s at %s", *port, opts)
		defer link.Close()
		link.SetSubscriberBuffer(cfg.GetSubscriberBuffer())
		link.AttachAdminRoutes(mux)

		// run the monitor routine to manage IO on the serial port
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := link.Monitor(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("failed to monitor serial port: %v", err)
			}
			log.Print("[navigator] monitor routine terminated")
		}()

		sb := telemetry.NewSerialBus(link, nil)
		defer sb.Close()
		bus = sb
	}

	nav := navigation.New(bus, cfg)
	m := mission.New(nav, cfg)

	hs := health.NewServer()
	hs.SetServingStatus(HealthService, servingStatus(mission.PhaseIdle))

	live := &monitor.Live{}
	m.OnPhase(func(p mission.Phase) {
		hs.SetServingStatus(HealthService, servingStatus(p))
		live.Set(liveSnapshot(m.ID(), nav))
	})

	store.AttachAdminRoutes(mux)
	attachTraceRoutes(mux, live, store)

	if *listen != "" {
		server := &http.Server{Addr: *listen, Handler: mux}
		wg.Add(1)
		go func() {
			defer wg.Done()
			go func() {
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Printf("HTTP server failed: %v", err)
				}
			}()
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				log.Printf("HTTP server shutdown error: %v", err)
				server.Close()
			}
		}()
	}

	if *grpcListen != "" {
		lis, err := net.Listen("tcp", *grpcListen)
		if err != nil {
			return fmt.Errorf("failed to listen on %s: %w", *grpcListen, err)
		}
		gs := grpc.NewServer()
		healthpb.RegisterHealthServer(gs, hs)
		wg.Add(1)
		go func() {
			defer wg.Done()
			go func() {
				<-ctx.Done()
				hs.Shutdown()
				gs.GracefulStop()
			}()
			if err := gs.Serve(lis); err != nil {
				log.Printf("gRPC server failed: %v", err)
			}
		}()
	}

	res, runErr := m.Run(ctx)
	live.Set(resultSnapshot(res))
	if err := store.SaveMission(missionRecord(res, runErr)); err != nil {
		log.Printf("[navigator] failed to save mission %s: %v", res.ID, err)
	} else {
		log.Printf("[navigator] mission %s saved to %s", res.ID, *dbPath)
	}

	stop()
	wg.Wait()

	if runErr != nil {
		return runErr
	}
	log.Printf("[navigator] mission complete: %d artifacts, %.1f m explored", len(res.Artifacts), res.Explored)
	return nil
}
