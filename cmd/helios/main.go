// Package main is the entry point for the helios alarm daemon.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"helios/internal/app"
	"helios/internal/config"
	"helios/internal/controller"
	"helios/internal/logger"
	"helios/internal/observability"

	"go.opentelemetry.io/otel"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (default: helios.yaml in the working or data directory)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	appLog := logger.New(cfg.LogLevel)

	ctx := context.Background()

	// Tracing
	shutdownTracer, err := observability.InitTracer(ctx, "helios", cfg.OTELEndpoint)
	if err != nil {
		log.Fatalf("Failed to init tracing: %v", err)
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			log.Printf("Failed to shutdown tracer: %v", err)
		}
	}()

	// Metrics
	metricsHandler, shutdownMetrics, err := observability.InitMetrics(ctx, "helios")
	if err != nil {
		log.Fatalf("Failed to init metrics: %v", err)
	}
	defer func() {
		if err := shutdownMetrics(context.Background()); err != nil {
			log.Printf("Failed to shutdown metrics: %v", err)
		}
	}()

	a, err := app.New(ctx, cfg, appLog)
	if err != nil {
		log.Fatalf("Failed to build app: %v", err)
	}

	err = observability.RegisterGauges(otel.Meter("helios"), observability.Gauges{
		Stored: func(ctx context.Context) (int, error) {
			alarms, err := a.Store.GetAll(ctx)
			return len(alarms), err
		},
		Armed: a.Armed,
		Live:  func() int { return len(a.Ringer.Live()) },
	})
	if err != nil {
		log.Printf("Failed to register gauges: %v", err)
	}

	res, err := a.OnBoot(ctx)
	if err != nil {
		log.Fatalf("Failed to restore alarms: %v", err)
	}
	log.Printf("Restored alarms: %d re-armed, %d missed", res.Rearmed, res.Missed)

	// Start Server
	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := controller.New(addr, a.Backend(), metricsHandler, controller.Options{
		Logger:    appLog,
		RateLimit: cfg.HTTP.RateLimit,
		RateBurst: cfg.HTTP.RateBurst,
	})

	go func() {
		log.Printf("Helios starting on %s", addr)
		if ip := lanIPv4(); ip != "" {
			log.Printf("Control API reachable at http://%s:%d", ip, cfg.HTTP.Port)
		}
		if err := srv.Run(ctx); err != nil {
			log.Printf("Server stopped: %v", err)
		}
	}()

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down helios...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}
	if err := a.Close(shutdownCtx); err != nil {
		log.Printf("Failed to stop cleanly: %v", err)
	}
	log.Println("Helios exited properly")
}

// lanIPv4 returns the first non-loopback IPv4 address of an interface that
// is up, or "" when there is none.
func lanIPv4() string {
	ifaces, err := net.Interfaces()
	if err != nil {
		return ""
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			ipnet, ok := addr.(*net.IPNet)
			if !ok {
				continue
			}
			if ip4 := ipnet.IP.To4(); ip4 != nil && !ip4.IsLinkLocalUnicast() {
				return ip4.String()
			}
		}
	}
	return ""
}
