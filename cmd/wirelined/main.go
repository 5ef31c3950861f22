// wirelined is the background daemon that answers ListProjects requests
// over a Unix domain socket and pushes Update notifications when the
// project registry changes underneath it.
//
// Usage:
//
//	wirelined [--root <dir>] [--admin-addr <host:port>]
//
// Configuration is read from <root>/wirelined.yaml, overlaid with
// WIRELINED_-prefixed environment variables, overlaid with flags —
// spf13/viper's usual precedence order.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/grafana/pyroscope-go"
	"github.com/ianremillard/wireline/internal/registry"
	"github.com/ianremillard/wireline/internal/schema"
	"github.com/ianremillard/wireline/internal/transport"
	"github.com/ianremillard/wireline/pkg/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/viper"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func main() {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		log.Fatalf("cannot determine home directory: %v", err)
	}
	defaultRoot := filepath.Join(homeDir, ".wireline")
	if env := os.Getenv("WIRELINED_ROOT"); env != "" {
		defaultRoot = env
	}

	rootDir := flag.String("root", defaultRoot, "wirelined data directory (env: WIRELINED_ROOT)")
	adminAddr := flag.String("admin-addr", "127.0.0.1:9190", "admin HTTP listen address (metrics, debug endpoints)")
	flag.Parse()

	cfg, err := loadConfig(*rootDir, *adminAddr)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	if err := os.MkdirAll(cfg.root, 0o755); err != nil {
		log.Fatalf("creating root dir: %v", err)
	}
	if err := os.MkdirAll(cfg.sessionDir, 0o755); err != nil {
		log.Fatalf("creating session dir: %v", err)
	}

	if pyroscopeServer := os.Getenv("WIRELINED_PYROSCOPE_SERVER"); pyroscopeServer != "" {
		profiler, err := pyroscope.Start(pyroscope.Config{
			ApplicationName: "wirelined",
			ServerAddress:   pyroscopeServer,
		})
		if err != nil {
			log.Printf("pyroscope: %v (continuing without profiling)", err)
		} else {
			defer profiler.Stop()
		}
	}

	existsCache, err := registry.OpenExistsCache(filepath.Join(cfg.root, "exists-cache"), 30*time.Second)
	if err != nil {
		log.Fatalf("exists cache: %v", err)
	}
	defer existsCache.Close()

	reg := registry.New(cfg.sessionDir, cfg.registrationFile, registry.WithExistsCache(existsCache))
	if err := reg.Reload(); err != nil {
		log.Fatalf("registry: initial load: %v", err)
	}

	promReg := prometheus.NewRegistry()
	metrics := server.NewMetrics(promReg)

	// No exporter configured yet; spans get real trace/span IDs but
	// stay local until an OTLP collector address is wired in.
	tracerProvider := sdktrace.NewTracerProvider(sdktrace.WithSampler(sdktrace.AlwaysSample()))
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer shutdownCancel()
		if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
			log.Printf("tracer provider shutdown: %v", err)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	conns := server.NewConnSet()

	startAdminServer(ctx, &wg, cfg.adminAddr, reg, promReg, conns)
	startWatcher(ctx, &wg, reg, cfg, conns)
	startSocketListener(ctx, &wg, cfg, reg, metrics, tracerProvider, conns)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Printf("received %v, shutting down", sig)
	cancel()
	os.Remove(cfg.socketPath)
	wg.Wait()
}

type config struct {
	root             string
	sessionDir       string
	registrationFile string
	socketPath       string
	adminAddr        string
}

func loadConfig(rootDir, adminAddr string) (config, error) {
	v := viper.New()
	v.SetConfigName("wirelined")
	v.SetConfigType("yaml")
	v.AddConfigPath(rootDir)
	v.SetEnvPrefix("WIRELINED")
	v.AutomaticEnv()

	v.SetDefault("admin_addr", adminAddr)
	v.SetDefault("session_dir", filepath.Join(rootDir, "sessions"))
	v.SetDefault("registration_file", filepath.Join(rootDir, "projects.yaml"))
	v.SetDefault("socket_path", filepath.Join(rootDir, "wirelined.sock"))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return config{}, fmt.Errorf("reading wirelined.yaml: %w", err)
		}
	}

	// An explicitly passed --admin-addr overrides the file and the env.
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "admin-addr" {
			v.Set("admin_addr", adminAddr)
		}
	})

	return config{
		root:             rootDir,
		sessionDir:       v.GetString("session_dir"),
		registrationFile: v.GetString("registration_file"),
		socketPath:       v.GetString("socket_path"),
		adminAddr:        v.GetString("admin_addr"),
	}, nil
}

func startAdminServer(ctx context.Context, wg *sync.WaitGroup, addr string, reg *registry.Registry, promReg *prometheus.Registry, conns *server.ConnSet) {
	handler := server.NewAdminRouter(reg, promReg, conns)
	httpServer := &http.Server{Addr: addr, Handler: handler}

	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Printf("admin http listening on %s", addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("admin http: %v", err)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		<-ctx.Done()
		_ = httpServer.Close()
	}()
}

func startWatcher(ctx context.Context, wg *sync.WaitGroup, reg *registry.Registry, cfg config, conns *server.ConnSet) {
	watcher, err := registry.NewWatcher(reg, cfg.sessionDir, filepath.Dir(cfg.registrationFile))
	if err != nil {
		log.Printf("registry watcher: %v (continuing without live reload)", err)
		return
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		onChange := func() {
			log.Printf("registry: reloaded")
			conns.Broadcast(ctx, schema.Update{})
		}
		if err := watcher.Run(ctx, onChange); err != nil && err != context.Canceled {
			log.Printf("registry watcher: %v", err)
		}
	}()
}

func startSocketListener(ctx context.Context, wg *sync.WaitGroup, cfg config, reg *registry.Registry, metrics *server.Metrics, tp *sdktrace.TracerProvider, conns *server.ConnSet) {
	os.Remove(cfg.socketPath)
	listener, err := net.Listen("unix", cfg.socketPath)
	if err != nil {
		log.Fatalf("listening on %s: %v", cfg.socketPath, err)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		<-ctx.Done()
		_ = listener.Close()
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Printf("wirelined listening on %s", cfg.socketPath)
		for {
			conn, err := listener.Accept()
			if err != nil {
				select {
				case <-ctx.Done():
					return
				default:
					log.Printf("accept: %v", err)
					return
				}
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				handleConn(ctx, conn, reg, metrics, tp, conns)
			}()
		}
	}()
}

func handleConn(ctx context.Context, conn net.Conn, reg *registry.Registry, metrics *server.Metrics, tp *sdktrace.TracerProvider, conns *server.ConnSet) {
	defer conn.Close()

	connID := uuid.NewString()
	log.Printf("conn %s: accepted", connID)
	defer log.Printf("conn %s: closed", connID)

	tr := transport.NewConn(conn)
	srv := server.New(tr, tr, reg, server.WithMetrics(metrics), server.WithTracer(tp))

	conns.Add(connID, srv)
	defer conns.Remove(connID)

	if err := srv.Run(ctx); err != nil {
		log.Printf("conn %s: session ended: %v", connID, err)
	}
}
