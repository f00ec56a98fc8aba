// Copyright 2024 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cmd

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/fs9/fs9fs/cfg"
	"github.com/fs9/fs9fs/fs9"
	"github.com/fs9/fs9fs/internal/clock"
	"github.com/fs9/fs9fs/internal/logger"
	"github.com/fs9/fs9fs/kv"
	"github.com/fs9/fs9fs/memfs"
	"github.com/fs9/fs9fs/metrics"
	"github.com/fs9/fs9fs/namespace"
	"github.com/fs9/fs9fs/pagefs"
	"github.com/fs9/fs9fs/plugin"
	"github.com/fs9/fs9fs/pubsubfs"
	"github.com/fs9/fs9fs/ratelimit"
	"github.com/fs9/fs9fs/router"
	"github.com/fs9/fs9fs/streamfs"
	"github.com/fs9/fs9fs/tracing"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Build the configured namespace and keep its providers alive (wiring only; no RPC surface)",
	RunE: func(c *cobra.Command, args []string) error {
		if err := checkConfig(); err != nil {
			return err
		}
		warnIfFileHandleLimitLow("serve")
		ctx := c.Context()

		r, cleanup, err := buildRouter(ctx, &Config)
		if err != nil {
			return err
		}
		defer cleanup()

		shutdownTracing, err := tracing.Setup(ctx, tracing.Mode(Config.Monitoring.ExperimentalTracingMode), Config.AppName)
		if err != nil {
			return fmt.Errorf("setting up tracing: %w", err)
		}
		if shutdownTracing != nil {
			defer shutdownTracing(ctx)
		}

		if Config.Monitoring.PrometheusListenAddr != "" {
			if err := serveMetrics(ctx, Config.Monitoring.PrometheusListenAddr); err != nil {
				return err
			}
		}

		log := logger.New("serve")
		log.Info("namespace built", "mounts", len(Config.Mounts), "listen_addr", Config.Server.ListenAddr)

		_ = r // the Provider HTTP/JSON server itself is an external consumer per spec non-goals; this command only builds and holds the namespace.
		<-ctx.Done()
		return nil
	},
}

// buildRouter interprets every cfg.MountSpec into a constructed
// Provider bound into a namespace.Namespace, and returns the Router
// fronting it plus a cleanup func for anything that needs closing
// (badger handles, plugin libraries).
func buildRouter(ctx context.Context, config *cfg.Config) (*router.Router, func(), error) {
	ns := namespace.New()

	var closers []func() error
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i]()
		}
	}

	registry := plugin.NewRegistry()
	if config.Plugins.Dir != "" {
		for _, name := range config.Plugins.Names {
			if err := registry.Load(filepath.Join(string(config.Plugins.Dir), name+".so")); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("loading plugin %q: %w", name, err)
			}
		}
	}

	throttle := buildThrottle(config.RateLimit)

	for _, spec := range config.Mounts {
		provider, closer, err := buildProvider(ctx, config, spec.Source, registry, throttle)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("mount %q: %w", spec.Source, err)
		}
		if closer != nil {
			closers = append(closers, closer)
		}

		flags, err := parseMountFlags(spec.Flags)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("mount %q: %w", spec.Source, err)
		}
		ns.Bind(provider, fs9.Root, fs9.Path(spec.Target), flags)
	}

	return router.New(ns, nil), cleanup, nil
}

func parseMountFlags(raw string) (namespace.MountFlags, error) {
	var flags namespace.MountFlags
	if raw == "" {
		return flags, nil
	}
	for _, tok := range strings.Split(raw, ",") {
		switch strings.TrimSpace(tok) {
		case "before":
			flags |= namespace.MBefore
		case "after":
			flags |= namespace.MAfter
		case "repl":
			flags |= namespace.MRepl
		case "create":
			flags |= namespace.MCreate
		case "":
		default:
			return 0, fmt.Errorf("unknown mount flag %q", tok)
		}
	}
	return flags, nil
}

func buildThrottle(rl cfg.RateLimitConfig) ratelimit.Throttle {
	if rl.PublishHz <= 0 {
		return nil
	}
	capacity := uint64(rl.PublishHz * rl.PublishBurstSec)
	if capacity == 0 {
		capacity = 1
	}
	return &ratelimit.SystemTimeTokenBucket{
		Bucket:    ratelimit.NewTokenBucket(rl.PublishHz, capacity),
		StartTime: time.Now(),
	}
}

// buildProvider constructs the Provider named by source ("memfs",
// "pagefs", "streamfs", "pubsubfs", or "plugin:<name>"), returning an
// optional close func for backends that hold resources (badger, a
// plugin instance).
func buildProvider(ctx context.Context, config *cfg.Config, source string, registry *plugin.Registry, throttle ratelimit.Throttle) (fs9.Provider, func() error, error) {
	clk := clock.New()

	switch {
	case source == "memfs":
		return memfs.New(clk, logger.New("memfs")), nil, nil

	case source == "pagefs":
		backend, closer, err := buildKvBackend(config.KV)
		if err != nil {
			return nil, nil, err
		}
		p, err := pagefs.New(ctx, backend, clk, logger.New("pagefs"))
		if err != nil {
			if closer != nil {
				_ = closer()
			}
			return nil, nil, err
		}
		return p, closer, nil

	case source == "streamfs":
		return streamfs.New(config.Stream.RingSize, config.Stream.ChannelCap, clk, logger.New("streamfs")), nil, nil

	case source == "pubsubfs":
		p := pubsubfs.New(config.Stream.RingSize, config.Stream.ChannelCap, clk, logger.New("pubsubfs"))
		p.SetThrottle(throttle)
		return p, nil, nil

	case strings.HasPrefix(source, "plugin:"):
		name := strings.TrimPrefix(source, "plugin:")
		p, err := registry.CreateProvider(name, nil)
		if err != nil {
			return nil, nil, err
		}
		return p, func() error { p.Destroy(); return nil }, nil

	default:
		return nil, nil, fmt.Errorf("unknown provider source %q", source)
	}
}

func buildKvBackend(config cfg.KvConfig) (kv.Backend, func() error, error) {
	switch config.Backend {
	case cfg.KvBackendBadger:
		b, err := kv.OpenBadgerKv(string(config.DataDir))
		if err != nil {
			return nil, nil, fmt.Errorf("opening badger kv at %q: %w", config.DataDir, err)
		}
		return b, b.Close, nil
	default:
		return kv.NewInMemoryKv(), nil, nil
	}
}

// serveMetrics starts an HTTP server on addr in the background: /metrics
// serves the default Prometheus registry and /metrics/legacy the
// opencensus bridge counters. No otel MeterProvider is exported there.
func serveMetrics(ctx context.Context, addr string) error {
	ocHandler, err := metrics.NewOpenCensusPrometheusExporter("fs9d")
	if err != nil {
		return fmt.Errorf("setting up opencensus exporter: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/metrics/legacy", ocHandler)

	server := &http.Server{Addr: addr, Handler: mux}
	go func() {
		<-ctx.Done()
		_ = server.Close()
	}()
	go func() {
		_ = server.ListenAndServe()
	}()
	return nil
}
