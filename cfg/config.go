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

package cfg

import (
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config is the fully decoded configuration for one fs9d process,
// populated from CLI flags, a YAML config file, or both (flags win).
type Config struct {
	AppName string `yaml:"app-name"`

	Logging LoggingConfig `yaml:"logging"`

	Monitoring MonitoringConfig `yaml:"monitoring"`

	Server ServerConfig `yaml:"server"`

	Mounts []MountSpec `yaml:"mounts"`

	KV KvConfig `yaml:"kv"`

	PageFs PageFsConfig `yaml:"page-fs"`

	Stream StreamConfig `yaml:"stream"`

	RateLimit RateLimitConfig `yaml:"rate-limit"`

	Plugins PluginsConfig `yaml:"plugins"`
}

type LoggingConfig struct {
	Severity LogSeverity  `yaml:"severity"`
	Format   string       `yaml:"format"`
	FilePath ResolvedPath `yaml:"file-path"`
}

type MonitoringConfig struct {
	ExperimentalTracingMode TracingMode `yaml:"experimental-tracing-mode"`
	PrometheusListenAddr    string      `yaml:"prometheus-listen-addr"`
}

type ServerConfig struct {
	ListenAddr string `yaml:"listen-addr"`
}

type KvConfig struct {
	Backend KvBackendKind `yaml:"backend"`
	// DataDir is the on-disk directory for a persistent backend (e.g.
	// badger); unused for the memory backend.
	DataDir ResolvedPath `yaml:"data-dir"`
}

type PageFsConfig struct {
	PageSizeBytes int `yaml:"page-size-bytes"`
	InodeCacheTtl int `yaml:"inode-cache-ttl-secs"`
}

type StreamConfig struct {
	RingSize   int `yaml:"ring-size"`
	ChannelCap int `yaml:"channel-cap"`
}

type RateLimitConfig struct {
	PublishHz       float64 `yaml:"publish-hz"`
	PublishBurstSec float64 `yaml:"publish-burst-secs"`
}

type PluginsConfig struct {
	Dir   ResolvedPath `yaml:"dir"`
	Names []string     `yaml:"names"`
}

// BindFlags registers every fs9d CLI flag on flagSet and binds it into
// viper under the dotted key matching Config's yaml tags, the same
// pflag+viper wiring the teacher's generated cfg.BindFlags uses.
func BindFlags(flagSet *pflag.FlagSet) error {
	bind := func(key string) error {
		return viper.BindPFlag(key, flagSet.Lookup(key))
	}

	flagSet.StringP("app-name", "", "fs9d", "Application name reported in logs and traces.")
	if err := bind("app-name"); err != nil {
		return err
	}

	flagSet.StringP("logging.severity", "", string(InfoLogSeverity), "Log verbosity: TRACE, DEBUG, INFO, WARNING, ERROR, OFF.")
	if err := bind("logging.severity"); err != nil {
		return err
	}
	flagSet.StringP("logging.format", "", "text", "Log encoding: text or json.")
	if err := bind("logging.format"); err != nil {
		return err
	}
	flagSet.StringP("logging.file-path", "", "", "Log file path; empty means stderr.")
	if err := bind("logging.file-path"); err != nil {
		return err
	}

	flagSet.StringP("monitoring.experimental-tracing-mode", "", "", "Span export destination: \"\" (disabled) or \"stdout\".")
	if err := bind("monitoring.experimental-tracing-mode"); err != nil {
		return err
	}
	flagSet.StringP("monitoring.prometheus-listen-addr", "", "", "Address to serve /metrics on; empty disables it.")
	if err := bind("monitoring.prometheus-listen-addr"); err != nil {
		return err
	}

	flagSet.StringP("server.listen-addr", "", DefaultListenAddr, "Provider server address; serve only logs it and opens no listener on it.")
	if err := bind("server.listen-addr"); err != nil {
		return err
	}

	flagSet.StringSliceP("mounts", "", nil, "Repeatable source:target[:flags] mount bindings.")
	if err := bind("mounts"); err != nil {
		return err
	}

	flagSet.StringP("kv.backend", "", string(KvBackendMemory), "PageFs KV backend: memory or badger.")
	if err := bind("kv.backend"); err != nil {
		return err
	}
	flagSet.StringP("kv.data-dir", "", "", "On-disk directory for a persistent KV backend.")
	if err := bind("kv.data-dir"); err != nil {
		return err
	}

	flagSet.IntP("page-fs.page-size-bytes", "", DefaultPageSizeBytes, "PageFs fixed page size in bytes.")
	if err := bind("page-fs.page-size-bytes"); err != nil {
		return err
	}
	flagSet.IntP("page-fs.inode-cache-ttl-secs", "", 60, "PageFs inode metadata cache TTL in seconds.")
	if err := bind("page-fs.inode-cache-ttl-secs"); err != nil {
		return err
	}

	flagSet.IntP("stream.ring-size", "", 100, "StreamFs/PubSubFs per-topic ring buffer size in chunks.")
	if err := bind("stream.ring-size"); err != nil {
		return err
	}
	flagSet.IntP("stream.channel-cap", "", 100, "StreamFs/PubSubFs per-subscriber channel capacity.")
	if err := bind("stream.channel-cap"); err != nil {
		return err
	}

	flagSet.Float64P("rate-limit.publish-hz", "", 0, "Publish rate limit in messages/bytes per second; 0 disables throttling.")
	if err := bind("rate-limit.publish-hz"); err != nil {
		return err
	}
	flagSet.Float64P("rate-limit.publish-burst-secs", "", 1, "Burst window, in seconds of sustained rate, used to size the token bucket.")
	if err := bind("rate-limit.publish-burst-secs"); err != nil {
		return err
	}

	flagSet.StringP("plugins.dir", "", "", "Directory to search for dynamic plugin libraries.")
	if err := bind("plugins.dir"); err != nil {
		return err
	}
	flagSet.StringSliceP("plugins.names", "", nil, "Plugin library base names (without extension) to load from plugins.dir.")
	if err := bind("plugins.names"); err != nil {
		return err
	}

	return nil
}
