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
	"fmt"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
)

// Octal is the datatype for params such as file-mode that accept a
// base-8 value.
type Octal int

func (o *Octal) UnmarshalText(text []byte) error {
	v, err := strconv.ParseInt(string(text), 8, 32)
	if err != nil {
		return err
	}
	*o = Octal(v)
	return nil
}

func (o Octal) MarshalText() ([]byte, error) {
	return []byte(strconv.FormatInt(int64(o), 8)), nil
}

func (o Octal) String() string {
	return strconv.FormatInt(int64(o), 8)
}

// LogSeverity is the logging verbosity level, one of TRACE, DEBUG,
// INFO, WARNING, ERROR, OFF.
type LogSeverity string

const (
	TraceLogSeverity   LogSeverity = "TRACE"
	DebugLogSeverity   LogSeverity = "DEBUG"
	InfoLogSeverity    LogSeverity = "INFO"
	WarningLogSeverity LogSeverity = "WARNING"
	ErrorLogSeverity   LogSeverity = "ERROR"
	OffLogSeverity     LogSeverity = "OFF"
)

var severityRanking = map[LogSeverity]int{
	TraceLogSeverity:   0,
	DebugLogSeverity:   1,
	InfoLogSeverity:    2,
	WarningLogSeverity: 3,
	ErrorLogSeverity:   4,
	OffLogSeverity:     5,
}

func (l *LogSeverity) UnmarshalText(text []byte) error {
	level := LogSeverity(strings.ToUpper(string(text)))
	if _, ok := severityRanking[level]; !ok {
		return fmt.Errorf("invalid log severity: %s. Must be one of [TRACE, DEBUG, INFO, WARNING, ERROR, OFF]", text)
	}
	*l = level
	return nil
}

func (l LogSeverity) Rank() int {
	if rank, ok := severityRanking[l]; ok {
		return rank
	}
	return -1
}

// TracingMode selects the span export destination; see
// tracing.Mode, mirrored here as a config-decodable string type.
type TracingMode string

const (
	TracingModeDisabled TracingMode = ""
	TracingModeStdout   TracingMode = "stdout"
)

func (t *TracingMode) UnmarshalText(text []byte) error {
	mode := TracingMode(strings.ToLower(string(text)))
	if mode != TracingModeDisabled && mode != TracingModeStdout {
		return fmt.Errorf("invalid tracing mode: %s. Must be one of [\"\", stdout]", text)
	}
	*t = mode
	return nil
}

// KvBackendKind selects which KvBackend implementation PageFs runs on.
type KvBackendKind string

const (
	KvBackendMemory KvBackendKind = "memory"
	KvBackendBadger KvBackendKind = "badger"
)

func (k *KvBackendKind) UnmarshalText(text []byte) error {
	kind := KvBackendKind(strings.ToLower(string(text)))
	if !slices.Contains([]string{string(KvBackendMemory), string(KvBackendBadger)}, string(kind)) {
		return fmt.Errorf("invalid kv backend: %s. Must be one of [memory, badger]", text)
	}
	*k = kind
	return nil
}

// ResolvedPath is an absolute, cleaned filesystem path.
type ResolvedPath string

func (p *ResolvedPath) UnmarshalText(text []byte) error {
	path, err := resolvePath(string(text))
	if err != nil {
		return err
	}
	*p = ResolvedPath(path)
	return nil
}

func resolvePath(p string) (string, error) {
	if p == "" {
		return "", nil
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", fmt.Errorf("resolving path %q: %w", p, err)
	}
	return abs, nil
}

// MountSpec is one `--mounts source:target[:flags]` CLI entry, decoded
// into a namespace.Bind call at startup.
type MountSpec struct {
	Source string `yaml:"source"`
	Target string `yaml:"target"`
	// Flags is a comma-joined subset of "before", "after", "repl",
	// "create" (see namespace.MountFlags).
	Flags string `yaml:"flags"`
}

func (m *MountSpec) UnmarshalText(text []byte) error {
	parts := strings.SplitN(string(text), ":", 3)
	if len(parts) < 2 {
		return fmt.Errorf("invalid mount spec %q: want source:target[:flags]", text)
	}
	m.Source = parts[0]
	m.Target = parts[1]
	if len(parts) == 3 {
		m.Flags = parts[2]
	}
	if m.Source == "" || m.Target == "" {
		return fmt.Errorf("invalid mount spec %q: source and target must be non-empty", text)
	}
	return nil
}
