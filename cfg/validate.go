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
	"strings"
)

const (
	PageSizeTooSmallError   = "page-fs.page-size-bytes must be at least 1024"
	ListenAddrRequiredError = "server.listen-addr must not be empty"
)

func isValidPageFs(c *PageFsConfig) error {
	if c.PageSizeBytes < 1024 {
		return fmt.Errorf(PageSizeTooSmallError)
	}
	if c.InodeCacheTtl < 0 {
		return fmt.Errorf("page-fs.inode-cache-ttl-secs must be >= 0")
	}
	return nil
}

func isValidServer(c *ServerConfig) error {
	if c.ListenAddr == "" {
		return fmt.Errorf(ListenAddrRequiredError)
	}
	return nil
}

func isValidRateLimit(c *RateLimitConfig) error {
	if c.PublishHz < 0 {
		return fmt.Errorf("rate-limit.publish-hz must be >= 0")
	}
	if c.PublishBurstSec <= 0 {
		return fmt.Errorf("rate-limit.publish-burst-secs must be > 0")
	}
	return nil
}

func isValidMounts(mounts []MountSpec) error {
	for _, m := range mounts {
		if m.Flags != "" && hasFlagsConflict(m.Flags) {
			return fmt.Errorf("mount %q: flags %q combine MREPL with MBEFORE/MAFTER, which is contradictory", m.Target, m.Flags)
		}
	}
	return nil
}

func hasFlagsConflict(flags string) bool {
	hasRepl, hasOrder := false, false
	for _, f := range strings.Split(flags, ",") {
		switch strings.TrimSpace(f) {
		case "repl":
			hasRepl = true
		case "before", "after":
			hasOrder = true
		}
	}
	return hasRepl && hasOrder
}

// ValidateConfig returns a non-nil error if config is invalid.
func ValidateConfig(config *Config) error {
	if err := isValidServer(&config.Server); err != nil {
		return fmt.Errorf("error validating server config: %w", err)
	}
	if err := isValidPageFs(&config.PageFs); err != nil {
		return fmt.Errorf("error validating page-fs config: %w", err)
	}
	if err := isValidRateLimit(&config.RateLimit); err != nil {
		return fmt.Errorf("error validating rate-limit config: %w", err)
	}
	if err := isValidMounts(config.Mounts); err != nil {
		return fmt.Errorf("error validating mounts config: %w", err)
	}
	return nil
}
