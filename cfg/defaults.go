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

// DefaultConfig returns a Config with every field set to the same
// default BindFlags registers, for callers constructing a Config
// without going through cobra/viper (tests, embedders).
func DefaultConfig() Config {
	return Config{
		AppName: "fs9d",
		Logging: LoggingConfig{
			Severity: InfoLogSeverity,
			Format:   "text",
		},
		Server: ServerConfig{
			ListenAddr: DefaultListenAddr,
		},
		KV: KvConfig{
			Backend: KvBackendMemory,
		},
		PageFs: PageFsConfig{
			PageSizeBytes: DefaultPageSizeBytes,
			InodeCacheTtl: 60,
		},
		Stream: StreamConfig{
			RingSize:   100,
			ChannelCap: 100,
		},
		RateLimit: RateLimitConfig{
			PublishHz:       0,
			PublishBurstSec: 1,
		},
	}
}
