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
	"testing"

	"github.com/fs9/fs9fs/cfg"
	"github.com/fs9/fs9fs/fs9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildRouter_BindsEachMountSpecAndStatsRoot(t *testing.T) {
	config := cfg.DefaultConfig()
	config.Mounts = []cfg.MountSpec{
		{Source: "memfs", Target: "/", Flags: "create"},
		{Source: "streamfs", Target: "/stream", Flags: "create"},
	}

	r, cleanup, err := buildRouter(context.Background(), &config)
	require.NoError(t, err)
	defer cleanup()

	info, err := r.Stat(context.Background(), fs9.Root)
	require.NoError(t, err)
	assert.Equal(t, fs9.Directory, info.Type)
}

func TestBuildRouter_RejectsUnknownProviderSource(t *testing.T) {
	config := cfg.DefaultConfig()
	config.Mounts = []cfg.MountSpec{{Source: "nope", Target: "/", Flags: "create"}}

	_, _, err := buildRouter(context.Background(), &config)
	assert.Error(t, err)
}

func TestBuildKvBackend_DefaultsToInMemory(t *testing.T) {
	backend, closer, err := buildKvBackend(cfg.KvConfig{Backend: cfg.KvBackendMemory})
	require.NoError(t, err)
	assert.Nil(t, closer)

	require.NoError(t, backend.Set(context.Background(), []byte("k"), []byte("v")))
	v, ok, err := backend.Get(context.Background(), []byte("k"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "v", string(v))
}

func TestBuildThrottle_NilWhenRateIsZero(t *testing.T) {
	assert.Nil(t, buildThrottle(cfg.RateLimitConfig{PublishHz: 0}))
	assert.NotNil(t, buildThrottle(cfg.RateLimitConfig{PublishHz: 10, PublishBurstSec: 1}))
}
