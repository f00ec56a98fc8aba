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
	"testing"

	"github.com/fs9/fs9fs/cfg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckConfig_RejectsInvalidDefaultsOverride(t *testing.T) {
	saved := Config
	defer func() { Config = saved }()

	Config = cfg.DefaultConfig()
	Config.Server.ListenAddr = ""
	assert.Error(t, checkConfig())
}

func TestCheckConfig_AcceptsDefaults(t *testing.T) {
	saved := Config
	defer func() { Config = saved }()

	bindErr, configFileErr = nil, nil
	Config = cfg.DefaultConfig()
	require.NoError(t, checkConfig())
}

func TestParseMountFlags_CombinesMultipleTokens(t *testing.T) {
	flags, err := parseMountFlags("before,create")
	require.NoError(t, err)
	assert.NotZero(t, flags)
}

func TestParseMountFlags_RejectsUnknownToken(t *testing.T) {
	_, err := parseMountFlags("sideways")
	assert.Error(t, err)
}
