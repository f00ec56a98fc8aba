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
	"testing"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBindFlags_RegistersEveryKeyWithoutError(t *testing.T) {
	viper.Reset()
	flagSet := pflag.NewFlagSet("test", pflag.ContinueOnError)
	require.NoError(t, BindFlags(flagSet))

	var c Config
	require.NoError(t, viper.Unmarshal(&c, viper.DecodeHook(DecodeHook())))
	assert.Equal(t, "fs9d", c.AppName)
	assert.Equal(t, DefaultListenAddr, c.Server.ListenAddr)
}

func TestDecodeHook_DecodesTextUnmarshalerTypes(t *testing.T) {
	input := map[string]interface{}{
		"logging": map[string]interface{}{"severity": "debug"},
		"monitoring": map[string]interface{}{
			"experimental-tracing-mode": "stdout",
		},
		"kv": map[string]interface{}{"backend": "badger"},
	}

	var c Config
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: DecodeHook(),
		Result:     &c,
	})
	require.NoError(t, err)
	require.NoError(t, decoder.Decode(input))

	assert.Equal(t, DebugLogSeverity, c.Logging.Severity)
	assert.Equal(t, TracingModeStdout, c.Monitoring.ExperimentalTracingMode)
	assert.Equal(t, KvBackendBadger, c.KV.Backend)
}

func TestDecodeHook_RejectsInvalidLogSeverity(t *testing.T) {
	input := map[string]interface{}{"logging": map[string]interface{}{"severity": "LOUD"}}

	var c Config
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: DecodeHook(),
		Result:     &c,
	})
	require.NoError(t, err)
	assert.Error(t, decoder.Decode(input))
}

func TestMountSpec_ParsesSourceTargetFlags(t *testing.T) {
	var m MountSpec
	require.NoError(t, m.UnmarshalText([]byte("memfs:/mnt:before,create")))
	assert.Equal(t, "memfs", m.Source)
	assert.Equal(t, "/mnt", m.Target)
	assert.Equal(t, "before,create", m.Flags)
}

func TestMountSpec_RejectsMissingTarget(t *testing.T) {
	var m MountSpec
	assert.Error(t, m.UnmarshalText([]byte("memfs")))
}

func TestValidateConfig_RejectsTooSmallPageSize(t *testing.T) {
	c := DefaultConfig()
	c.PageFs.PageSizeBytes = 100
	err := ValidateConfig(&c)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "page-fs")
}

func TestValidateConfig_RejectsEmptyListenAddr(t *testing.T) {
	c := DefaultConfig()
	c.Server.ListenAddr = ""
	assert.Error(t, ValidateConfig(&c))
}

func TestValidateConfig_RejectsContradictoryMountFlags(t *testing.T) {
	c := DefaultConfig()
	c.Mounts = []MountSpec{{Source: "memfs", Target: "/mnt", Flags: "repl,before"}}
	assert.Error(t, ValidateConfig(&c))
}

func TestValidateConfig_AcceptsDefaults(t *testing.T) {
	c := DefaultConfig()
	assert.NoError(t, ValidateConfig(&c))
}

func TestOctal_RoundTripsThroughText(t *testing.T) {
	var o Octal
	require.NoError(t, o.UnmarshalText([]byte("644")))
	assert.EqualValues(t, 0o644, o)
	text, err := o.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "644", string(text))
}
