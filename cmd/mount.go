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
	"fmt"

	"github.com/fs9/fs9fs/fuseadapter"
	"github.com/fs9/fs9fs/internal/logger"
	"github.com/fs9/fs9fs/metrics"
	"github.com/spf13/cobra"
)

var mountCmd = &cobra.Command{
	Use:   "mount <dir>",
	Short: "Mount the configured namespace locally via FUSE",
	Args:  cobra.ExactArgs(1),
	RunE: func(c *cobra.Command, args []string) error {
		if err := checkConfig(); err != nil {
			return err
		}
		warnIfFileHandleLimitLow("mount")
		ctx := c.Context()

		r, cleanup, err := buildRouter(ctx, &Config)
		if err != nil {
			return err
		}
		defer cleanup()

		var mh metrics.MetricHandle = metrics.NewNoopMetrics()
		if Config.Monitoring.PrometheusListenAddr != "" {
			om, err := metrics.NewOTelMetrics(ctx, 4, 256)
			if err != nil {
				return fmt.Errorf("setting up metrics: %w", err)
			}
			mh = om
		}

		fs := fuseadapter.New(r, logger.New("fuseadapter"), mh)
		if err := fuseadapter.Mount(ctx, args[0], fs); err != nil {
			return fmt.Errorf("mounting at %s: %w", args[0], err)
		}
		return nil
	},
}
