// Copyright 2015 Google Inc. All Rights Reserved.
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

package pagefs

import (
	"context"
	"testing"

	"github.com/fs9/fs9fs/fs9"
	"github.com/fs9/fs9fs/fs9/conformance"
	"github.com/fs9/fs9fs/kv"
	"github.com/jacobsa/ogletest"
)

func init() {
	conformance.Factory = func() (fs9.Provider, func()) {
		p, err := New(context.Background(), kv.NewInMemoryKv(), nil, nil)
		if err != nil {
			panic(err)
		}
		return p, func() {}
	}
	ogletest.RegisterTestSuite(&conformance.UniversalInvariants{})
}

func TestOgletestConformance(t *testing.T) { ogletest.RunTests(t) }
