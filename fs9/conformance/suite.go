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

// Package conformance holds the provider-independent test suite that
// every fs9.Provider must pass, grounded on the universal invariants
// of spec.md section 8. It is registered against a concrete provider
// by a _test.go file living in that provider's own package (see
// memfs/conformance_test.go, pagefs/conformance_test.go), following
// the same RegisterTestSuite/TestOgletest split the teacher used to
// run one generic fstesting suite against many GCS bucket backends.
package conformance

import (
	"context"

	"github.com/fs9/fs9fs/fs9"
	. "github.com/jacobsa/oglematchers"
	"github.com/jacobsa/ogletest"
)

// Factory builds a fresh, empty Provider for a single test case, plus
// a func releasing any resources it holds. A provider's own
// conformance_test.go must set this before calling ogletest.RunTests.
var Factory func() (fs9.Provider, func())

// UniversalInvariants is the suite of properties spec.md section 8
// requires of every provider. Register it with
// ogletest.RegisterTestSuite(&conformance.UniversalInvariants{}) from
// the provider package under test.
type UniversalInvariants struct {
	ctx      context.Context
	provider fs9.Provider
	release  func()
}

func (t *UniversalInvariants) SetUp(ti *ogletest.TestInfo) {
	t.ctx = context.Background()
	t.provider, t.release = Factory()
}

func (t *UniversalInvariants) TearDown() {
	if t.release != nil {
		t.release()
	}
}

func (t *UniversalInvariants) readWhole(path fs9.Path) ([]byte, error) {
	h, err := t.provider.Open(t.ctx, path, fs9.OpenFlags{Read: true})
	if err != nil {
		return nil, err
	}
	defer t.provider.Close(t.ctx, h, false)

	info, err := t.provider.Stat(t.ctx, path)
	if err != nil {
		return nil, err
	}
	return t.provider.Read(t.ctx, h, 0, int(info.Size))
}

// open(create) -> write(0, D) -> close -> read_file yields D.
func (t *UniversalInvariants) WriteThenReadRoundTrips() {
	const data = "hello world"

	h, err := t.provider.Open(t.ctx, "/round.txt", fs9.OpenFlags{Create: true, Write: true})
	AssertEq(nil, err)
	n, err := t.provider.Write(t.ctx, h, 0, []byte(data))
	AssertEq(nil, err)
	ExpectEq(len(data), n)
	AssertEq(nil, t.provider.Close(t.ctx, h, false))

	got, err := t.readWhole("/round.txt")
	AssertEq(nil, err)
	ExpectEq(data, string(got))
}

// Exactly one close(H) succeeds; every later op on H fails InvalidHandle.
func (t *UniversalInvariants) CloseIsSingleUseAndHandleThenInvalid() {
	h, err := t.provider.Open(t.ctx, "/once.txt", fs9.OpenFlags{Create: true, Write: true})
	AssertEq(nil, err)

	AssertEq(nil, t.provider.Close(t.ctx, h, false))
	err = t.provider.Close(t.ctx, h, false)
	ExpectTrue(fs9.Is(err, fs9.KindInvalidHandle))

	_, err = t.provider.Read(t.ctx, h, 0, 1)
	ExpectTrue(fs9.Is(err, fs9.KindInvalidHandle))

	_, err = t.provider.Write(t.ctx, h, 0, []byte("x"))
	ExpectTrue(fs9.Is(err, fs9.KindInvalidHandle))
}

// remove(D) fails DirectoryNotEmpty while children remain; succeeds
// once they are all removed.
func (t *UniversalInvariants) RemoveRequiresEmptyDirectory() {
	h, err := t.provider.Open(t.ctx, "/dir", fs9.OpenFlags{Create: true, Directory: true})
	AssertEq(nil, err)
	AssertEq(nil, t.provider.Close(t.ctx, h, false))

	h, err = t.provider.Open(t.ctx, "/dir/child", fs9.OpenFlags{Create: true, Write: true})
	AssertEq(nil, err)
	AssertEq(nil, t.provider.Close(t.ctx, h, false))

	err = t.provider.Remove(t.ctx, "/dir")
	ExpectTrue(fs9.Is(err, fs9.KindDirectoryNotEmpty))

	AssertEq(nil, t.provider.Remove(t.ctx, "/dir/child"))
	ExpectEq(nil, t.provider.Remove(t.ctx, "/dir"))
}

// read(_, o, |D|) returns D[o..] for any offset o <= |D|.
func (t *UniversalInvariants) ReadAtOffsetReturnsSuffix() {
	const data = "0123456789"

	h, err := t.provider.Open(t.ctx, "/suffix.txt", fs9.OpenFlags{Create: true, Write: true})
	AssertEq(nil, err)
	_, err = t.provider.Write(t.ctx, h, 0, []byte(data))
	AssertEq(nil, err)
	AssertEq(nil, t.provider.Close(t.ctx, h, false))

	h, err = t.provider.Open(t.ctx, "/suffix.txt", fs9.OpenFlags{Read: true})
	AssertEq(nil, err)
	defer t.provider.Close(t.ctx, h, false)

	got, err := t.provider.Read(t.ctx, h, 4, len(data))
	AssertEq(nil, err)
	ExpectEq(data[4:], string(got))
}

// Append-mode write ignores the offset argument and lands at current size.
func (t *UniversalInvariants) AppendIgnoresRequestedOffset() {
	h, err := t.provider.Open(t.ctx, "/append.txt", fs9.OpenFlags{Create: true, Write: true})
	AssertEq(nil, err)
	_, err = t.provider.Write(t.ctx, h, 0, []byte("abc"))
	AssertEq(nil, err)
	AssertEq(nil, t.provider.Close(t.ctx, h, false))

	h, err = t.provider.Open(t.ctx, "/append.txt", fs9.OpenFlags{Write: true, Append: true})
	AssertEq(nil, err)
	_, err = t.provider.Write(t.ctx, h, 0, []byte("def"))
	AssertEq(nil, err)
	AssertEq(nil, t.provider.Close(t.ctx, h, false))

	got, err := t.readWhole("/append.txt")
	AssertEq(nil, err)
	ExpectEq("abcdef", string(got))
}
