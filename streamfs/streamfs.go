// Package streamfs implements StreamFs, the broadcast/ring-buffer file
// surface of spec §4.5: a flat directory of append-only streams plus a
// read-only /README, where writers post chunks that are (a) retained
// in a bounded ring buffer for late joiners and (b) fanned out live to
// every currently-subscribed reader.
//
// Go channels stand in for the Rust original's tokio::sync::broadcast:
// each subscriber owns a small buffered channel; a publish does a
// non-blocking send per subscriber and counts a drop (lag) rather than
// blocking the writer — this is the "single MPSC-per-subscriber"
// option spec design-note §9 calls out, chosen because it keeps the
// drop/lag semantics spec §4.5 requires explicit about, rather than
// the single-ring-with-cursors alternative which would need to hide
// lag inside cursor arithmetic.
package streamfs

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/fs9/fs9fs/fs9"
	"github.com/fs9/fs9fs/internal/clock"
	"github.com/fs9/fs9fs/internal/logger"
	"github.com/fs9/fs9fs/ratelimit"
)

const (
	defaultRingSize    = 100
	defaultChannelSize = 100
	gcHighWaterMark    = 1024 * 1024
	gcRetainedWindow   = 64 * 1024
)

const readmeContent = `StreamFS - append-only broadcast streams

Everything under this provider is a flat directory of named streams
plus this README. Open a stream for write to append chunks; open for
read to subscribe. A new subscriber first receives the most recent
chunks retained in the stream's ring buffer, then live chunks as they
are published. Slow subscribers drop chunks rather than block writers;
see LagCount on an open read handle.
`

type subscriber struct {
	ch  chan []byte
	lag uint64 // atomic
}

type stream struct {
	name string

	mu           sync.Mutex
	ring         [][]byte
	ringSize     int
	totalChunks  uint64
	totalWritten uint64
	createdAt    int64
	mtime        int64

	subsMu     sync.Mutex
	subs       map[uint64]*subscriber
	nextSubID  uint64
	channelCap int
}

func newStream(name string, ringSize, channelCap int, now int64) *stream {
	return &stream{
		name:       name,
		ringSize:   ringSize,
		channelCap: channelCap,
		subs:       make(map[uint64]*subscriber),
		createdAt:  now,
		mtime:      now,
	}
}

func (s *stream) publish(data []byte, now int64) {
	chunk := append([]byte(nil), data...)

	s.mu.Lock()
	s.ring = append(s.ring, chunk)
	if len(s.ring) > s.ringSize {
		s.ring = s.ring[len(s.ring)-s.ringSize:]
	}
	s.totalChunks++
	s.totalWritten += uint64(len(chunk))
	s.mtime = now
	s.mu.Unlock()

	s.subsMu.Lock()
	for _, sub := range s.subs {
		select {
		case sub.ch <- chunk:
		default:
			atomic.AddUint64(&sub.lag, 1)
		}
	}
	s.subsMu.Unlock()
}

// register returns a new subscriber id, its channel, and a snapshot of
// the currently retained ring buffer (the historical replay).
func (s *stream) register() (uint64, *subscriber, [][]byte) {
	s.mu.Lock()
	historical := make([][]byte, len(s.ring))
	copy(historical, s.ring)
	s.mu.Unlock()

	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	s.nextSubID++
	id := s.nextSubID
	sub := &subscriber{ch: make(chan []byte, s.channelCap)}
	s.subs[id] = sub
	return id, sub, historical
}

func (s *stream) unregister(id uint64) {
	s.subsMu.Lock()
	delete(s.subs, id)
	s.subsMu.Unlock()
}

func (s *stream) subscriberCount() int {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	return len(s.subs)
}

func (s *stream) snapshot() (chunks uint64, written uint64, created, mtime int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totalChunks, s.totalWritten, s.createdAt, s.mtime
}

type handleKind int

const (
	kindReadme handleKind = iota
	kindWriter
	kindReader
)

type streamHandle struct {
	kind   handleKind
	stream *stream
	subID  uint64
	sub    *subscriber

	readBuffer     []byte
	readBase       int64
	historicalSent bool
}

// StreamFs is the broadcast/ring-buffer Provider (spec §4.5).
type StreamFs struct {
	clock clock.Clock
	log   *slog.Logger

	ringSize    int
	channelSize int

	mu      sync.RWMutex
	streams map[string]*stream

	handleMu   sync.Mutex
	handles    map[fs9.Handle]*streamHandle
	nextHandle uint64

	throttle ratelimit.Throttle
}

// SetThrottle installs a rate limit applied to every Write call; pass
// nil to disable throttling. Publishers that exceed it block in Write
// until tokens (one per byte) are available, or until ctx is done.
func (s *StreamFs) SetThrottle(t ratelimit.Throttle) {
	s.throttle = t
}

var _ fs9.Provider = (*StreamFs)(nil)

// New returns an empty StreamFs. ringSize and channelSize default to
// 100 when zero.
func New(ringSize, channelSize int, clk clock.Clock, log *slog.Logger) *StreamFs {
	if ringSize <= 0 {
		ringSize = defaultRingSize
	}
	if channelSize <= 0 {
		channelSize = defaultChannelSize
	}
	if clk == nil {
		clk = clock.New()
	}
	if log == nil {
		log = logger.Nop()
	}
	return &StreamFs{
		clock:       clk,
		log:         log,
		ringSize:    ringSize,
		channelSize: channelSize,
		streams:     make(map[string]*stream),
		handles:     make(map[fs9.Handle]*streamHandle),
	}
}

func topicNameFromPath(path fs9.Path) (string, bool) {
	path = fs9.Clean(path)
	if path == fs9.Root {
		return "", false
	}
	name := strings.TrimPrefix(path, "/")
	if name == "" || strings.Contains(name, "/") {
		return "", false
	}
	return name, true
}

func (s *StreamFs) getOrCreateStream(name string) *stream {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.streams[name]; ok {
		return st
	}
	st := newStream(name, s.ringSize, s.channelSize, s.clock.Now().Unix())
	s.streams[name] = st
	return st
}

func (s *StreamFs) getStream(name string) (*stream, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.streams[name]
	return st, ok
}

func (s *StreamFs) Stat(_ context.Context, path fs9.Path) (fs9.FileInfo, error) {
	path = fs9.Clean(path)
	now := s.clock.Now().Unix()
	if path == fs9.Root {
		return fs9.FileInfo{Path: fs9.Root, Type: fs9.Directory, Mode: 0o755, Atime: now, Mtime: now, Ctime: now}, nil
	}
	if path == "/README" {
		return fs9.FileInfo{Path: "/README", Type: fs9.Regular, Mode: 0o444, Size: uint64(len(readmeContent))}, nil
	}
	name, ok := topicNameFromPath(path)
	if !ok {
		return fs9.FileInfo{}, fs9.NotFound("stat", path)
	}
	st, ok := s.getStream(name)
	if !ok {
		return fs9.FileInfo{}, fs9.NotFound("stat", path)
	}
	_, written, created, mtime := st.snapshot()
	return fs9.FileInfo{Path: path, Type: fs9.Regular, Mode: 0o600, Size: written, Atime: mtime, Mtime: mtime, Ctime: created}, nil
}

func (s *StreamFs) Statfs(_ context.Context, _ fs9.Path) (fs9.FsStats, error) {
	return fs9.FsStats{BlockSize: 4096, MaxNameLen: 255}, nil
}

func (s *StreamFs) Wstat(_ context.Context, path fs9.Path, _ fs9.StatChanges) error {
	return fs9.NotImplemented("wstat", path)
}

func (s *StreamFs) Capabilities() fs9.Capabilities {
	return fs9.CapBasicRW | fs9.CapCreate | fs9.CapDelete
}

func (s *StreamFs) Open(_ context.Context, path fs9.Path, flags fs9.OpenFlags) (fs9.Handle, error) {
	path = fs9.Clean(path)

	var h *streamHandle
	switch {
	case path == "/README":
		if flags.Write {
			return 0, fs9.PermissionDenied("open", path)
		}
		h = &streamHandle{kind: kindReadme}

	case path == fs9.Root:
		return 0, fs9.IsDirectory("open", path)

	default:
		name, ok := topicNameFromPath(path)
		if !ok {
			return 0, fs9.NotFound("open", path)
		}
		if flags.Read && flags.Write {
			return 0, fs9.InvalidArgument("open", path, "cannot open a stream for both read and write")
		}
		switch {
		case flags.Write:
			st := s.getOrCreateStream(name)
			h = &streamHandle{kind: kindWriter, stream: st}
		case flags.Read:
			st, ok := s.getStream(name)
			if !ok {
				return 0, fs9.NotFound("open", path)
			}
			subID, sub, historical := st.register()
			buf := make([]byte, 0)
			for _, c := range historical {
				buf = append(buf, c...)
			}
			h = &streamHandle{kind: kindReader, stream: st, subID: subID, sub: sub, readBuffer: buf, historicalSent: true}
		default:
			return 0, fs9.InvalidArgument("open", path, "must specify read or write")
		}
	}

	s.handleMu.Lock()
	s.nextHandle++
	id := fs9.Handle(s.nextHandle)
	s.handles[id] = h
	s.handleMu.Unlock()
	return id, nil
}

func (s *StreamFs) lookup(h fs9.Handle) (*streamHandle, error) {
	s.handleMu.Lock()
	defer s.handleMu.Unlock()
	sh, ok := s.handles[h]
	if !ok {
		return nil, fs9.InvalidHandle("", h)
	}
	return sh, nil
}

func (s *StreamFs) Read(_ context.Context, h fs9.Handle, offset int64, size int) ([]byte, error) {
	sh, err := s.lookup(h)
	if err != nil {
		return nil, err
	}
	switch sh.kind {
	case kindReadme:
		if offset < 0 || int(offset) >= len(readmeContent) {
			return []byte{}, nil
		}
		end := int(offset) + size
		if end > len(readmeContent) {
			end = len(readmeContent)
		}
		return []byte(readmeContent[offset:end]), nil
	case kindWriter:
		return nil, fs9.PermissionDenied("read", "")
	case kindReader:
		return s.readFromReader(sh, offset, size), nil
	}
	return nil, fs9.Internal("read", "", fmt.Errorf("unknown handle kind"))
}

func (s *StreamFs) readFromReader(h *streamHandle, offset int64, size int) []byte {
	// Drain any live chunks broadcast since the last read, non-blocking.
	for {
		select {
		case chunk := <-h.sub.ch:
			h.readBuffer = append(h.readBuffer, chunk...)
		default:
			goto drained
		}
	}
drained:
	relOffset := offset - h.readBase
	if relOffset < 0 {
		relOffset = 0
	}
	if relOffset >= int64(len(h.readBuffer)) {
		return []byte{}
	}
	end := relOffset + int64(size)
	if end > int64(len(h.readBuffer)) {
		end = int64(len(h.readBuffer))
	}
	data := make([]byte, end-relOffset)
	copy(data, h.readBuffer[relOffset:end])

	if len(h.readBuffer) > gcHighWaterMark && relOffset > gcRetainedWindow {
		trim := relOffset - gcRetainedWindow
		h.readBuffer = h.readBuffer[trim:]
		h.readBase += trim
	}
	return data
}

func (s *StreamFs) Write(ctx context.Context, h fs9.Handle, _ int64, data []byte) (int, error) {
	sh, err := s.lookup(h)
	if err != nil {
		return 0, err
	}
	if sh.kind != kindWriter {
		return 0, fs9.PermissionDenied("write", "")
	}
	if s.throttle != nil {
		if ok := s.throttle.Wait(ctx, uint64(len(data))); !ok {
			return 0, fs9.Internal("write", "", fmt.Errorf("throttle: wait cancelled"))
		}
	}
	sh.stream.publish(data, s.clock.Now().Unix())
	return len(data), nil
}

func (s *StreamFs) Close(_ context.Context, h fs9.Handle, _ bool) error {
	s.handleMu.Lock()
	sh, ok := s.handles[h]
	if !ok {
		s.handleMu.Unlock()
		return fs9.InvalidHandle("close", h)
	}
	delete(s.handles, h)
	s.handleMu.Unlock()

	if sh.kind == kindReader {
		sh.stream.unregister(sh.subID)
	}
	return nil
}

// LagCount reports how many broadcast chunks have been dropped for a
// lagging subscriber handle (supplement: spec design-note §9 open
// question 4, "a visible lag counter").
func (s *StreamFs) LagCount(h fs9.Handle) (uint64, error) {
	sh, err := s.lookup(h)
	if err != nil {
		return 0, err
	}
	if sh.kind != kindReader {
		return 0, fs9.InvalidArgument("lag_count", "", "handle is not a stream subscriber")
	}
	return atomic.LoadUint64(&sh.sub.lag), nil
}

func (s *StreamFs) Readdir(_ context.Context, path fs9.Path) ([]fs9.FileInfo, error) {
	path = fs9.Clean(path)
	if path != fs9.Root {
		return nil, fs9.NotDirectory("readdir", path)
	}
	out := []fs9.FileInfo{{Path: "/README", Type: fs9.Regular, Mode: 0o444, Size: uint64(len(readmeContent))}}

	s.mu.RLock()
	names := make([]string, 0, len(s.streams))
	for name := range s.streams {
		names = append(names, name)
	}
	s.mu.RUnlock()
	sort.Strings(names)
	for _, name := range names {
		st, _ := s.getStream(name)
		_, written, created, mtime := st.snapshot()
		out = append(out, fs9.FileInfo{Path: "/" + name, Type: fs9.Regular, Mode: 0o600, Size: written, Atime: mtime, Mtime: mtime, Ctime: created})
	}
	return out, nil
}

func (s *StreamFs) Remove(_ context.Context, path fs9.Path) error {
	path = fs9.Clean(path)
	if path == fs9.Root || path == "/README" {
		return fs9.PermissionDenied("remove", path)
	}
	name, ok := topicNameFromPath(path)
	if !ok {
		return fs9.NotFound("remove", path)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.streams[name]; !ok {
		return fs9.NotFound("remove", path)
	}
	delete(s.streams, name)
	return nil
}
