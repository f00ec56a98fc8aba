// Package pubsubfs implements PubSubFs (spec §4.5): a provider that
// exposes one file per topic plus a read-only "<topic>.info" metadata
// file and a top-level README. Writing to a topic file publishes a
// message; opening one for read subscribes, first replaying the
// topic's retained ring buffer, then streaming newly published
// messages. Messages are newline-normalized the way the Rust original
// treats a single trailing "\n" as part of the wire format, not the
// payload: it is stripped on publish and re-added on every read.
package pubsubfs

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fs9/fs9fs/fs9"
	"github.com/fs9/fs9fs/internal/clock"
	"github.com/fs9/fs9fs/internal/logger"
	"github.com/fs9/fs9fs/ratelimit"
)

const (
	defaultRingSize    = 100
	defaultChannelSize = 100
	maxMessageSize     = 1024 * 1024
	gcHighWaterMark    = 1024 * 1024
	gcRetainedWindow   = 64 * 1024

	infoSuffix = ".info"
)

const readmeContent = `PubSubFS - topic files with publish/subscribe semantics

/pubsub/<topic>       write to publish a message, read to subscribe
/pubsub/<topic>.info  read-only metadata: subscriber count, message
                      count, ring size, created/modified timestamps
`

// message is one published unit; a single trailing newline is stripped
// on arrival and restored whenever the message is formatted for a
// reader, matching the original's on-the-wire convention.
type message struct {
	timestamp time.Time
	data      []byte
}

func newMessage(raw []byte, now time.Time) message {
	data := raw
	if len(data) > 0 && data[len(data)-1] == '\n' {
		data = data[:len(data)-1]
	}
	return message{timestamp: now, data: append([]byte(nil), data...)}
}

func (m message) format() []byte {
	out := make([]byte, 0, len(m.data)+1)
	out = append(out, m.data...)
	out = append(out, '\n')
	return out
}

type pubsubSubscriber struct {
	ch  chan message
	lag uint64 // atomic
}

type topic struct {
	name      string
	createdAt time.Time

	mu           sync.Mutex
	ring         []message
	ringSize     int
	totalMessage uint64
	mtime        time.Time

	subsMu     sync.Mutex
	subs       map[uint64]*pubsubSubscriber
	nextSubID  uint64
	channelCap int
}

func newTopic(name string, ringSize, channelCap int, now time.Time) *topic {
	return &topic{
		name:       name,
		createdAt:  now,
		mtime:      now,
		ringSize:   ringSize,
		channelCap: channelCap,
		subs:       make(map[uint64]*pubsubSubscriber),
	}
}

func (t *topic) publish(data []byte, now time.Time) error {
	if len(data) > maxMessageSize {
		return fs9.InvalidArgument("write", "", "message exceeds maximum size")
	}
	msg := newMessage(data, now)

	t.mu.Lock()
	t.ring = append(t.ring, msg)
	if len(t.ring) > t.ringSize {
		t.ring = t.ring[len(t.ring)-t.ringSize:]
	}
	t.totalMessage++
	t.mtime = now
	t.mu.Unlock()

	t.subsMu.Lock()
	for _, sub := range t.subs {
		select {
		case sub.ch <- msg:
		default:
			atomic.AddUint64(&sub.lag, 1)
		}
	}
	t.subsMu.Unlock()
	return nil
}

func (t *topic) subscribe() (uint64, *pubsubSubscriber, []message) {
	t.mu.Lock()
	historical := make([]message, len(t.ring))
	copy(historical, t.ring)
	t.mu.Unlock()

	t.subsMu.Lock()
	defer t.subsMu.Unlock()
	t.nextSubID++
	id := t.nextSubID
	sub := &pubsubSubscriber{ch: make(chan message, t.channelCap)}
	t.subs[id] = sub
	return id, sub, historical
}

func (t *topic) unsubscribe(id uint64) {
	t.subsMu.Lock()
	delete(t.subs, id)
	t.subsMu.Unlock()
}

func (t *topic) subscriberCount() int {
	t.subsMu.Lock()
	defer t.subsMu.Unlock()
	return len(t.subs)
}

func (t *topic) info() []byte {
	t.mu.Lock()
	total := t.totalMessage
	mtime := t.mtime
	t.mu.Unlock()
	return []byte(fmt.Sprintf(
		"name: %s\nsubscribers: %d\nmessages: %d\nring_size: %d\ncreated: %s\nmodified: %s\n",
		t.name, t.subscriberCount(), total, t.ringSize,
		t.createdAt.UTC().Format("2006-01-02 15:04:05"),
		mtime.UTC().Format("2006-01-02 15:04:05"),
	))
}

type handleKind int

const (
	kindReadme handleKind = iota
	kindInfo
	kindPublish
	kindSubscribe
)

type pubsubHandle struct {
	kind  handleKind
	topic *topic
	subID uint64
	sub   *pubsubSubscriber

	infoSnapshot []byte

	readBuffer     []byte
	readBase       int64
	historicalSent bool
}

// PubSubFs is the topic publish/subscribe Provider (spec §4.5).
type PubSubFs struct {
	clock clock.Clock
	log   *slog.Logger

	ringSize    int
	channelSize int

	mu     sync.RWMutex
	topics map[string]*topic

	handleMu   sync.Mutex
	handles    map[fs9.Handle]*pubsubHandle
	nextHandle uint64

	throttle ratelimit.Throttle
}

// SetThrottle installs a rate limit applied to every publish; pass nil
// to disable throttling.
func (p *PubSubFs) SetThrottle(t ratelimit.Throttle) {
	p.throttle = t
}

var _ fs9.Provider = (*PubSubFs)(nil)

// New returns an empty PubSubFs. ringSize and channelSize default to
// 100 when zero.
func New(ringSize, channelSize int, clk clock.Clock, log *slog.Logger) *PubSubFs {
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
	return &PubSubFs{
		clock:       clk,
		log:         log,
		ringSize:    ringSize,
		channelSize: channelSize,
		topics:      make(map[string]*topic),
		handles:     make(map[fs9.Handle]*pubsubHandle),
	}
}

func normalizePath(path fs9.Path) fs9.Path {
	path = fs9.Clean(path)
	return path
}

// topicNameFromPath splits "/<name>" or "/<name>.info" into the bare
// topic name and whether the ".info" variant was requested.
func topicNameFromPath(path fs9.Path) (name string, isInfo bool, ok bool) {
	if path == fs9.Root {
		return "", false, false
	}
	name = strings.TrimPrefix(path, "/")
	if name == "" || strings.Contains(name, "/") {
		return "", false, false
	}
	if strings.HasSuffix(name, infoSuffix) {
		return strings.TrimSuffix(name, infoSuffix), true, true
	}
	return name, false, true
}

func (p *PubSubFs) getOrCreateTopic(name string) *topic {
	p.mu.Lock()
	defer p.mu.Unlock()
	if t, ok := p.topics[name]; ok {
		return t
	}
	t := newTopic(name, p.ringSize, p.channelSize, p.clock.Now())
	p.topics[name] = t
	return t
}

func (p *PubSubFs) getTopic(name string) (*topic, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	t, ok := p.topics[name]
	return t, ok
}

func (p *PubSubFs) Stat(_ context.Context, path fs9.Path) (fs9.FileInfo, error) {
	path = normalizePath(path)
	now := p.clock.Now().Unix()
	if path == fs9.Root {
		return fs9.FileInfo{Path: fs9.Root, Type: fs9.Directory, Mode: 0o755, Atime: now, Mtime: now, Ctime: now}, nil
	}
	if path == "/README" {
		return fs9.FileInfo{Path: "/README", Type: fs9.Regular, Mode: 0o444, Size: uint64(len(readmeContent))}, nil
	}
	name, isInfo, ok := topicNameFromPath(path)
	if !ok {
		return fs9.FileInfo{}, fs9.NotFound("stat", path)
	}
	t, ok := p.getTopic(name)
	if !ok {
		return fs9.FileInfo{}, fs9.NotFound("stat", path)
	}
	if isInfo {
		data := t.info()
		return fs9.FileInfo{Path: path, Type: fs9.Regular, Mode: 0o444, Size: uint64(len(data)), Mtime: t.mtime.Unix(), Ctime: t.createdAt.Unix()}, nil
	}
	return fs9.FileInfo{Path: path, Type: fs9.Regular, Mode: 0o600, Size: 0, Mtime: t.mtime.Unix(), Ctime: t.createdAt.Unix()}, nil
}

func (p *PubSubFs) Statfs(_ context.Context, _ fs9.Path) (fs9.FsStats, error) {
	return fs9.FsStats{BlockSize: 4096, MaxNameLen: 255}, nil
}

func (p *PubSubFs) Wstat(_ context.Context, path fs9.Path, _ fs9.StatChanges) error {
	return fs9.NotImplemented("wstat", path)
}

func (p *PubSubFs) Capabilities() fs9.Capabilities {
	return fs9.CapBasicRW | fs9.CapCreate | fs9.CapDelete
}

func (p *PubSubFs) Open(_ context.Context, path fs9.Path, flags fs9.OpenFlags) (fs9.Handle, error) {
	path = normalizePath(path)

	var h *pubsubHandle
	switch {
	case path == "/README":
		if flags.Write {
			return 0, fs9.PermissionDenied("open", path)
		}
		h = &pubsubHandle{kind: kindReadme}

	case path == fs9.Root:
		return 0, fs9.IsDirectory("open", path)

	default:
		name, isInfo, ok := topicNameFromPath(path)
		if !ok {
			return 0, fs9.NotFound("open", path)
		}
		if isInfo {
			if flags.Write {
				return 0, fs9.PermissionDenied("open", path)
			}
			t, ok := p.getTopic(name)
			if !ok {
				return 0, fs9.NotFound("open", path)
			}
			h = &pubsubHandle{kind: kindInfo, infoSnapshot: t.info()}
			break
		}
		if flags.Read && flags.Write {
			return 0, fs9.InvalidArgument("open", path, "cannot open a topic for both read and write")
		}
		switch {
		case flags.Write:
			t := p.getOrCreateTopic(name)
			h = &pubsubHandle{kind: kindPublish, topic: t}
		case flags.Read:
			t, ok := p.getTopic(name)
			if !ok {
				return 0, fs9.NotFound("open", path)
			}
			subID, sub, historical := t.subscribe()
			h = &pubsubHandle{kind: kindSubscribe, topic: t, subID: subID, sub: sub}
			for _, m := range historical {
				h.readBuffer = append(h.readBuffer, m.format()...)
			}
			h.historicalSent = true
		default:
			return 0, fs9.InvalidArgument("open", path, "must specify read or write")
		}
	}

	p.handleMu.Lock()
	p.nextHandle++
	id := fs9.Handle(p.nextHandle)
	p.handles[id] = h
	p.handleMu.Unlock()
	return id, nil
}

func (p *PubSubFs) lookup(h fs9.Handle) (*pubsubHandle, error) {
	p.handleMu.Lock()
	defer p.handleMu.Unlock()
	ph, ok := p.handles[h]
	if !ok {
		return nil, fs9.InvalidHandle("", h)
	}
	return ph, nil
}

func sliceAt(content []byte, offset int64, size int) []byte {
	if offset < 0 || int(offset) >= len(content) {
		return []byte{}
	}
	end := int(offset) + size
	if end > len(content) {
		end = len(content)
	}
	out := make([]byte, end-int(offset))
	copy(out, content[offset:end])
	return out
}

func (p *PubSubFs) Read(_ context.Context, h fs9.Handle, offset int64, size int) ([]byte, error) {
	ph, err := p.lookup(h)
	if err != nil {
		return nil, err
	}
	switch ph.kind {
	case kindReadme:
		return sliceAt([]byte(readmeContent), offset, size), nil
	case kindInfo:
		return sliceAt(ph.infoSnapshot, offset, size), nil
	case kindPublish:
		return nil, fs9.PermissionDenied("read", "")
	case kindSubscribe:
		return p.readFromSubscriber(ph, offset, size), nil
	}
	return nil, fs9.Internal("read", "", fmt.Errorf("unknown handle kind"))
}

func (p *PubSubFs) readFromSubscriber(h *pubsubHandle, offset int64, size int) []byte {
	for {
		select {
		case msg := <-h.sub.ch:
			h.readBuffer = append(h.readBuffer, msg.format()...)
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

func (p *PubSubFs) Write(ctx context.Context, h fs9.Handle, _ int64, data []byte) (int, error) {
	ph, err := p.lookup(h)
	if err != nil {
		return 0, err
	}
	if ph.kind != kindPublish {
		return 0, fs9.PermissionDenied("write", "")
	}
	if p.throttle != nil {
		if ok := p.throttle.Wait(ctx, uint64(len(data))); !ok {
			return 0, fs9.Internal("write", "", fmt.Errorf("throttle: wait cancelled"))
		}
	}
	if err := ph.topic.publish(data, p.clock.Now()); err != nil {
		return 0, err
	}
	return len(data), nil
}

func (p *PubSubFs) Close(_ context.Context, h fs9.Handle, _ bool) error {
	p.handleMu.Lock()
	ph, ok := p.handles[h]
	if !ok {
		p.handleMu.Unlock()
		return fs9.InvalidHandle("close", h)
	}
	delete(p.handles, h)
	p.handleMu.Unlock()

	if ph.kind == kindSubscribe {
		ph.topic.unsubscribe(ph.subID)
	}
	return nil
}

func (p *PubSubFs) Readdir(_ context.Context, path fs9.Path) ([]fs9.FileInfo, error) {
	path = normalizePath(path)
	if path != fs9.Root {
		return nil, fs9.NotDirectory("readdir", path)
	}
	out := []fs9.FileInfo{{Path: "/README", Type: fs9.Regular, Mode: 0o444, Size: uint64(len(readmeContent))}}

	p.mu.RLock()
	names := make([]string, 0, len(p.topics))
	for name := range p.topics {
		names = append(names, name)
	}
	p.mu.RUnlock()
	sort.Strings(names)

	for _, name := range names {
		t, _ := p.getTopic(name)
		out = append(out, fs9.FileInfo{Path: "/" + name, Type: fs9.Regular, Mode: 0o600, Mtime: t.mtime.Unix(), Ctime: t.createdAt.Unix()})
		info := t.info()
		out = append(out, fs9.FileInfo{Path: "/" + name + infoSuffix, Type: fs9.Regular, Mode: 0o444, Size: uint64(len(info)), Mtime: t.mtime.Unix(), Ctime: t.createdAt.Unix()})
	}
	return out, nil
}

func (p *PubSubFs) Remove(_ context.Context, path fs9.Path) error {
	path = normalizePath(path)
	if path == fs9.Root || path == "/README" {
		return fs9.PermissionDenied("remove", path)
	}
	name, isInfo, ok := topicNameFromPath(path)
	if !ok || isInfo {
		return fs9.PermissionDenied("remove", path)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.topics[name]; !ok {
		return fs9.NotFound("remove", path)
	}
	delete(p.topics, name)
	return nil
}
