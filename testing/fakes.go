package testing

import (
	"context"
	"fmt"
	"sync"

	"github.com/overtone/peerage/types"
)

// FakeGateway is a controllable Gateway implementation.
//
// All peers report ready until marked otherwise. Safe for concurrent use.
type FakeGateway struct {
	mu       sync.Mutex
	notReady map[string]bool
}

var _ types.Gateway = (*FakeGateway)(nil)

// NewFakeGateway creates a gateway where every peer is ready.
func NewFakeGateway() *FakeGateway {
	return &FakeGateway{notReady: make(map[string]bool)}
}

// SetReady marks a peer's gateway connection up or down.
func (g *FakeGateway) SetReady(peerID string, ready bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.notReady[peerID] = !ready
}

// IsReady implements types.Gateway.
func (g *FakeGateway) IsReady(peerID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	return !g.notReady[peerID]
}

// FakeEngine is a SessionEngine producing in-memory sessions.
//
// Set FailNext to make the next Create call fail, for teardown-path tests.
type FakeEngine struct {
	mu       sync.Mutex
	failNext bool
	created  int
}

var _ types.SessionEngine = (*FakeEngine)(nil)

// NewFakeEngine creates an engine whose sessions always succeed.
func NewFakeEngine() *FakeEngine {
	return &FakeEngine{}
}

// FailNext makes the next Create call return an error.
func (e *FakeEngine) FailNext() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.failNext = true
}

// Created returns how many sessions the engine has produced.
func (e *FakeEngine) Created() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.created
}

// Create implements types.SessionEngine.
func (e *FakeEngine) Create(_ context.Context, peerID, guildID, channelID string) (types.Session, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.failNext {
		e.failNext = false

		return nil, fmt.Errorf("engine failure injected for peer %s guild %s", peerID, guildID)
	}

	e.created++

	return &FakeSession{channelID: channelID}, nil
}

// FakeSession is an in-memory Session that records lifecycle calls.
type FakeSession struct {
	mu           sync.Mutex
	channelID    string
	load         int
	disconnected bool
	destroyed    bool
}

var _ types.Session = (*FakeSession)(nil)

// ChannelID implements types.Session.
func (s *FakeSession) ChannelID() string {
	return s.channelID
}

// ActiveLoad implements types.Session.
func (s *FakeSession) ActiveLoad() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.load
}

// SetLoad sets the session's reported load.
func (s *FakeSession) SetLoad(load int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.load = load
}

// Disconnect implements types.Session.
func (s *FakeSession) Disconnect(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disconnected = true

	return nil
}

// Destroy implements types.Session.
func (s *FakeSession) Destroy(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.destroyed = true

	return nil
}

// Disconnected reports whether Disconnect was called.
func (s *FakeSession) Disconnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.disconnected
}

// Destroyed reports whether Destroy was called.
func (s *FakeSession) Destroyed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.destroyed
}
