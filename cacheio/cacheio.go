// Package cacheio routes cache messages between nodes to per-cache
// handlers. Messages travel in a msgpack envelope.
package cacheio

import (
	"context"
	"fmt"
	"sync"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/sharedcode/grid"
)

var _ grid.IoManager = (*Manager)(nil)

// Message is the envelope of a cache message.
type Message struct {
	CacheID int32  `msgpack:"cache_id"`
	Type    string `msgpack:"type"`
	From    string `msgpack:"from"`
	Payload []byte `msgpack:"payload"`
}

// Handler processes a delivered message.
type Handler func(ctx context.Context, msg Message) error

// Transport carries encoded messages to their destination.
type Transport interface {
	Send(ctx context.Context, raw []byte) error
}

// Manager is the cache IO manager.
type Manager struct {
	grid.ManagerAdapter
	transport Transport

	mu       sync.RWMutex
	handlers map[int32]map[string]Handler
}

type loopback struct{ m *Manager }

func (l loopback) Send(ctx context.Context, raw []byte) error {
	return l.m.Deliver(ctx, raw)
}

// NewManager returns a Manager sending through transport. A nil transport
// delivers every message back to this node.
func NewManager(transport Transport) *Manager {
	m := &Manager{
		ManagerAdapter: grid.ManagerAdapter{ManagerName: "io"},
		handlers:       make(map[int32]map[string]Handler),
	}
	if transport == nil {
		transport = loopback{m: m}
	}
	m.transport = transport
	return m
}

// AddHandler registers h for messages of msgType addressed to cacheID,
// replacing any previous one.
func (m *Manager) AddHandler(cacheID int32, msgType string, h Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	hs, ok := m.handlers[cacheID]
	if !ok {
		hs = make(map[string]Handler)
		m.handlers[cacheID] = hs
	}
	hs[msgType] = h
}

// RemoveHandlers drops every handler of cacheID.
func (m *Manager) RemoveHandlers(cacheID int32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.handlers, cacheID)
}

// HandlerCount returns the number of handlers registered for cacheID.
func (m *Manager) HandlerCount(cacheID int32) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.handlers[cacheID])
}

// Send encodes msg and hands it to the transport.
func (m *Manager) Send(ctx context.Context, msg Message) error {
	if msg.From == "" {
		if sc := m.Shared(); sc != nil {
			msg.From = sc.NodeID().String()
		}
	}
	raw, err := Encode(msg)
	if err != nil {
		return err
	}
	return m.transport.Send(ctx, raw)
}

// Deliver decodes raw and runs the matching handler. A message for a cache
// with no handler fails with a CacheClosed error.
func (m *Manager) Deliver(ctx context.Context, raw []byte) error {
	msg, err := Decode(raw)
	if err != nil {
		return err
	}
	m.mu.RLock()
	h, ok := m.handlers[msg.CacheID][msg.Type]
	m.mu.RUnlock()
	if !ok {
		m.Log().Debug("dropping message without handler", "cache", msg.CacheID, "type", msg.Type)
		return grid.Error{
			Code:     grid.CacheClosed,
			Err:      fmt.Errorf("no handler for message %q of cache %d", msg.Type, msg.CacheID),
			UserData: msg.CacheID,
		}
	}
	return h(ctx, msg)
}

// Encode serializes msg.
func Encode(msg Message) ([]byte, error) {
	b, err := msgpack.Marshal(&msg)
	if err != nil {
		return nil, fmt.Errorf("encode cache message: %w", err)
	}
	return b, nil
}

// Decode parses an encoded message.
func Decode(raw []byte) (Message, error) {
	var msg Message
	if err := msgpack.Unmarshal(raw, &msg); err != nil {
		return Message{}, fmt.Errorf("decode cache message: %w", err)
	}
	return msg, nil
}
