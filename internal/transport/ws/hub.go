package ws

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/cwrk-planet/notify-service/internal/domain"
	"github.com/cwrk-planet/notify-service/internal/metrics"
)

var (
	ErrConnClosed      = errors.New("connection closed")
	ErrSendBufferFull  = errors.New("send buffer full")
	ErrPayloadEncoding = errors.New("payload is not JSON encodable")
)

// Conn is one client session as seen by the hub.
type Conn interface {
	ID() string
	// Send enqueues an encoded frame without blocking.
	Send(frame []byte) error
	Close() error
}

// Hub owns the group table. groups maps a group name to its members keyed by
// connection id; memberOf is the reverse index used to drop a connection from
// every group it joined without scanning the table.
type Hub struct {
	mu       sync.RWMutex
	conns    map[string]Conn
	groups   map[string]map[string]Conn
	memberOf map[string]map[string]struct{}
}

func NewHub() *Hub {
	return &Hub{
		conns:    make(map[string]Conn),
		groups:   make(map[string]map[string]Conn),
		memberOf: make(map[string]map[string]struct{}),
	}
}

// Connect records a new session. It does not join any group.
func (h *Hub) Connect(c Conn) {
	h.mu.Lock()
	h.conns[c.ID()] = c
	n := len(h.conns)
	h.mu.Unlock()

	metrics.Connections.Set(float64(n))
	slog.Info("ws connected", "conn_id", c.ID())
}

// Register joins c to the per-user group and returns the group name.
// added is false when c was already a member or is no longer connected.
func (h *Hub) Register(c Conn, userID string) (group string, added bool) {
	group = domain.GroupName(userID)
	return group, h.Join(c, group)
}

// Join adds c to group. Membership is keyed by connection id, so repeated
// joins are no-ops.
func (h *Hub) Join(c Conn, group string) bool {
	id := c.ID()

	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.conns[id]; !ok {
		return false
	}
	members, ok := h.groups[group]
	if !ok {
		members = make(map[string]Conn)
		h.groups[group] = members
	}
	if _, dup := members[id]; dup {
		return false
	}
	members[id] = c

	joined, ok := h.memberOf[id]
	if !ok {
		joined = make(map[string]struct{})
		h.memberOf[id] = joined
	}
	joined[group] = struct{}{}

	metrics.Groups.Set(float64(len(h.groups)))
	return true
}

// Disconnect forgets c and removes it from every group it joined. Groups
// left empty are deleted. Safe to call more than once.
func (h *Hub) Disconnect(c Conn) {
	id := c.ID()

	h.mu.Lock()
	if _, ok := h.conns[id]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.conns, id)

	left := len(h.memberOf[id])
	for g := range h.memberOf[id] {
		if members, ok := h.groups[g]; ok {
			delete(members, id)
			if len(members) == 0 {
				delete(h.groups, g)
			}
		}
	}
	delete(h.memberOf, id)

	n, groups := len(h.conns), len(h.groups)
	h.mu.Unlock()

	metrics.Connections.Set(float64(n))
	metrics.Groups.Set(float64(groups))
	slog.Info("ws disconnected", "conn_id", id, "groups", left)
}

// Emit broadcasts event with payload to the current members of group and
// returns how many of them accepted the frame. Delivery is best-effort:
// nothing is buffered for absent members, and a member whose send buffer is
// full is dropped.
func (h *Hub) Emit(group, event string, payload any) (int, error) {
	frame, err := json.Marshal(Message{Event: event, Data: payload})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrPayloadEncoding, err)
	}

	h.mu.RLock()
	targets := make([]Conn, 0, len(h.groups[group]))
	for _, c := range h.groups[group] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	if len(targets) == 0 {
		metrics.Emits.WithLabelValues(metrics.ResultNoMembers).Inc()
		return 0, nil
	}

	delivered := 0
	for _, c := range targets {
		if err := c.Send(frame); err != nil {
			if errors.Is(err, ErrSendBufferFull) {
				metrics.SlowConsumers.Inc()
				slog.Warn("ws slow consumer dropped", "conn_id", c.ID(), "group", group)
				_ = c.Close()
			}
			h.Disconnect(c)
			continue
		}
		delivered++
	}

	metrics.Deliveries.Add(float64(delivered))
	metrics.Emits.WithLabelValues(metrics.ResultDelivered).Inc()
	return delivered, nil
}

// Members returns the number of connections currently in group.
func (h *Hub) Members(group string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.groups[group])
}

// Groups returns the sorted group names connID has joined.
func (h *Hub) Groups(connID string) []string {
	h.mu.RLock()
	out := make([]string, 0, len(h.memberOf[connID]))
	for g := range h.memberOf[connID] {
		out = append(out, g)
	}
	h.mu.RUnlock()

	sort.Strings(out)
	return out
}

// Count returns the number of open connections.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// GroupCount returns the number of non-empty groups.
func (h *Hub) GroupCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.groups)
}

// CloseAll closes every open connection. Used on shutdown.
func (h *Hub) CloseAll() {
	h.mu.RLock()
	conns := make([]Conn, 0, len(h.conns))
	for _, c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.RUnlock()

	for _, c := range conns {
		_ = c.Close()
		h.Disconnect(c)
	}
}
