package internal

import (
	"encoding/json"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Scope addresses a broadcast: every open handle, one user's handles, or the
// handles of a group's current members.
type Scope struct {
	kind    scopeKind
	id      string
	exclude string // user id left out of a group scope (the joiner)
}

type scopeKind int

const (
	scopeAll scopeKind = iota
	scopeUser
	scopeGroup
)

func ScopeAll() Scope                 { return Scope{kind: scopeAll} }
func ScopeUser(userID string) Scope   { return Scope{kind: scopeUser, id: userID} }
func ScopeGroup(groupID string) Scope { return Scope{kind: scopeGroup, id: groupID} }

func scopeGroupExcept(groupID, userID string) Scope {
	return Scope{kind: scopeGroup, id: groupID, exclude: userID}
}

// Hub owns every mutable index: the connection registry, the presence table,
// the group membership index, and the typing state index. One mutex
// serializes all mutations and broadcast scope resolution, so every
// operation observes a consistent snapshot and the invariants hold between
// operations. The maps are never handed out.
type Hub struct {
	mu       sync.Mutex
	conns    map[string]map[*Conn]struct{}        // user id -> open handles
	presence map[string]*PresenceRecord           // user id -> record
	groups   map[string]map[string]MemberSnapshot // group id -> user id -> snapshot
	typing   map[string]map[string]time.Time      // channel id -> user id -> expiry

	typingTTL time.Duration
	metrics   *Metrics
	log       *zap.Logger
}

func NewHub(log *zap.Logger, metrics *Metrics, typingTTL time.Duration) *Hub {
	return &Hub{
		conns:     make(map[string]map[*Conn]struct{}),
		presence:  make(map[string]*PresenceRecord),
		groups:    make(map[string]map[string]MemberSnapshot),
		typing:    make(map[string]map[string]time.Time),
		typingTTL: typingTTL,
		metrics:   metrics,
		log:       log,
	}
}

// Register adds a verified connection to its owner's handle set. The first
// handle flips the user online and announces the presence change to every
// open connection; additional handles only refresh the activity timestamp.
func (h *Hub) Register(c *Conn) {
	h.mu.Lock()
	userID := c.identity.ID
	handles := h.conns[userID]
	if handles == nil {
		handles = make(map[*Conn]struct{})
		h.conns[userID] = handles
	}
	handles[c] = struct{}{}

	rec := h.presence[userID]
	if rec == nil {
		rec = &PresenceRecord{UserID: userID}
		h.presence[userID] = rec
	}
	rec.Name = c.identity.Name
	rec.Avatar = c.identity.Avatar
	rec.LastActive = time.Now()

	var failed []*Conn
	if len(handles) == 1 {
		rec.Status = StatusOnline
		failed = h.emitLocked(ScopeAll(), EventPresence, *rec)
	}
	h.mu.Unlock()
	h.reap(failed)
}

// Disconnect removes a handle from the registry. Disconnecting the last
// handle flips the user offline, announces the presence change, and then
// cascades: the user is pruned from every group (one member-left per group,
// scoped to its remaining members) and every typing set (one typing-stopped
// per channel). A second call for the same handle is a no-op.
func (h *Hub) Disconnect(c *Conn) {
	defer c.close()
	h.mu.Lock()

	userID := c.identity.ID
	handles, ok := h.conns[userID]
	if !ok {
		h.mu.Unlock()
		return
	}
	if _, ok := handles[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(handles, c)
	if len(handles) > 0 {
		h.mu.Unlock()
		return
	}
	delete(h.conns, userID)

	rec := h.presence[userID]
	rec.Status = StatusOffline
	rec.LastActive = time.Now()

	var failed []*Conn
	failed = append(failed, h.emitLocked(ScopeAll(), EventPresence, *rec)...)

	for groupID, members := range h.groups {
		snapshot, member := members[userID]
		if !member {
			continue
		}
		delete(members, userID)
		if len(members) == 0 {
			delete(h.groups, groupID)
		}
		failed = append(failed, h.emitLocked(ScopeGroup(groupID), EventMemberLeft, MemberEvent{Group: groupID, Member: snapshot})...)
	}
	for channelID, typers := range h.typing {
		if _, typing := typers[userID]; !typing {
			continue
		}
		delete(typers, userID)
		if len(typers) == 0 {
			delete(h.typing, channelID)
		}
		failed = append(failed, h.emitLocked(ScopeGroup(channelID), EventTyping, TypingEvent{Channel: channelID, UserID: userID})...)
	}
	h.mu.Unlock()
	h.reap(failed)
}

// Join adds an online user to a group and returns the group's full
// membership at that instant. Peers already in the group receive a
// member-joined event; the joiner reconciles it against the timestamped
// snapshot. Re-joining only refreshes the stored snapshot.
func (h *Hub) Join(userID, groupID string) (GroupSnapshot, error) {
	h.mu.Lock()
	rec := h.presence[userID]
	if rec == nil || rec.Status != StatusOnline {
		h.mu.Unlock()
		return GroupSnapshot{}, ErrNotConnected
	}
	members := h.groups[groupID]
	if members == nil {
		members = make(map[string]MemberSnapshot)
		h.groups[groupID] = members
	}
	_, already := members[userID]
	snapshot := MemberSnapshot{UserID: userID, Name: rec.Name, Avatar: rec.Avatar, Status: rec.Status}
	members[userID] = snapshot

	var failed []*Conn
	if !already {
		failed = h.emitLocked(scopeGroupExcept(groupID, userID), EventMemberJoined, MemberEvent{Group: groupID, Member: snapshot})
	}

	full := GroupSnapshot{
		Group:   groupID,
		TakenAt: time.Now().UnixMilli(),
		Members: make([]MemberSnapshot, 0, len(members)),
	}
	for _, m := range members {
		full.Members = append(full.Members, m)
	}
	sort.Slice(full.Members, func(i, j int) bool { return full.Members[i].UserID < full.Members[j].UserID })
	h.mu.Unlock()
	h.reap(failed)
	return full, nil
}

// Leave removes a user from a group and tells the remaining members. Leaving
// a group the user never joined is a no-op.
func (h *Hub) Leave(userID, groupID string) {
	h.mu.Lock()
	members := h.groups[groupID]
	snapshot, ok := members[userID]
	if !ok {
		h.mu.Unlock()
		return
	}
	delete(members, userID)
	if len(members) == 0 {
		delete(h.groups, groupID)
	}
	failed := h.emitLocked(ScopeGroup(groupID), EventMemberLeft, MemberEvent{Group: groupID, Member: snapshot})
	h.mu.Unlock()
	h.reap(failed)
}

// SetTyping records or clears the user's typing state in a channel and
// broadcasts the new state to the channel's members.
func (h *Hub) SetTyping(userID, channelID string, isTyping bool) error {
	h.mu.Lock()
	rec := h.presence[userID]
	if rec == nil || rec.Status != StatusOnline {
		h.mu.Unlock()
		return ErrNotConnected
	}
	if isTyping {
		typers := h.typing[channelID]
		if typers == nil {
			typers = make(map[string]time.Time)
			h.typing[channelID] = typers
		}
		typers[userID] = time.Now().Add(h.typingTTL)
	} else {
		typers := h.typing[channelID]
		if _, ok := typers[userID]; !ok {
			h.mu.Unlock()
			return nil
		}
		delete(typers, userID)
		if len(typers) == 0 {
			delete(h.typing, channelID)
		}
	}
	failed := h.emitLocked(ScopeGroup(channelID), EventTyping, TypingEvent{Channel: channelID, UserID: userID, IsTyping: isTyping})
	h.mu.Unlock()
	h.reap(failed)
	return nil
}

// StartTypingSweeper clears typing entries whose client stopped signalling
// without ever sending typing=false, a guard against abnormal disconnects.
// Returns a stop function. Disabled when the ttl is not positive.
func (h *Hub) StartTypingSweeper() func() {
	if h.typingTTL <= 0 {
		return func() {}
	}
	interval := h.typingTTL / 2
	if interval < 10*time.Millisecond {
		interval = 10 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	stop := make(chan struct{})
	go func() {
		for {
			select {
			case <-stop:
				ticker.Stop()
				return
			case now := <-ticker.C:
				h.sweepTyping(now)
			}
		}
	}()
	var once sync.Once
	return func() { once.Do(func() { close(stop) }) }
}

func (h *Hub) sweepTyping(now time.Time) {
	h.mu.Lock()
	var failed []*Conn
	for channelID, typers := range h.typing {
		for userID, expiry := range typers {
			if expiry.After(now) {
				continue
			}
			delete(typers, userID)
			failed = append(failed, h.emitLocked(ScopeGroup(channelID), EventTyping, TypingEvent{Channel: channelID, UserID: userID})...)
		}
		if len(typers) == 0 {
			delete(h.typing, channelID)
		}
	}
	h.mu.Unlock()
	h.reap(failed)
}

// Touch refreshes the user's last-activity timestamp.
func (h *Hub) Touch(userID string) {
	h.mu.Lock()
	if rec := h.presence[userID]; rec != nil {
		rec.LastActive = time.Now()
	}
	h.mu.Unlock()
}

// Online reports whether the user currently has at least one open handle.
func (h *Hub) Online(userID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns[userID]) > 0
}

// Presence returns a copy of the user's presence record, if one exists.
func (h *Hub) Presence(userID string) (PresenceRecord, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	rec := h.presence[userID]
	if rec == nil {
		return PresenceRecord{}, false
	}
	return *rec, true
}

// Emit broadcasts an event to every open handle in scope, at most once per
// handle. Handles that cannot accept the payload are logged and scheduled
// for cleanup; the rest of the scope is unaffected.
func (h *Hub) Emit(scope Scope, event string, data any) {
	h.mu.Lock()
	failed := h.emitLocked(scope, event, data)
	h.mu.Unlock()
	h.reap(failed)
}

// emitLocked resolves the scope and enqueues the payload while the caller
// holds h.mu, so the recipient set is exactly the handles open at the
// instant of the call. Returns the handles that refused delivery.
func (h *Hub) emitLocked(scope Scope, event string, data any) []*Conn {
	payload, err := json.Marshal(Event{Event: event, Data: data})
	if err != nil {
		h.log.Error("event marshal failed", zap.String("event", event), zap.Error(err))
		return nil
	}
	var failed []*Conn
	for _, c := range h.scopeConnsLocked(scope) {
		if c.enqueue(payload) {
			h.metrics.IncDelivered()
		} else {
			failed = append(failed, c)
		}
	}
	return failed
}

func (h *Hub) scopeConnsLocked(scope Scope) []*Conn {
	var out []*Conn
	switch scope.kind {
	case scopeAll:
		for _, handles := range h.conns {
			for c := range handles {
				out = append(out, c)
			}
		}
	case scopeUser:
		for c := range h.conns[scope.id] {
			out = append(out, c)
		}
	case scopeGroup:
		for userID := range h.groups[scope.id] {
			if userID == scope.exclude {
				continue
			}
			for c := range h.conns[userID] {
				out = append(out, c)
			}
		}
	}
	return out
}

// reap handles delivery failures outside the lock: each failed handle is
// logged, counted, and disconnected on its own goroutine so the cascade
// cleanup re-acquires the lock safely.
func (h *Hub) reap(failed []*Conn) {
	for _, c := range failed {
		h.metrics.IncDeliveryFailure()
		h.log.Warn("delivery failed, dropping connection",
			zap.String("conn", c.id),
			zap.String("user", c.identity.ID))
		c.close()
		go h.Disconnect(c)
	}
}
