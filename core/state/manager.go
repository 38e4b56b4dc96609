package state

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"pegvault/core/events"
	"pegvault/storage"
)

var errScopeMismatch = errors.New("state: transaction scope closed out of order")

type journalEntry struct {
	key     string
	prev    []byte
	existed bool
}

type scope struct {
	journal int
	events  int
}

// Manager is the journaled key-value state behind both engines. Writes made
// inside a Begin/Finish scope stay in memory until the outermost scope
// finishes successfully; a failed scope restores every key it touched and
// drops the events it queued.
type Manager struct {
	mu      sync.Mutex
	db      storage.Database
	dirty   map[string][]byte
	journal []journalEntry
	scopes  []scope
	pending []events.Event
	emitter events.Emitter
}

// NewManager creates a state manager persisting to db.
func NewManager(db storage.Database) *Manager {
	if db == nil {
		db = storage.NewMemDB()
	}
	return &Manager{
		db:      db,
		dirty:   make(map[string][]byte),
		emitter: events.NoopEmitter{},
	}
}

// SetEmitter configures where committed events are delivered.
func (m *Manager) SetEmitter(emitter events.Emitter) {
	if m == nil {
		return
	}
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	m.emitter = emitter
}

// Begin opens a (possibly nested) scope and returns its handle.
func (m *Manager) Begin() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scopes = append(m.scopes, scope{journal: len(m.journal), events: len(m.pending)})
	return len(m.scopes) - 1
}

// Finish closes the scope opened by the matching Begin. A non-nil err
// reverts the scope and is returned unchanged. Closing the outermost scope
// flushes every write in one batch and then delivers the queued events.
func (m *Manager) Finish(handle int, err error) error {
	m.mu.Lock()
	if handle != len(m.scopes)-1 {
		m.mu.Unlock()
		if err != nil {
			return err
		}
		return errScopeMismatch
	}
	sc := m.scopes[handle]
	m.scopes = m.scopes[:handle]
	if err != nil {
		m.revertLocked(sc)
		m.mu.Unlock()
		return err
	}
	if len(m.scopes) > 0 {
		m.mu.Unlock()
		return nil
	}
	committed, commitErr := m.commitLocked()
	m.mu.Unlock()
	if commitErr != nil {
		return commitErr
	}
	for _, evt := range committed {
		m.emitter.Emit(evt)
	}
	return nil
}

// Update runs fn inside its own scope.
func (m *Manager) Update(fn func() error) error {
	handle := m.Begin()
	return m.Finish(handle, fn())
}

// InTransaction reports whether a scope is open.
func (m *Manager) InTransaction() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.scopes) > 0
}

// Emit queues an event for delivery when the enclosing scope commits. Outside
// a scope the event is delivered immediately.
func (m *Manager) Emit(evt events.Event) {
	if evt == nil {
		return
	}
	m.mu.Lock()
	if len(m.scopes) > 0 {
		m.pending = append(m.pending, evt)
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()
	m.emitter.Emit(evt)
}

func (m *Manager) revertLocked(sc scope) {
	for i := len(m.journal) - 1; i >= sc.journal; i-- {
		entry := m.journal[i]
		if entry.existed {
			m.dirty[entry.key] = entry.prev
		} else {
			delete(m.dirty, entry.key)
		}
	}
	m.journal = m.journal[:sc.journal]
	m.pending = m.pending[:sc.events]
}

func (m *Manager) commitLocked() ([]events.Event, error) {
	batch := new(storage.Batch)
	keys := make([]string, 0, len(m.dirty))
	for key := range m.dirty {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		value := m.dirty[key]
		if value == nil {
			batch.Delete([]byte(key))
			continue
		}
		batch.Put([]byte(key), value)
	}
	committed := m.pending
	m.dirty = make(map[string][]byte)
	m.journal = nil
	m.pending = nil
	if err := m.db.Write(batch); err != nil {
		return nil, fmt.Errorf("state: commit: %w", err)
	}
	return committed, nil
}

func (m *Manager) get(key []byte) ([]byte, bool, error) {
	m.mu.Lock()
	value, ok := m.dirty[string(key)]
	m.mu.Unlock()
	if ok {
		if value == nil {
			return nil, false, nil
		}
		return value, true, nil
	}
	stored, err := m.db.Get(key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return stored, true, nil
}

// set writes value (nil deletes). Outside a scope the write goes straight to
// the database.
func (m *Manager) set(key []byte, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.scopes) == 0 {
		if value == nil {
			return m.db.Delete(key)
		}
		return m.db.Put(key, value)
	}
	k := string(key)
	prev, existed := m.dirty[k]
	m.journal = append(m.journal, journalEntry{key: k, prev: prev, existed: existed})
	if value == nil {
		m.dirty[k] = nil
		return nil
	}
	m.dirty[k] = append([]byte(nil), value...)
	return nil
}

func kvKey(key []byte) []byte {
	return ethcrypto.Keccak256(key)
}

// KVPut stores the provided value under the supplied key using RLP encoding.
// The key is hashed with keccak256.
func (m *Manager) KVPut(key []byte, value interface{}) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	return m.set(kvKey(key), encoded)
}

// KVGet retrieves the value stored under the supplied key and decodes it into
// the provided destination. The boolean return value indicates whether the key
// existed in state.
func (m *Manager) KVGet(key []byte, out interface{}) (bool, error) {
	if len(key) == 0 {
		return false, fmt.Errorf("kv: key must not be empty")
	}
	data, ok, err := m.get(kvKey(key))
	if err != nil || !ok {
		return false, err
	}
	if out == nil {
		return true, nil
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, err
	}
	return true, nil
}

// KVDelete removes the value stored under key.
func (m *Manager) KVDelete(key []byte) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	return m.set(kvKey(key), nil)
}

// SetRole associates an address with the specified role. Duplicate
// assignments are ignored while the stored list remains sorted for
// determinism.
func (m *Manager) SetRole(role string, addr common.Address) error {
	trimmed := strings.TrimSpace(role)
	if trimmed == "" {
		return fmt.Errorf("role must not be empty")
	}
	if addr == (common.Address{}) {
		return fmt.Errorf("address must not be empty")
	}
	members, err := m.RoleMembers(trimmed)
	if err != nil {
		return err
	}
	for _, existing := range members {
		if existing == addr {
			return nil
		}
	}
	members = append(members, addr)
	sort.Slice(members, func(i, j int) bool {
		return bytes.Compare(members[i].Bytes(), members[j].Bytes()) < 0
	})
	return m.KVPut(roleKey(trimmed), members)
}

// RevokeRole removes addr from role.
func (m *Manager) RevokeRole(role string, addr common.Address) error {
	trimmed := strings.TrimSpace(role)
	members, err := m.RoleMembers(trimmed)
	if err != nil {
		return err
	}
	kept := members[:0]
	for _, existing := range members {
		if existing != addr {
			kept = append(kept, existing)
		}
	}
	return m.KVPut(roleKey(trimmed), kept)
}

// RoleMembers returns all addresses assigned to the provided role.
func (m *Manager) RoleMembers(role string) ([]common.Address, error) {
	var members []common.Address
	if _, err := m.KVGet(roleKey(strings.TrimSpace(role)), &members); err != nil {
		return nil, err
	}
	return members, nil
}

// HasRole reports whether the provided address is associated with the
// specified role. Errors while reading the underlying state result in a false
// return.
func (m *Manager) HasRole(role string, addr common.Address) bool {
	if addr == (common.Address{}) {
		return false
	}
	members, err := m.RoleMembers(role)
	if err != nil {
		return false
	}
	for _, member := range members {
		if member == addr {
			return true
		}
	}
	return false
}

// SetPaused toggles a module pause flag.
func (m *Manager) SetPaused(module string, paused bool) error {
	return m.KVPut(pauseKey(module), paused)
}

// IsPaused implements the pause view consulted by the engines.
func (m *Manager) IsPaused(module string) bool {
	var paused bool
	ok, err := m.KVGet(pauseKey(module), &paused)
	if err != nil || !ok {
		return false
	}
	return paused
}
