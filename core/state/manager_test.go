package state

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"pegvault/core/events"
	"pegvault/storage"
)

var (
	alice = common.HexToAddress("0x00000000000000000000000000000000000000c3")
	bob   = common.HexToAddress("0x00000000000000000000000000000000000000d4")
)

func newTestManager(t *testing.T) (*Manager, *storage.MemDB, *events.Recorder) {
	t.Helper()
	db := storage.NewMemDB()
	m := NewManager(db)
	recorder := &events.Recorder{}
	m.SetEmitter(recorder)
	return m, db, recorder
}

func TestScopeCommitWritesOnce(t *testing.T) {
	m, db, recorder := newTestManager(t)

	handle := m.Begin()
	require.True(t, m.InTransaction())
	require.NoError(t, m.KVPut([]byte("a"), uint64(7)))
	m.Emit(events.ParamsUpdated{Module: "yield", Version: 2})
	require.Equal(t, 0, db.Len(), "writes must stay buffered until commit")
	require.Empty(t, recorder.Events(), "events must wait for commit")

	var got uint64
	ok, err := m.KVGet([]byte("a"), &got)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(7), got)

	require.NoError(t, m.Finish(handle, nil))
	require.False(t, m.InTransaction())
	require.Equal(t, 1, db.Len())
	require.Len(t, recorder.Events(), 1)
}

func TestScopeRevertRestoresState(t *testing.T) {
	m, db, recorder := newTestManager(t)
	require.NoError(t, m.KVPut([]byte("kept"), uint64(1)))

	failure := errors.New("boom")
	err := m.Update(func() error {
		if err := m.KVPut([]byte("kept"), uint64(2)); err != nil {
			return err
		}
		if err := m.KVPut([]byte("fresh"), uint64(3)); err != nil {
			return err
		}
		m.Emit(events.ParamsUpdated{Module: "lending", Version: 1})
		return failure
	})
	if !errors.Is(err, failure) {
		t.Fatalf("expected the scope error back, got %v", err)
	}

	var got uint64
	ok, err := m.KVGet([]byte("kept"), &got)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(1), got)
	ok, err = m.KVGet([]byte("fresh"), nil)
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, 1, db.Len())
	require.Empty(t, recorder.Events())
}

func TestNestedScopeRevertKeepsOuterWrites(t *testing.T) {
	m, _, recorder := newTestManager(t)

	outer := m.Begin()
	require.NoError(t, m.KVPut([]byte("outer"), uint64(1)))
	m.Emit(events.ParamsUpdated{Module: "outer", Version: 1})

	inner := m.Begin()
	require.NoError(t, m.KVPut([]byte("outer"), uint64(9)))
	require.NoError(t, m.KVDelete([]byte("outer")))
	m.Emit(events.ParamsUpdated{Module: "inner", Version: 1})
	require.Error(t, m.Finish(inner, errors.New("inner failed")))

	var got uint64
	ok, err := m.KVGet([]byte("outer"), &got)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(1), got)

	require.NoError(t, m.Finish(outer, nil))
	require.Len(t, recorder.Events(), 1)
	require.Equal(t, "outer", recorder.Events()[0].(events.ParamsUpdated).Module)
}

func TestFinishOutOfOrder(t *testing.T) {
	m, _, _ := newTestManager(t)
	outer := m.Begin()
	inner := m.Begin()
	if err := m.Finish(outer, nil); !errors.Is(err, errScopeMismatch) {
		t.Fatalf("expected errScopeMismatch, got %v", err)
	}
	require.NoError(t, m.Finish(inner, nil))
	require.NoError(t, m.Finish(outer, nil))
}

func TestEmitOutsideScopeIsImmediate(t *testing.T) {
	m, _, recorder := newTestManager(t)
	m.Emit(events.ParamsUpdated{Module: "yield", Version: 1})
	require.Len(t, recorder.Events(), 1)
}

func TestRolesAndPauses(t *testing.T) {
	m, _, _ := newTestManager(t)
	require.NoError(t, m.SetRole("admin", bob))
	require.NoError(t, m.SetRole("admin", alice))
	require.NoError(t, m.SetRole("admin", bob))

	members, err := m.RoleMembers("admin")
	require.NoError(t, err)
	require.Equal(t, []common.Address{alice, bob}, members)
	require.True(t, m.HasRole("admin", alice))
	require.False(t, m.HasRole("relayer", alice))

	require.NoError(t, m.RevokeRole("admin", alice))
	require.False(t, m.HasRole("admin", alice))

	require.False(t, m.IsPaused("yield"))
	require.NoError(t, m.SetPaused("yield", true))
	require.True(t, m.IsPaused("yield"))
	require.False(t, m.IsPaused("lending"))
	require.NoError(t, m.SetPaused("yield", false))
	require.False(t, m.IsPaused("yield"))
}

func TestEnsureStateVersion(t *testing.T) {
	m, _, _ := newTestManager(t)
	require.NoError(t, EnsureStateVersion(m, false))
	version, ok, err := m.StateVersion()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, StateVersion, version)

	require.NoError(t, m.SetStateVersion(StateVersion+1))
	if err := EnsureStateVersion(m, false); !errors.Is(err, ErrStateVersionMismatch) {
		t.Fatalf("expected ErrStateVersionMismatch, got %v", err)
	}
	require.NoError(t, EnsureStateVersion(m, true))
}

func TestStatePersistsAcrossManagers(t *testing.T) {
	db := storage.NewMemDB()
	first := NewManager(db)
	require.NoError(t, first.Update(func() error {
		return first.MintPegged(alice, big.NewInt(42))
	}))

	second := NewManager(db)
	balance, err := second.WalletBalance(alice, "pusd")
	require.NoError(t, err)
	require.Equal(t, "42", balance.String())
}
