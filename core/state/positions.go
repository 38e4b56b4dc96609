package state

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"pegvault/native/yield"
)

// CreatePosition assigns the next id to pos and records owner as its holder.
func (m *Manager) CreatePosition(owner common.Address, pos *yield.Position) (uint64, error) {
	if pos == nil {
		return 0, fmt.Errorf("state: position must not be nil")
	}
	if owner == (common.Address{}) {
		return 0, fmt.Errorf("state: position owner must not be empty")
	}
	var next uint64
	if _, err := m.KVGet(nextPositionKey, &next); err != nil {
		return 0, err
	}
	if next == 0 {
		next = 1
	}
	pos.ID = next
	if err := m.KVPut(nextPositionKey, next+1); err != nil {
		return 0, err
	}
	if err := m.PutPosition(pos); err != nil {
		return 0, err
	}
	if err := m.setOwner(next, owner); err != nil {
		return 0, err
	}
	return next, nil
}

// Position returns the stored record, or nil when id was never minted.
func (m *Manager) Position(id uint64) (*yield.Position, error) {
	pos := new(yield.Position)
	ok, err := m.KVGet(positionKey(id), pos)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	pos.ID = id
	return pos, nil
}

// PutPosition overwrites the stored record for pos.ID.
func (m *Manager) PutPosition(pos *yield.Position) error {
	if pos == nil || pos.ID == 0 {
		return fmt.Errorf("state: position id must be set")
	}
	return m.KVPut(positionKey(pos.ID), pos)
}

// BurnPosition removes ownership and custody of id. The inactive record is
// kept for history queries.
func (m *Manager) BurnPosition(id uint64) error {
	owner, err := m.OwnerOf(id)
	if err != nil {
		return err
	}
	if owner != (common.Address{}) {
		if err := m.unindex(owner, id); err != nil {
			return err
		}
	}
	if err := m.KVDelete(ownerKey(id)); err != nil {
		return err
	}
	return m.KVDelete(custodyKey(id))
}

// OwnerOf returns the owner of id or the zero address once burned.
func (m *Manager) OwnerOf(id uint64) (common.Address, error) {
	var owner common.Address
	if _, err := m.KVGet(ownerKey(id), &owner); err != nil {
		return common.Address{}, err
	}
	return owner, nil
}

// CustodianOf returns the party holding custody of id, or the zero address
// when the owner holds it directly.
func (m *Manager) CustodianOf(id uint64) (common.Address, error) {
	var holder common.Address
	if _, err := m.KVGet(custodyKey(id), &holder); err != nil {
		return common.Address{}, err
	}
	return holder, nil
}

// SetCustody hands custody of id to holder; the zero address clears it.
func (m *Manager) SetCustody(id uint64, holder common.Address) error {
	if holder == (common.Address{}) {
		return m.KVDelete(custodyKey(id))
	}
	return m.KVPut(custodyKey(id), holder)
}

// ReleasePosition clears custody of id and transfers ownership to `to`.
func (m *Manager) ReleasePosition(id uint64, to common.Address) error {
	if to == (common.Address{}) {
		return fmt.Errorf("state: release recipient must not be empty")
	}
	if err := m.SetCustody(id, common.Address{}); err != nil {
		return err
	}
	owner, err := m.OwnerOf(id)
	if err != nil {
		return err
	}
	if owner == to {
		return nil
	}
	if owner != (common.Address{}) {
		if err := m.unindex(owner, id); err != nil {
			return err
		}
	}
	return m.setOwner(id, to)
}

// PositionsOf lists the ids currently owned by owner in mint order.
func (m *Manager) PositionsOf(owner common.Address) ([]uint64, error) {
	var ids []uint64
	if _, err := m.KVGet(ownerIndexKey(owner), &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

func (m *Manager) setOwner(id uint64, owner common.Address) error {
	if err := m.KVPut(ownerKey(id), owner); err != nil {
		return err
	}
	ids, err := m.PositionsOf(owner)
	if err != nil {
		return err
	}
	for _, existing := range ids {
		if existing == id {
			return nil
		}
	}
	return m.KVPut(ownerIndexKey(owner), append(ids, id))
}

func (m *Manager) unindex(owner common.Address, id uint64) error {
	ids, err := m.PositionsOf(owner)
	if err != nil {
		return err
	}
	kept := ids[:0]
	for _, existing := range ids {
		if existing != id {
			kept = append(kept, existing)
		}
	}
	if len(kept) == 0 {
		return m.KVDelete(ownerIndexKey(owner))
	}
	return m.KVPut(ownerIndexKey(owner), kept)
}
