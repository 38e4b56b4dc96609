package common

import (
	"strings"

	ethcommon "github.com/ethereum/go-ethereum/common"
)

const (
	// RoleAdmin gates configuration changes and overdue seizures.
	RoleAdmin = "admin"
	// RoleRelayer may complete inbound bridge transfers.
	RoleRelayer = "bridge.relayer"
	// RoleOracle may publish prices into the manual feed.
	RoleOracle = "oracle"
)

var ErrUnauthorized = NewError(KindAuthorization, "caller lacks required role")

// RoleView answers permission checks.
type RoleView interface {
	HasRole(role string, addr ethcommon.Address) bool
}

// RequireRole is consulted at the start of every administrative operation.
func RequireRole(view RoleView, role string, caller ethcommon.Address) error {
	role = strings.TrimSpace(role)
	if view == nil || role == "" || caller == (ethcommon.Address{}) {
		return ErrUnauthorized
	}
	if !view.HasRole(role, caller) {
		return ErrUnauthorized
	}
	return nil
}
