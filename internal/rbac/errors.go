package rbac

import (
	"fmt"

	"github.com/backlog-dim/backlog-dim/internal/platform/httpx"
)

var (
	// ErrNotFound indicates that the requested profile or permission does not exist.
	ErrNotFound = fmt.Errorf("rbac: %w", httpx.ErrNotFound)
	// ErrDuplicate indicates a profile name or edge that already exists.
	ErrDuplicate = fmt.Errorf("rbac: %w", httpx.ErrDuplicate)
	// ErrCycle rejects an inheritance edge that would close a loop.
	ErrCycle = fmt.Errorf("rbac: inheritance would create a cycle: %w", httpx.ErrValidation)
	// ErrInvalid wraps input validation failures.
	ErrInvalid = fmt.Errorf("rbac: %w", httpx.ErrValidation)
)
