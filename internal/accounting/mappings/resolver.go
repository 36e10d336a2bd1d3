package mappings

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

// Lookup reads a configured mapping. The ledger transaction repository
// satisfies it so resolution happens inside the posting transaction.
type Lookup interface {
	MappedAccountCode(ctx context.Context, module, key string) (string, error)
}

// Resolve returns the configured account code for module/key, falling back
// to the built-in defaults.
func Resolve(ctx context.Context, lookup Lookup, module, key string) (string, error) {
	module = strings.ToUpper(strings.TrimSpace(module))
	key = strings.ToUpper(strings.TrimSpace(key))
	if module == "" || key == "" {
		return "", shared.Invalid("mapping", "module and key required")
	}
	if lookup != nil {
		code, err := lookup.MappedAccountCode(ctx, module, key)
		if err == nil && code != "" {
			return code, nil
		}
		if err != nil && !errors.Is(err, shared.ErrMappingNotFound) {
			return "", err
		}
	}
	if code, ok := DefaultCode(module, key); ok {
		return code, nil
	}
	return "", fmt.Errorf("%w: %s/%s", shared.ErrMappingNotFound, module, key)
}
