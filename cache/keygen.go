package cache

import (
	"fmt"
	"strings"
)

// KeyFor builds a cache key from an entity name and its query parameters,
// e.g. KeyFor("orders", userID, 20) == "orders_<userID>_20".
// With no parameters the key is the entity name itself.
func KeyFor(entity string, params ...any) string {
	if len(params) == 0 {
		return entity
	}

	parts := make([]string, 0, len(params)+1)
	parts = append(parts, entity)
	for _, p := range params {
		parts = append(parts, fmt.Sprint(p))
	}
	return strings.Join(parts, "_")
}

