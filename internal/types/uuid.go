package types

import (
	"fmt"

	"github.com/oklog/ulid/v2"
)

// GenerateUUID returns a k-sortable unique identifier
func GenerateUUID() string {
	return ulid.Make().String()
}

// GenerateUUIDWithPrefix returns a k-sortable unique identifier
// with a prefix ex subs_01HZX3Y2P7Q0W9ZK8FJOOFXTY1
func GenerateUUIDWithPrefix(prefix string) string {
	if prefix == "" {
		return GenerateUUID()
	}
	return fmt.Sprintf("%s_%s", prefix, GenerateUUID())
}

const (
	// Prefixes for all domains and entities

	UUID_PREFIX_USER         = "user"
	UUID_PREFIX_SUBSCRIPTION = "subs"
	UUID_PREFIX_QUOTATION    = "quote"
	UUID_PREFIX_TRACKING     = "track"
	UUID_PREFIX_NOTIFICATION = "notif"
	UUID_PREFIX_EVENT        = "event"
)
