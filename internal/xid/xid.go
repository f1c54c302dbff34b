package xid

import (
	"fmt"

	"github.com/google/uuid"
)

// New returns a prefixed random id such as "sale-0b6c…".
func New(prefix string) string {
	return fmt.Sprintf("%s-%s", prefix, uuid.NewString())
}
