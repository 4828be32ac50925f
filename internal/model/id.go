package model

import (
	"strings"

	"github.com/google/uuid"
)

// NewID returns a random dashless UUID, the id format used for every record.
func NewID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
