package utils

import (
	"strings"

	"github.com/google/uuid"
)

// NewRequestID returns a compact random id for access logs.
func NewRequestID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
