package utils

import (
	"strings"

	"github.com/google/uuid"
)

const tempIDPrefix = "tmp-"

// NewTempID returns a placeholder id for a message the server has not stored yet.
func NewTempID() string {
	return tempIDPrefix + uuid.NewString()
}

// IsTempID reports whether id was produced by NewTempID.
func IsTempID(id string) bool {
	return strings.HasPrefix(id, tempIDPrefix)
}
