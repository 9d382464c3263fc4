package utils

import "github.com/google/uuid"

// GenerateID returns a new opaque report identifier.
func GenerateID() string {
	return uuid.NewString()
}
