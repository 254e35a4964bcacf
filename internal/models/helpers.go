package models

import (
	"fmt"
	"strings"

	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// RecordIDString safely extracts the string ID from a SurrealDB RecordID.
// Returns an error if the ID is not a string type.
func RecordIDString(id surrealmodels.RecordID) (string, error) {
	s, ok := id.ID.(string)
	if !ok {
		return "", fmt.Errorf("unexpected ID type: %T (expected string)", id.ID)
	}
	return s, nil
}

// FindMode returns the first mode whose name matches name case-insensitively.
func FindMode(modes []Mode, name string) (*Mode, bool) {
	for i := range modes {
		if strings.EqualFold(modes[i].Name, name) {
			return &modes[i], true
		}
	}
	return nil, false
}
