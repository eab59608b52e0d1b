// Package store holds ProgressStore implementations. Every store keeps one
// whole progress.Snapshot document per user and overwrites it on Persist.
package store

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/studyquest/backend/internal/progress"
)

// ErrNotFound is returned by Fetch when the user has no stored snapshot.
var ErrNotFound = errors.New("progress not found")

// Encode validates s and marshals it as the stored document.
func Encode(s *progress.Snapshot) ([]byte, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshaling snapshot: %w", err)
	}
	return data, nil
}

// Decode parses a stored document, fills defaults and validates it.
func Decode(data []byte) (*progress.Snapshot, error) {
	var s progress.Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("%w: %v", progress.ErrInvalidSnapshot, err)
	}
	s.Normalize()
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}
