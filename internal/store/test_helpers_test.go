package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/provq/provq/internal/orm"
)

// createTestStore creates a store on a fresh temporary database.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestUser inserts a user and returns its id.
func createTestUser(t *testing.T, s *Store, email string) int64 {
	t.Helper()
	id, err := s.InsertUser(context.Background(), orm.User{Email: email})
	if err != nil {
		t.Fatalf("InsertUser() failed: %v", err)
	}
	return id
}

// createTestNode inserts a minimal node owned by userID and returns
// its id.
func createTestNode(t *testing.T, s *Store, userID int64, nodeType, label string) int64 {
	t.Helper()
	id, err := s.InsertNode(context.Background(), orm.Node{
		NodeType: nodeType,
		Label:    label,
		UserID:   userID,
	})
	if err != nil {
		t.Fatalf("InsertNode() failed: %v", err)
	}
	return id
}
