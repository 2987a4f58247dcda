package idkey_test

import (
	"testing"

	"github.com/google/uuid"

	"tillpoint/internal/idkey"
)

func TestNewReturnsParsableUUID(t *testing.T) {
	k := idkey.New()
	if _, err := uuid.Parse(k); err != nil {
		t.Fatalf("key %q is not a UUID: %v", k, err)
	}
}

func TestNewIsUnique(t *testing.T) {
	seen := map[string]struct{}{}
	for i := 0; i < 1000; i++ {
		k := idkey.New()
		if _, dup := seen[k]; dup {
			t.Fatalf("duplicate key after %d iterations: %s", i, k)
		}
		seen[k] = struct{}{}
	}
}
