//go:build !darwin

package permissions

import "testing"

func TestEnsurePermissionsNoop(t *testing.T) {
	if err := EnsurePermissions(); err != nil {
		t.Errorf("expected no error off macOS, got %v", err)
	}
}
