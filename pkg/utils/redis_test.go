package utils

import (
	"context"
	"testing"
)

func TestRunLockScriptCompiles(t *testing.T) {
	// Compile-time smoke test: script should be initialized.
	if runLockReleaseScript == nil {
		t.Fatalf("expected script to be initialized")
	}
}

func TestAcquireRunLockRejectsBadInput(t *testing.T) {
	if _, err := AcquireRunLock(context.Background(), nil, "", "", 0); err == nil {
		t.Fatalf("expected error for nil client")
	}
}
