package installer

import (
	"context"
	"errors"
	"testing"
)

func TestInstallWithoutRequirementsFile(t *testing.T) {
	i := New(t.TempDir(), nil)
	err := i.Install(context.Background())
	if !errors.Is(err, ErrNoRequirements) {
		t.Fatalf("want ErrNoRequirements, got %v", err)
	}
}
