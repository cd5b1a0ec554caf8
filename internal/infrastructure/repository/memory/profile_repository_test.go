package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/riskibarqy/dashboard-bootstrap/internal/domain/profile"
)

func TestProfileRepository_SeedAndMark(t *testing.T) {
	repo := NewProfileRepository([]profile.Profile{
		{UserID: " user-1 ", OnboardingCompleted: false},
		{UserID: ""},
	})
	ctx := context.Background()

	got, exists, err := repo.GetByUserID(ctx, "user-1")
	if err != nil || !exists {
		t.Fatalf("expected seeded profile, exists=%v err=%v", exists, err)
	}
	if got.OnboardingCompleted {
		t.Fatalf("seeded flag must be false")
	}

	if err := repo.MarkOnboardingCompleted(ctx, "user-2"); err != nil {
		t.Fatalf("mark completed: %v", err)
	}
	got, exists, _ = repo.GetByUserID(ctx, "user-2")
	if !exists || !got.OnboardingCompleted {
		t.Fatalf("expected upserted completed profile, got %+v exists=%v", got, exists)
	}
	if repo.Reads() != 2 || repo.Writes() != 1 {
		t.Fatalf("unexpected counters reads=%d writes=%d", repo.Reads(), repo.Writes())
	}
}

func TestProfileRepository_InjectedFailures(t *testing.T) {
	repo := NewProfileRepository(nil)
	readErr := errors.New("read down")
	writeErr := errors.New("write down")
	repo.FailReads(readErr)
	repo.FailWrites(writeErr)

	if _, _, err := repo.GetByUserID(context.Background(), "u"); !errors.Is(err, readErr) {
		t.Fatalf("expected injected read error, got %v", err)
	}
	if err := repo.MarkOnboardingCompleted(context.Background(), "u"); !errors.Is(err, writeErr) {
		t.Fatalf("expected injected write error, got %v", err)
	}

	repo.FailReads(nil)
	if _, exists, err := repo.GetByUserID(context.Background(), "u"); err != nil || exists {
		t.Fatalf("failed write must not create a row, exists=%v err=%v", exists, err)
	}
}
