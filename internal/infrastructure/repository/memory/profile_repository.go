package memory

import (
	"context"
	"strings"
	"sync"

	"github.com/riskibarqy/dashboard-bootstrap/internal/domain/profile"
)

// ProfileRepository keeps profiles in process. Read and write failures can be injected
// to exercise degraded paths.
type ProfileRepository struct {
	mu       sync.RWMutex
	profiles map[string]profile.Profile
	readErr  error
	writeErr error
	reads    int
	writes   int
}

func NewProfileRepository(seed []profile.Profile) *ProfileRepository {
	profiles := make(map[string]profile.Profile, len(seed))
	for _, item := range seed {
		userID := strings.TrimSpace(item.UserID)
		if userID == "" {
			continue
		}
		item.UserID = userID
		profiles[userID] = item
	}

	return &ProfileRepository{profiles: profiles}
}

func (r *ProfileRepository) GetByUserID(_ context.Context, userID string) (profile.Profile, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.reads++
	if r.readErr != nil {
		return profile.Profile{}, false, r.readErr
	}
	item, ok := r.profiles[strings.TrimSpace(userID)]
	return item, ok, nil
}

func (r *ProfileRepository) MarkOnboardingCompleted(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.writes++
	if r.writeErr != nil {
		return r.writeErr
	}
	userID = strings.TrimSpace(userID)
	r.profiles[userID] = profile.Profile{UserID: userID, OnboardingCompleted: true}
	return nil
}

func (r *ProfileRepository) FailReads(err error) {
	r.mu.Lock()
	r.readErr = err
	r.mu.Unlock()
}

func (r *ProfileRepository) FailWrites(err error) {
	r.mu.Lock()
	r.writeErr = err
	r.mu.Unlock()
}

func (r *ProfileRepository) Reads() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.reads
}

func (r *ProfileRepository) Writes() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.writes
}
