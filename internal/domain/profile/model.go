package profile

// Profile is the slice of the persisted user profile this service reads and writes.
type Profile struct {
	UserID              string
	OnboardingCompleted bool
}
