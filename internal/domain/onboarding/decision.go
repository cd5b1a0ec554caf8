package onboarding

import "github.com/riskibarqy/dashboard-bootstrap/internal/domain/profile"

// FlagState is the bootstrap view of the persisted onboarding_completed flag.
type FlagState int

const (
	// FlagAbsent means no profile record exists for the identity.
	FlagAbsent FlagState = iota
	FlagFalse
	FlagTrue
	// FlagUnavailable means the profile read failed.
	FlagUnavailable
)

func (f FlagState) String() string {
	switch f {
	case FlagAbsent:
		return "absent"
	case FlagFalse:
		return "false"
	case FlagTrue:
		return "true"
	case FlagUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

func FlagFromProfile(p profile.Profile, exists bool) FlagState {
	if !exists {
		return FlagAbsent
	}
	if p.OnboardingCompleted {
		return FlagTrue
	}
	return FlagFalse
}

// NeedsOnboarding is true only for a present identity whose flag is false or has no record.
// A failed profile read favours dashboard access over onboarding.
func NeedsOnboarding(identityPresent bool, flag FlagState) bool {
	if !identityPresent {
		return false
	}
	switch flag {
	case FlagFalse, FlagAbsent:
		return true
	default:
		return false
	}
}

type Outcome int

const (
	OutcomeRedirectToLogin Outcome = iota
	OutcomeDashboard
	OutcomeDashboardWithOnboarding
)

func (o Outcome) String() string {
	switch o {
	case OutcomeRedirectToLogin:
		return "redirect_to_login"
	case OutcomeDashboard:
		return "dashboard"
	case OutcomeDashboardWithOnboarding:
		return "dashboard_with_onboarding"
	default:
		return "unknown"
	}
}

// Decide maps the resolved session to what the dashboard route does.
func Decide(identityPresent bool, flag FlagState) Outcome {
	if !identityPresent {
		return OutcomeRedirectToLogin
	}
	if NeedsOnboarding(identityPresent, flag) {
		return OutcomeDashboardWithOnboarding
	}
	return OutcomeDashboard
}
