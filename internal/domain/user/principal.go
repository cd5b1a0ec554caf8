package user

// Principal is the identity resolved from a request credential.
type Principal struct {
	UserID string
	Email  string
}
