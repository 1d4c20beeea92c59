package redis

const (
	// KeyPrefixRecomputeLock guards a user's score recomputation
	KeyPrefixRecomputeLock = "stash:recompute:lock:"
	// KeyPrefixRecomputeRun holds the last recomputation summary of a user
	KeyPrefixRecomputeRun = "stash:recompute:run:"
	// KeyRecomputedUsers is the set of users with a recorded run
	KeyRecomputedUsers = "stash:recompute:users"
)

// RecomputeLockKey returns the throttle key for a user
func RecomputeLockKey(user string) string {
	return KeyPrefixRecomputeLock + user
}

// RecomputeRunKey returns the key holding a user's last run
func RecomputeRunKey(user string) string {
	return KeyPrefixRecomputeRun + user
}

// RecomputedUsersKey returns the key of the set of users with a run
func RecomputedUsersKey() string {
	return KeyRecomputedUsers
}
