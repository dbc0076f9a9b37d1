package auth

import "time"

const (
	// KeyPrefixSession is the prefix for refresh session keys
	KeyPrefixSession = "satchel:session:"
	// KeyPrefixGrant is the prefix for parked CLI grant keys
	KeyPrefixGrant = "satchel:grant:"
	// KeyPrefixState is the prefix for OAuth state keys
	KeyPrefixState = "satchel:state:"
)

const (
	// GrantTTL bounds how long a CLI grant waits to be claimed.
	GrantTTL = 5 * time.Minute
	// StateTTL bounds how long an OAuth round trip may take.
	StateTTL = 10 * time.Minute
)

// SessionKey returns the Redis key for a refresh session token
func SessionKey(token string) string {
	return KeyPrefixSession + token
}

// GrantKey returns the Redis key for a parked CLI grant
func GrantKey(nonce string) string {
	return KeyPrefixGrant + nonce
}

// StateKey returns the Redis key for an in-flight OAuth state
func StateKey(state string) string {
	return KeyPrefixState + state
}
