package domain

// AnonymousActor is the sentinel recorded when no authenticated identity is
// available for a mutation.
const AnonymousActor = "anonymous"

// Identity is the acting user resolved once at session establishment. It is
// either an authenticated account or the anonymous sentinel; change entries
// record its Actor() string.
type Identity struct {
	email string
}

// Anonymous returns the unauthenticated identity.
func Anonymous() Identity { return Identity{} }

// Authenticated builds an identity for the given account email. An empty
// email collapses to Anonymous.
func Authenticated(email string) Identity { return Identity{email: email} }

// IsAuthenticated reports whether the identity carries an account.
func (id Identity) IsAuthenticated() bool { return id.email != "" }

// Email returns the account email; empty for anonymous identities.
func (id Identity) Email() string { return id.email }

// Actor returns the attribution string written into change entries.
func (id Identity) Actor() string {
	if id.email == "" {
		return AnonymousActor
	}
	return id.email
}
