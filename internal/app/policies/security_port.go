package policies

// PasswordHasher hashes credentials for guest accounts the importer
// provisions on the fly.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) error
}

// TokenGenerator produces opaque random strings (initial passwords,
// session tokens).
type TokenGenerator interface {
	NewToken() (string, error)
}
