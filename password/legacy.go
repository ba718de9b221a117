package password

import "golang.org/x/crypto/bcrypt"

// Algorithm labels stored next to each credential hash. The label, not
// the hash prefix, decides which verifier runs.
const (
	AlgorithmArgon2id = "argon2id"
	AlgorithmBcrypt   = "bcrypt"
)

// verifyBcrypt checks password against a legacy bcrypt hash. bcrypt is
// verify-only here: new and rehashed credentials always get argon2id.
func verifyBcrypt(password, encodedHash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(encodedHash), []byte(password)) == nil
}
