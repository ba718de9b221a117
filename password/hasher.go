package password

// Hasher is the versioned front-end over the supported hash algorithms.
// It hashes with the current algorithm (argon2id) and verifies both the
// current and the legacy tier (bcrypt), reporting when a stored hash
// should be replaced.
type Hasher struct {
	argon *Argon2
}

// VerifyResult is the outcome of a verification attempt. When Valid and
// NeedsRehash are both set, NewHash/NewAlgorithm carry a replacement
// credential the caller should persist.
type VerifyResult struct {
	Valid        bool
	NeedsRehash  bool
	NewHash      string
	NewAlgorithm string
}

// NewHasher builds a Hasher from the argon2id cost configuration.
func NewHasher(cfg Config) (*Hasher, error) {
	argon, err := NewArgon2(cfg)
	if err != nil {
		return nil, err
	}

	return &Hasher{argon: argon}, nil
}

// Hash hashes password with the current algorithm and returns the hash
// together with its algorithm label.
func (h *Hasher) Hash(password string) (hash string, algorithm string, err error) {
	hash, err = h.argon.Hash(password)
	if err != nil {
		return "", "", err
	}

	return hash, AlgorithmArgon2id, nil
}

// Verify checks password against the stored hash under the named
// algorithm. It never returns an error: malformed hashes, unknown
// algorithms, and internal failures all come back as Valid=false, so
// a corrupt credential row reads as a failed login, not a 500.
//
// On a valid bcrypt match, or a valid argon2id match whose stored cost
// parameters lag the configured ones, the result carries a fresh
// argon2id replacement hash.
func (h *Hasher) Verify(password, storedHash, algorithm string) VerifyResult {
	switch algorithm {
	case AlgorithmArgon2id:
		ok, err := h.argon.Verify(password, storedHash)
		if err != nil || !ok {
			return VerifyResult{}
		}

		upgrade, err := h.argon.NeedsUpgrade(storedHash)
		if err != nil || !upgrade {
			return VerifyResult{Valid: true}
		}

		return h.rehash(password)

	case AlgorithmBcrypt:
		if !verifyBcrypt(password, storedHash) {
			return VerifyResult{}
		}

		return h.rehash(password)

	default:
		return VerifyResult{}
	}
}

func (h *Hasher) rehash(password string) VerifyResult {
	newHash, err := h.argon.Hash(password)
	if err != nil {
		// The credential is valid; losing the upgrade is acceptable.
		return VerifyResult{Valid: true}
	}

	return VerifyResult{
		Valid:        true,
		NeedsRehash:  true,
		NewHash:      newHash,
		NewAlgorithm: AlgorithmArgon2id,
	}
}
