// Package password implements credential hashing with a two-tier
// algorithm scheme: argon2id is the current tier, bcrypt the legacy
// tier that existing credentials migrate away from on successful login.
//
// # Output format
//
// Current-tier hashes are encoded in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// Every stored credential pairs a hash with an algorithm label; the
// label decides which verifier runs. [Hasher.Verify] reports when the
// stored hash should be replaced, either because it is bcrypt or
// because its argon2id cost parameters lag the configured ones, and
// hands back the replacement hash so the caller can persist it.
//
// # Architecture boundaries
//
// This package owns hashing, verification, and composition policy.
// Persistence, lockout, and reuse checks belong to the engine.
//
// # What this package must NOT do
//
//   - Store or retrieve credentials; callers supply plaintext and
//     receive hashes.
//   - Import any other tenantauth package.
//   - Log plaintext passwords or hashes.
package password
