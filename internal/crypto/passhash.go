package crypto

import (
	"crypto/sha256"

	"golang.org/x/crypto/argon2"
)

// Argon2id parameters (tuned for server-side hashing).
const (
	argonTime    uint32 = 3         // iterations
	argonMemory  uint32 = 64 * 1024 // 64 MB
	argonThreads uint8  = 1
	argonKeyLen  uint32 = 64
)

// argonSalt returns the salt for a normalized username. It is derived rather
// than random so the resulting hash stays a pure function of its inputs.
func argonSalt(username string) []byte {
	sum := sha256.Sum256([]byte(username + saltSeparator))
	return sum[:]
}

// hashArgon2id returns the Argon2id key of password salted with the username.
func hashArgon2id(username, password string) []byte {
	return argon2.IDKey([]byte(password), argonSalt(username), argonTime, argonMemory, argonThreads, argonKeyLen)
}
