/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package sourcesession

import (
	"crypto/rand"
	"crypto/sha1" //nolint:gosec // required for wire compatibility with the MR.DJ challenge-response handshake, not for secret storage.
	"encoding/hex"
	"fmt"
)

// hashHex returns the SHA-1 hex digest of the UTF-8 bytes of s, exactly
// H(x) as defined by the handshake's response computation.
func hashHex(s string) string {
	sum := sha1.Sum([]byte(s)) //nolint:gosec
	return hex.EncodeToString(sum[:])
}

// computeResponse computes the Response value a client sends once it
// has both the server's salt and challenge: H(H(password‖salt)‖challenge).
//
// password here is whatever secret the two sides agreed to hash —
// plaintext on the client, the stored password hash on the server
// (see Credentials.PasswordHash) — the same chain either side of the
// wire.
func computeResponse(password, salt, challenge string) string {
	step1 := hashHex(password + salt)
	return hashHex(step1 + challenge)
}

// randomHex returns a random hex string of n bytes (2n hex characters),
// used to generate the server's salt and challenge. Grounded on the
// same crypto/rand + hex.EncodeToString pattern internal/live.Service
// uses to generate live-access tokens.
func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("sourcesession: generate random bytes: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
