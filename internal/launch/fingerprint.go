package launch

import (
	"encoding/hex"
	"encoding/json"

	"github.com/zeebo/blake3"

	"github.com/Iron-Ham/panedrive/internal/errors"
)

// domainKey is a 32-byte BLAKE3 key: an ASCII domain name, zero-padded.
type domainKey [32]byte

var fingerprintDomainKey = domainKey{
	'p', 'a', 'n', 'e', 'd', 'r', 'i', 'v', 'e', '.', 'l', 'a', 'u', 'n', 'c', 'h',
	'.', 'f', 'i', 'n', 'g', 'e', 'r', 'p', 'r', 'i', 'n', 't', 0, 0, 0, 0,
}

// Fingerprint hashes the canonical JSON form of a normalized request. The
// request id is left out so that two calls under one id can be compared.
func Fingerprint(req Request) (string, error) {
	req.RequestID = ""
	if req.Options == nil {
		req.Options = []string{}
	}
	data, err := json.Marshal(req)
	if err != nil {
		return "", errors.Internal("failed to encode launch request", err)
	}
	hasher, err := blake3.NewKeyed(fingerprintDomainKey[:])
	if err != nil {
		return "", errors.Internal("failed to create fingerprint hasher", err)
	}
	_, _ = hasher.Write(data)
	return hex.EncodeToString(hasher.Sum(nil)), nil
}
