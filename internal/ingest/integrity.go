package ingest

import (
	"crypto/ed25519"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"

	"terrasync/internal/container"
)

// IntegrityResult is the outcome of verifying an uploaded container before
// any of its content is trusted.
type IntegrityResult struct {
	ChecksumOK       bool
	SignaturePresent bool
	SignatureValid   bool
	SchemaSupported  bool
	Issues           []string
}

// OK reports whether the package may proceed. A missing signature is
// acceptable; a present-but-invalid one is not.
func (r IntegrityResult) OK() bool {
	if !r.ChecksumOK || !r.SchemaSupported {
		return false
	}
	if r.SignaturePresent && !r.SignatureValid {
		return false
	}
	return true
}

// Verifier checks checksum, signature and schema version of raw uploads.
type Verifier struct {
	codec *container.Codec
	// publicKey verifies device signatures; nil disables signature checks
	// entirely, treating every signature as untrusted decoration.
	publicKey ed25519.PublicKey
}

func NewVerifier(codec *container.Codec, publicKey ed25519.PublicKey) *Verifier {
	return &Verifier{codec: codec, publicKey: publicKey}
}

// Verify runs every check and reports all failures at once, so a rejected
// upload tells the operator everything wrong with it.
func (v *Verifier) Verify(manifest *container.Manifest, payload []byte) IntegrityResult {
	var result IntegrityResult

	sum := sha256.Sum256(payload)
	declared, err := hex.DecodeString(manifest.Checksum)
	switch {
	case err != nil || len(declared) != sha256.Size:
		result.Issues = append(result.Issues,
			fmt.Sprintf("checksum %q is not a hex SHA-256 digest", manifest.Checksum))
	case subtle.ConstantTimeCompare(sum[:], declared) != 1:
		result.Issues = append(result.Issues, "checksum does not match payload")
	default:
		result.ChecksumOK = true
	}

	if manifest.Signature != "" {
		result.SignaturePresent = true
		sig, err := base64.StdEncoding.DecodeString(manifest.Signature)
		switch {
		case err != nil || len(sig) != ed25519.SignatureSize:
			result.Issues = append(result.Issues, "signature is not a base64 Ed25519 signature")
		case v.publicKey == nil:
			result.Issues = append(result.Issues, "no signing key configured to verify signature")
		case !ed25519.Verify(v.publicKey, payload, sig):
			result.Issues = append(result.Issues, "signature verification failed")
		default:
			result.SignatureValid = true
		}
	}

	if v.codec.Supports(manifest.SchemaVersion) {
		result.SchemaSupported = true
	} else {
		result.Issues = append(result.Issues,
			fmt.Sprintf("container schema version %q is not supported", manifest.SchemaVersion))
	}
	return result
}
