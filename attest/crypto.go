package attest

import (
	"crypto/ed25519"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudflare/circl/sign/dilithium/mode3"
	"golang.org/x/crypto/sha3"
)

// Signature scheme for attested reports:
//
//	Signature-Alg: ed25519 | dilithium3
//	Hash-Alg:      sha256 | sha512 | sha3-256
//	Issuer-Key:    <alg>:<base64 public key>
//	Signature:     <base64 over hash(Signed)>
//
// The signed message is always the digest of the Signed scope, so both
// schemes cover identical bytes.

func digestFor(hashAlg string, message []byte) ([]byte, error) {
	switch hashAlg {
	case "sha256":
		s := sha256.Sum256(message)
		return s[:], nil
	case "sha512":
		s := sha512.Sum512(message)
		return s[:], nil
	case "sha3-256":
		s := sha3.Sum256(message)
		return s[:], nil
	default:
		return nil, fmt.Errorf("attest: unsupported Hash-Alg %q", hashAlg)
	}
}

// SignEd25519 fills doc.Crypto with an ed25519 signature over the
// document's signed scope and returns the final canonical bytes.
func SignEd25519(doc Document, hashAlg string, priv ed25519.PrivateKey) ([]byte, error) {
	pub, ok := priv.Public().(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("attest: invalid ed25519 private key")
	}
	return sign(doc, "ed25519", hashAlg,
		base64.StdEncoding.EncodeToString(pub),
		func(digest []byte) ([]byte, error) {
			return ed25519.Sign(priv, digest), nil
		})
}

// SignDilithium3 is the post-quantum variant of SignEd25519.
func SignDilithium3(doc Document, hashAlg string, priv *mode3.PrivateKey) ([]byte, error) {
	if priv == nil {
		return nil, errors.New("attest: missing dilithium3 private key")
	}
	pubBytes, err := priv.Public().(*mode3.PublicKey).MarshalBinary()
	if err != nil {
		return nil, err
	}
	return sign(doc, "dilithium3", hashAlg,
		base64.StdEncoding.EncodeToString(pubBytes),
		func(digest []byte) ([]byte, error) {
			sig := make([]byte, mode3.SignatureSize)
			mode3.SignTo(priv, digest, sig)
			return sig, nil
		})
}

func sign(doc Document, sigAlg, hashAlg, pubB64 string, signer func([]byte) ([]byte, error)) ([]byte, error) {
	if hashAlg == "" {
		hashAlg = "sha256"
	}
	if _, err := digestFor(hashAlg, nil); err != nil {
		return nil, err
	}

	// Render with a placeholder signature to fix the signed scope, then
	// substitute the real signature and re-render.
	doc.Crypto = map[string]string{
		"Hash-Alg":      hashAlg,
		"Issuer-Key":    sigAlg + ":" + pubB64,
		"Signature":     "0",
		"Signature-Alg": sigAlg,
	}
	pre, err := Render(doc)
	if err != nil {
		return nil, err
	}
	parsed, err := Parse(pre)
	if err != nil {
		return nil, err
	}
	digest, err := digestFor(hashAlg, parsed.Signed)
	if err != nil {
		return nil, err
	}
	sig, err := signer(digest)
	if err != nil {
		return nil, err
	}
	doc.Crypto["Signature"] = base64.StdEncoding.EncodeToString(sig)
	return Render(doc)
}

// Verify checks the attestation signature. The receiver's raw bytes are
// re-parsed first so canonicalization cannot be bypassed by a mutated
// in-memory document.
func (a *Attestation) Verify() error {
	if a == nil {
		return errors.New("attest: nil attestation")
	}
	parsed, err := Parse(a.Raw)
	if err != nil {
		return err
	}

	crypto := parsed.Doc.Crypto
	sigAlg := crypto["Signature-Alg"]
	hashAlg := crypto["Hash-Alg"]
	issuer := crypto["Issuer-Key"]
	sigB64 := crypto["Signature"]
	if sigAlg == "" || hashAlg == "" || issuer == "" || sigB64 == "" {
		return errors.New("attest: CRYPTO section incomplete")
	}

	issuerAlg, pubB64, ok := strings.Cut(issuer, ":")
	if !ok {
		return errors.New("attest: invalid Issuer-Key encoding")
	}
	if issuerAlg != sigAlg {
		return errors.New("attest: Issuer-Key alg does not match Signature-Alg")
	}
	pub, err := base64.StdEncoding.DecodeString(pubB64)
	if err != nil {
		return fmt.Errorf("attest: invalid issuer key base64: %w", err)
	}
	sig, err := base64.StdEncoding.DecodeString(sigB64)
	if err != nil {
		return fmt.Errorf("attest: invalid signature base64: %w", err)
	}
	digest, err := digestFor(hashAlg, parsed.Signed)
	if err != nil {
		return err
	}

	switch sigAlg {
	case "ed25519":
		if len(pub) != ed25519.PublicKeySize {
			return errors.New("attest: invalid ed25519 public key length")
		}
		if !ed25519.Verify(ed25519.PublicKey(pub), digest, sig) {
			return errors.New("attest: signature invalid")
		}
		return nil
	case "dilithium3":
		var pk mode3.PublicKey
		if err := pk.UnmarshalBinary(pub); err != nil {
			return fmt.Errorf("attest: invalid dilithium3 public key: %w", err)
		}
		if !mode3.Verify(&pk, digest, sig) {
			return errors.New("attest: signature invalid")
		}
		return nil
	default:
		return fmt.Errorf("attest: unsupported Signature-Alg %q", sigAlg)
	}
}
