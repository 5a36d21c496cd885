package jwtx

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/aussiebroadwan/clientauth/pkg/cryptox"
)

const (
	defaultNumKeys = 3
	maxNumKeys     = 10
)

// KeyManagerOptions configures NewEphemeralKeyManager.
type KeyManagerOptions struct {
	// Algorithm is AlgorithmEdDSA or AlgorithmES256.
	Algorithm string

	Issuer   string
	Audience []string
	Leeway   time.Duration

	// NumKeys defaults to 3 and is capped at 10.
	NumKeys int

	// Now is passed to the verifier, defaults to time.Now.
	Now func() time.Time
}

// KeyManager owns a pool of in-memory signing keys and the verifier for them.
// Keys never leave the process, so tokens do not survive a restart.
type KeyManager struct {
	algorithm string
	signers   []Signer
	keys      *KeySet
	verifier  *Verifier
}

func NewEphemeralKeyManager(opts KeyManagerOptions) (*KeyManager, error) {
	if opts.Issuer == "" {
		return nil, fmt.Errorf("jwtx: issuer is required")
	}

	n := opts.NumKeys
	if n <= 0 {
		n = defaultNumKeys
	}
	n = min(n, maxNumKeys)

	keys := NewKeySet()
	signers := make([]Signer, 0, n)

	for i := range n {
		kid, err := cryptox.GenerateToken(cryptox.TokenSize128)
		if err != nil {
			return nil, fmt.Errorf("jwtx: key id: %w", err)
		}

		signer, err := generateSigner(opts.Algorithm, "clientauth-"+kid)
		if err != nil {
			return nil, fmt.Errorf("jwtx: signer %d: %w", i+1, err)
		}
		if err := keys.Add(signer.KID(), signer.Public()); err != nil {
			return nil, err
		}
		signers = append(signers, signer)
	}

	return &KeyManager{
		algorithm: opts.Algorithm,
		signers:   signers,
		keys:      keys,
		verifier: NewVerifier(keys, opts.Algorithm, VerifyOptions{
			Issuer:   opts.Issuer,
			Audience: opts.Audience,
			Leeway:   opts.Leeway,
			Now:      opts.Now,
		}),
	}, nil
}

func generateSigner(alg, kid string) (Signer, error) {
	var (
		pemKey []byte
		err    error
	)
	switch alg {
	case AlgorithmEdDSA:
		pemKey, err = cryptox.GenerateEd25519Key()
	case AlgorithmES256:
		pemKey, err = cryptox.GenerateES256Key()
	default:
		return nil, fmt.Errorf("unsupported algorithm %q (supported: EdDSA, ES256)", alg)
	}
	if err != nil {
		return nil, err
	}
	return NewSigner(alg, kid, pemKey)
}

func (km *KeyManager) Algorithm() string   { return km.algorithm }
func (km *KeyManager) NumSigners() int     { return len(km.signers) }
func (km *KeyManager) IsReady() bool       { return km.keys.IsReady() }
func (km *KeyManager) Verifier() *Verifier { return km.verifier }

// Signer picks one of the signing keys at random.
func (km *KeyManager) Signer() Signer {
	return km.signers[rand.IntN(len(km.signers))]
}
