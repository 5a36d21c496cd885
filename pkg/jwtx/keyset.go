package jwtx

import (
	"crypto"
	"errors"
	"fmt"
	"sync"
)

var ErrNoKey = errors.New("jwtx: key not found")

// KeySet maps key IDs to public verification keys. Safe for concurrent use.
type KeySet struct {
	mu  sync.RWMutex
	pub map[string]crypto.PublicKey
}

func NewKeySet() *KeySet {
	return &KeySet{pub: make(map[string]crypto.PublicKey)}
}

// Add registers pub under kid. Re-using a kid is an error.
func (k *KeySet) Add(kid string, pub crypto.PublicKey) error {
	if kid == "" || pub == nil {
		return errors.New("jwtx: kid and key are required")
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	if _, ok := k.pub[kid]; ok {
		return fmt.Errorf("jwtx: duplicate kid %q", kid)
	}
	k.pub[kid] = pub
	return nil
}

func (k *KeySet) Get(kid string) (crypto.PublicKey, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()

	if pk, ok := k.pub[kid]; ok {
		return pk, nil
	}
	return nil, ErrNoKey
}

func (k *KeySet) Len() int {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return len(k.pub)
}

func (k *KeySet) IsReady() bool { return k.Len() > 0 }
