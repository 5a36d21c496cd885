package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/aussiebroadwan/clientauth/internal/auth/domain"
	"github.com/aussiebroadwan/clientauth/internal/auth/store"
)

// PasswordCredentials checks passwords against the stored digest.
type PasswordCredentials struct {
	Store     store.Store
	Passwords PasswordHasher

	dummyOnce sync.Once
	dummy     string
}

func (c *PasswordCredentials) VerifyCredentials(ctx context.Context, email, password string) (domain.Account, error) {
	account, err := c.Store.Accounts().GetAccountByEmail(ctx, domain.NormalizeEmail(email))
	if errors.Is(err, store.ErrNotFound) {
		// Match the timing of a real check.
		c.burn(password)
		return domain.Account{}, domain.AuthenticationError(domain.MsgInvalidCredentials)
	}
	if err != nil {
		return domain.Account{}, fmt.Errorf("load account: %w", err)
	}

	ok, err := c.Passwords.Verify(password, account.PasswordHash)
	if err != nil {
		return domain.Account{}, fmt.Errorf("verify password: %w", err)
	}
	if !ok || account.Disabled {
		return domain.Account{}, domain.AuthenticationError(domain.MsgInvalidCredentials)
	}
	return account, nil
}

func (c *PasswordCredentials) burn(password string) {
	c.dummyOnce.Do(func() {
		c.dummy, _ = c.Passwords.Hash("clientauth-dummy-password")
	})
	if c.dummy != "" {
		_, _ = c.Passwords.Verify(password, c.dummy)
	}
}
