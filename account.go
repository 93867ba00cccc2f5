package volt

import (
	"context"
	"net/http"
)

// GetBalance returns the current account balance. Balances are never cached.
func (c *Client) GetBalance(ctx context.Context) (*Balance, error) {
	var b Balance
	if err := c.do(ctx, http.MethodGet, "/user/balance", nil, nil, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

// GetAccount returns the authenticated account.
func (c *Client) GetAccount(ctx context.Context) (*Account, error) {
	var a Account
	if err := c.do(ctx, http.MethodGet, "/account", nil, nil, &a); err != nil {
		return nil, err
	}
	return &a, nil
}
