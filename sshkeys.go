package volt

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	oaierrors "github.com/go-openapi/errors"
	"github.com/go-openapi/validate"
)

var sshKeyPrefixes = []string{"ssh-", "ecdsa-"}

type addSSHKeyPayload struct {
	Name      string `json:"name"`
	PublicKey string `json:"publicKey"`
}

// ListSSHKeys returns the SSH keys registered with the account.
func (c *Client) ListSSHKeys(ctx context.Context) ([]SSHKey, error) {
	return collect(paginate[SSHKey](c, ctx, "/volt/ssh-keys", nil, "sshKeys"))
}

// AddSSHKey registers a public key. The key must be in OpenSSH format
// ("ssh-ed25519 AAAA...", "ecdsa-sha2-nistp256 AAAA...").
func (c *Client) AddSSHKey(ctx context.Context, name, publicKey string) (*SSHKey, error) {
	publicKey = strings.TrimSpace(publicKey)
	results := []*oaierrors.Validation{
		validate.RequiredString("name", "body", name),
		validate.RequiredString("publicKey", "body", publicKey),
	}
	if publicKey != "" && !hasSSHKeyPrefix(publicKey) {
		results = append(results, oaierrors.FailedPattern("publicKey", "body", "^(ssh-|ecdsa-)", publicKey))
	}
	if err := checkRequest(results...); err != nil {
		return nil, err
	}

	var key SSHKey
	payload := addSSHKeyPayload{Name: name, PublicKey: publicKey}
	if err := c.do(ctx, http.MethodPost, "/volt/ssh-keys", nil, payload, &key); err != nil {
		return nil, err
	}
	return &key, nil
}

// DeleteSSHKey removes a key. Deleting a key that no longer exists returns
// a NOT_FOUND error.
func (c *Client) DeleteSSHKey(ctx context.Context, id string) error {
	if err := requireID("keyId", id); err != nil {
		return err
	}
	return c.do(ctx, http.MethodDelete, "/volt/ssh-keys/"+url.PathEscape(id), nil, nil, nil)
}

func hasSSHKeyPrefix(key string) bool {
	for _, p := range sshKeyPrefixes {
		if strings.HasPrefix(key, p) {
			return true
		}
	}
	return false
}
