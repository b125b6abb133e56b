package store

const credentialKey = "jwt"

// Credentials holds the access token issued on identity submission. The
// realtime channel and the HTTP client both read it through Token.
type Credentials struct {
	kv KV
}

// NewCredentials wraps a KV as a credential store.
func NewCredentials(kv KV) *Credentials {
	return &Credentials{kv: kv}
}

// Token returns the stored access token, ok=false when none was issued yet.
func (c *Credentials) Token() (string, bool) {
	tok, ok := c.kv.Get(credentialKey)
	if !ok || tok == "" {
		return "", false
	}
	return tok, true
}

// SetToken stores a freshly issued access token.
func (c *Credentials) SetToken(token string) error {
	return c.kv.Set(credentialKey, token)
}
