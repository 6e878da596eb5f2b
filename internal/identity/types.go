package identity

import "time"

// Status is the activation state of an access key.
type Status string

const (
	StatusActive   Status = "ACTIVE"
	StatusInactive Status = "INACTIVE"
)

// AccessKey is one access key registered with the identity service.
// SecretKey is only populated on the create response; list responses
// never include secret material.
type AccessKey struct {
	ID        string `json:"id"`
	Name      string `json:"name,omitempty"`
	Status    Status `json:"status"`
	CreatedTs int64  `json:"createdTs,omitempty"`
	SecretKey string `json:"secretKey,omitempty"`
}

// Credential is the key pair a rotation acts on: the public id plus its
// secret, as read from or written to the secret store.
type Credential struct {
	AccessKeyID string
	SecretKey   string
}

// SessionTTL is how long the identity service honors a login token.
// The service does not return an expiry; this mirrors its documented
// ten minute token lifetime.
const SessionTTL = 10 * time.Minute

// Session is the ephemeral authentication context obtained by logging in
// with a credential. Never persisted; scoped to a single rotation run.
type Session struct {
	Token     string
	ExpiresAt time.Time
}

// Valid reports whether the session still has a usable token.
func (s Session) Valid() bool {
	return s.Token != "" && time.Now().Before(s.ExpiresAt)
}
