package shared

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ClientManager issues the signed cookie that identifies a browser as one admin client.
// All auth state for the client lives in the token store keyed by the client ID.
type ClientManager struct {
	cookieName string
	ttl        time.Duration
	secure     bool
	secret     []byte
}

// Client is the per-request browser identity.
type Client struct {
	ID    string
	isNew bool
}

// NewClientManager constructs a ClientManager.
func NewClientManager(cookieName string, secret string, ttl time.Duration, secure bool) *ClientManager {
	return &ClientManager{
		cookieName: cookieName,
		ttl:        ttl,
		secure:     secure,
		secret:     []byte(secret),
	}
}

// Load resolves the client from the request cookie. A missing cookie yields a fresh client.
// A tampered cookie yields a fresh client together with ErrClientCookieInvalid.
func (cm *ClientManager) Load(r *http.Request) (*Client, error) {
	cookie, err := r.Cookie(cm.cookieName)
	if err != nil {
		if errors.Is(err, http.ErrNoCookie) {
			return cm.newClient(), nil
		}
		return nil, err
	}
	id, ok := cm.verify(cookie.Value)
	if !ok {
		return cm.newClient(), ErrClientCookieInvalid
	}
	return &Client{ID: id}, nil
}

// Commit writes the cookie for clients created during this request.
func (cm *ClientManager) Commit(w http.ResponseWriter, c *Client) {
	if c == nil || !c.isNew {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     cm.cookieName,
		Value:    cm.sign(c.ID),
		Path:     "/",
		HttpOnly: true,
		Secure:   cm.secure,
		SameSite: http.SameSiteStrictMode,
		Expires:  time.Now().Add(cm.ttl),
	})
	c.isNew = false
}

// CookieValue returns the signed cookie value for a client ID.
func (cm *ClientManager) CookieValue(id string) string {
	return cm.sign(id)
}

// CookieName returns the cookie identifier used for clients.
func (cm *ClientManager) CookieName() string {
	return cm.cookieName
}

// IsNew reports whether the client was minted during this request.
func (c *Client) IsNew() bool {
	return c != nil && c.isNew
}

func (cm *ClientManager) newClient() *Client {
	return &Client{ID: uuid.NewString(), isNew: true}
}

func (cm *ClientManager) sign(id string) string {
	return id + "." + base64.RawURLEncoding.EncodeToString(cm.mac(id))
}

func (cm *ClientManager) verify(value string) (string, bool) {
	id, sig, found := strings.Cut(value, ".")
	if !found || id == "" {
		return "", false
	}
	raw, err := base64.RawURLEncoding.DecodeString(sig)
	if err != nil {
		return "", false
	}
	if !hmac.Equal(raw, cm.mac(id)) {
		return "", false
	}
	return id, true
}

func (cm *ClientManager) mac(id string) []byte {
	mac := hmac.New(sha256.New, cm.secret)
	_, _ = mac.Write([]byte(id))
	return mac.Sum(nil)
}
