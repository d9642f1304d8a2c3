package repository

import (
	"sync"
	"time"
)

// DeviceToken is one mobile device subscribed to trade alerts.
type DeviceToken struct {
	Token        string
	Platform     string // "android" or "ios"
	RegisteredAt time.Time
}

// TokenRepository holds alert subscriptions in memory. Devices
// re-register on every app start, so the set does not need to survive
// a restart.
type TokenRepository struct {
	mu     sync.RWMutex
	tokens map[string]DeviceToken
}

func NewTokenRepository() *TokenRepository {
	return &TokenRepository{
		tokens: make(map[string]DeviceToken),
	}
}

// Register adds a device or refreshes its registration timestamp.
func (r *TokenRepository) Register(token, platform string, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.tokens[token] = DeviceToken{Token: token, Platform: platform, RegisteredAt: at}
}

// Unregister drops a device. Unknown tokens are a no-op.
func (r *TokenRepository) Unregister(token string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.tokens, token)
}

// Tokens returns every registered token, for a multicast send.
func (r *TokenRepository) Tokens() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.tokens))
	for token := range r.tokens {
		out = append(out, token)
	}
	return out
}

// Count returns the number of subscribed devices.
func (r *TokenRepository) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.tokens)
}
