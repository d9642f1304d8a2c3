package usecase

import (
	"log"
	"sync"
	"time"

	"meanrev-backend/internal/domain"
	"meanrev-backend/internal/infrastructure/fcm"
	"meanrev-backend/internal/repository"
)

// NotificationService fans trade alerts out to registered devices.
// A per-title cooldown keeps a flapping symbol from spamming phones.
// Delivery failures are logged and swallowed: notifications never
// block or fail trading.
type NotificationService struct {
	fcm    *fcm.Client
	tokens *repository.TokenRepository

	cooldown time.Duration
	mu       sync.RWMutex
	lastSent map[string]time.Time

	now func() time.Time
}

func NewNotificationService(fcmClient *fcm.Client, tokens *repository.TokenRepository, cooldown time.Duration) *NotificationService {
	if cooldown <= 0 {
		cooldown = 5 * time.Minute
	}
	return &NotificationService{
		fcm:      fcmClient,
		tokens:   tokens,
		cooldown: cooldown,
		lastSent: make(map[string]time.Time),
		now:      time.Now,
	}
}

// Notify sends a push to every registered device unless the same title
// fired within the cooldown window.
func (s *NotificationService) Notify(title, body string, data map[string]string) {
	if s.fcm == nil || !s.fcm.IsEnabled() {
		return
	}
	if !s.shouldSend(title) {
		return
	}

	tokens := s.tokens.Tokens()
	if len(tokens) == 0 {
		return
	}

	if err := s.fcm.SendMulticast(tokens, title, body, data); err != nil {
		log.Printf("Error sending notification %q: %v", title, err)
		return
	}
	log.Printf("✓ Notification sent: %s", title)
}

func (s *NotificationService) shouldSend(title string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if last, ok := s.lastSent[title]; ok && now.Sub(last) < s.cooldown {
		return false
	}
	s.lastSent[title] = now
	return true
}

// compile-time check
var _ domain.Notifier = (*NotificationService)(nil)
