package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
	"github.com/staycare/booking-backend/internal/database"
	"github.com/staycare/booking-backend/internal/models"
	"github.com/staycare/booking-backend/pkg/validator"
)

// TTLCache holds one value until its TTL has passed
type TTLCache[T any] struct {
	mu        sync.Mutex
	ttl       time.Duration
	now       func() time.Time
	value     T
	fetchedAt time.Time
	valid     bool
}

// NewTTLCache creates a cache whose entries expire after ttl as measured by now
func NewTTLCache[T any](ttl time.Duration, now func() time.Time) *TTLCache[T] {
	if now == nil {
		now = time.Now
	}
	return &TTLCache[T]{ttl: ttl, now: now}
}

// Get returns the cached value if it is still fresh
func (c *TTLCache[T]) Get() (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.valid || c.now().Sub(c.fetchedAt) >= c.ttl {
		var zero T
		return zero, false
	}
	return c.value, true
}

// Set stores a freshly fetched value
func (c *TTLCache[T]) Set(value T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.value = value
	c.fetchedAt = c.now()
	c.valid = true
}

// Invalidate drops the cached value
func (c *TTLCache[T]) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.valid = false
}

// RecipientsLookup resolves the staff notification recipients from system settings
type RecipientsLookup struct {
	settings SettingStore
	cache    *TTLCache[[]string]
	fallback string
	emails   *validator.EmailValidator
	logger   *logrus.Logger
}

// NewRecipientsLookup creates a lookup reading through cache
func NewRecipientsLookup(settings SettingStore, cache *TTLCache[[]string], fallback string, logger *logrus.Logger) *RecipientsLookup {
	return &RecipientsLookup{
		settings: settings,
		cache:    cache,
		fallback: fallback,
		emails:   validator.NewEmailValidator(),
		logger:   logger,
	}
}

// Recipients returns the configured addresses, or the fallback address when none are set
func (l *RecipientsLookup) Recipients(ctx context.Context) ([]string, error) {
	if cached, ok := l.cache.Get(); ok {
		return cached, nil
	}

	raw := ""
	setting, err := l.settings.GetByKey(ctx, models.SettingNotificationRecipients)
	switch {
	case err == nil:
		raw = setting.SettingValue
	case errors.Is(err, database.ErrNotFound):
	default:
		return nil, fmt.Errorf("failed to load notification recipients: %w", err)
	}

	recipients := l.parseRecipients(raw)
	if len(recipients) == 0 && l.fallback != "" {
		recipients = []string{l.fallback}
	}

	l.cache.Set(recipients)
	return recipients, nil
}

// Invalidate forces the next lookup to read the setting again
func (l *RecipientsLookup) Invalidate() {
	l.cache.Invalidate()
}

func (l *RecipientsLookup) parseRecipients(raw string) []string {
	valid, invalid := l.emails.ValidateList(raw)
	if len(invalid) > 0 {
		rejected := lo.Keys(invalid)
		sort.Strings(rejected)
		l.logger.WithFields(logrus.Fields{
			"setting":  models.SettingNotificationRecipients,
			"rejected": rejected,
		}).Warn("Ignoring invalid notification recipients")
	}
	return lo.Uniq(valid)
}
