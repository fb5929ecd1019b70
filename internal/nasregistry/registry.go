// Package nasregistry resolves RADIUS source IPs (and optional
// NAS-Identifier attributes) to a provisioned NASClient, fronted by a
// TTL cache that also caches negative results so a spoofed or
// unregistered source cannot be used to flood the persistent store
// with lookups.
package nasregistry

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/proisp/radiusd/internal/models"
	"github.com/proisp/radiusd/internal/radiuserr"
	"gorm.io/gorm"
)

const defaultTTL = 5 * time.Minute

// cacheEntry distinguishes "confirmed does not exist" from "not yet
// looked up" — a cache miss triggers a database query, a cached
// negative entry does not.
type cacheEntry struct {
	NotFound bool              `json:"not_found,omitempty"`
	NAS      *models.NASClient `json:"nas,omitempty"`
	// Secret carries NAS.SharedSecret, which NASClient's JSON
	// encoding omits.
	Secret string `json:"secret,omitempty"`
}

type Registry struct {
	db  *gorm.DB
	ttl time.Duration
}

func New(db *gorm.DB) *Registry {
	return &Registry{db: db, ttl: defaultTTL}
}

func cacheKey(ip, identifier string) string {
	return "radiusd:nas:" + ip + ":" + identifier
}

// Find resolves a NAS by source IP and, if present, NAS-Identifier.
//
// Matching policy: when identifier is non-empty, only the exact
// (ip, identifier, active) row is returned — a request is never
// authenticated under a different NAS's secret just because it shares
// an IP with one that happens to be active. When identifier is empty,
// the first active row for that IP wins.
func (r *Registry) Find(ctx context.Context, ip, identifier string) (*models.NASClient, error) {
	key := cacheKey(ip, identifier)

	var entry cacheEntry
	if err := cacheGet(key, &entry); err == nil {
		if entry.NotFound {
			return nil, radiuserr.ErrUnknownNAS
		}
		if entry.NAS != nil {
			entry.NAS.SharedSecret = entry.Secret
			return entry.NAS, nil
		}
	}

	nas, err := r.lookup(ctx, ip, identifier)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			r.cacheNegative(key)
			return nil, radiuserr.ErrUnknownNAS
		}
		return nil, err
	}

	r.cachePositive(key, nas)
	return nas, nil
}

func (r *Registry) lookup(ctx context.Context, ip, identifier string) (*models.NASClient, error) {
	var nas models.NASClient
	q := r.db.WithContext(ctx).Where("ip_address = ? AND is_active = ?", ip, true)
	if identifier != "" {
		q = q.Where("identifier = ?", identifier)
	} else {
		q = q.Order("id ASC")
	}
	if err := q.First(&nas).Error; err != nil {
		return nil, err
	}
	return &nas, nil
}

func (r *Registry) cachePositive(key string, nas *models.NASClient) {
	if err := cacheSet(key, cacheEntry{NAS: nas, Secret: nas.SharedSecret}, r.ttl); err != nil {
		log.Printf("nasregistry: cache set failed for %s: %v", key, err)
	}
}

func (r *Registry) cacheNegative(key string) {
	if err := cacheSet(key, cacheEntry{NotFound: true}, r.ttl); err != nil {
		log.Printf("nasregistry: negative cache set failed for %s: %v", key, err)
	}
}

// InvalidateAll drops every cached NAS lookup. Called by any write to
// the NASClient table before that write's transaction commits.
func (r *Registry) InvalidateAll() {
	if err := cacheDeletePattern("radiusd:nas:*"); err != nil {
		log.Printf("nasregistry: invalidate_all failed: %v", err)
	}
}
