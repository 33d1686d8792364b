package storage

import (
	"context"
	"crypto/rand"
	"errors"
	"math/big"
	"strings"
	"time"

	"qr-code-tracker/connectivity"
	"qr-code-tracker/model"

	"github.com/rs/zerolog/log"
)

const (
	idMinLength = 8
	idMaxLength = 10
	maxRetries  = 5
	charset     = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789_"
)

var ErrMaxRetriesExceeded = errors.New("failed to generate unique record id after maximum retries")

// Tier names the storage backend that served an operation.
type Tier string

const (
	TierRemote Tier = "remote"
	TierLocal  Tier = "local"
)

// TieredStore unifies the remote authoritative store and the encrypted
// local store behind one interface. Every operation re-checks the
// connectivity signal; a flip between calls changes the active tier, and
// no operation falls back to the other tier mid-call.
type TieredStore struct {
	remote *RemoteStore
	local  *LocalStore
	signal connectivity.Signal
}

func NewTieredStore(remote *RemoteStore, local *LocalStore, signal connectivity.Signal) *TieredStore {
	return &TieredStore{remote: remote, local: local, signal: signal}
}

// Remote exposes the remote tier for the resolver and stats paths.
func (s *TieredStore) Remote() *RemoteStore { return s.remote }

// Local exposes the local tier for the resolver.
func (s *TieredStore) Local() *LocalStore { return s.local }

// ActiveTier reports which tier would serve an operation right now.
func (s *TieredStore) ActiveTier() Tier {
	if s.signal.Online() {
		return TierRemote
	}
	return TierLocal
}

// Create validates nothing; callers run the validator first. It assigns a
// URL-safe id, writes the record to exactly one tier, and returns which
// tier served the write so the caller can decide whether to embed a
// fallback payload in the shareable link.
func (s *TieredStore) Create(ctx context.Context, originalText, name, logoPath string) (*model.Record, Tier, error) {
	tier := s.ActiveTier()

	id, err := s.generateUniqueID(ctx, tier)
	if err != nil {
		return nil, tier, err
	}

	if logoPath == "" {
		logoPath = model.LogoNone
	}

	rec := &model.Record{
		ID:           id,
		Name:         strings.TrimSpace(name),
		OriginalText: strings.TrimSpace(originalText),
		LogoPath:     logoPath,
		ScanCount:    0,
		CreatedAt:    time.Now(),
	}

	if tier == TierRemote {
		err = s.remote.Put(ctx, rec)
	} else {
		err = s.local.Put(ctx, rec)
	}
	if err != nil {
		return nil, tier, err
	}

	log.Info().Str("id", id).Str("tier", string(tier)).Msg("Record created")
	return rec, tier, nil
}

// Get reads from the tier a write would currently go to. It deliberately
// does not search the other tier; that fallback chain belongs to the
// redirect resolver.
func (s *TieredStore) Get(ctx context.Context, id string) (*model.Record, error) {
	if s.ActiveTier() == TierRemote {
		return s.remote.Get(ctx, id)
	}
	return s.local.Get(ctx, id)
}

// IncrementScan bumps the scan counter on the active tier.
func (s *TieredStore) IncrementScan(ctx context.Context, id string, meta *model.ScanLog) error {
	if s.ActiveTier() == TierRemote {
		return s.remote.IncrementScan(ctx, id, meta)
	}
	return s.local.IncrementScan(ctx, id, meta)
}

// ListRecent returns up to limit records from the active tier, newest
// first.
func (s *TieredStore) ListRecent(ctx context.Context, limit int) ([]model.Record, error) {
	if s.ActiveTier() == TierRemote {
		return s.remote.ListRecent(ctx, limit)
	}
	return s.local.ListRecent(ctx, limit)
}

// Watch subscribes to record updates. Remote mode delivers a live stream;
// local mode degrades to a single snapshot callback.
func (s *TieredStore) Watch(ctx context.Context, id string, fn func(model.Record)) (func(), error) {
	if s.ActiveTier() == TierRemote {
		return s.remote.Watch(ctx, id, fn)
	}
	return s.local.Watch(ctx, id, fn)
}

// generateRandomString generates a cryptographically secure random string
func generateRandomString(length int) (string, error) {
	result := make([]byte, length)
	for i := range result {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		result[i] = charset[num.Int64()]
	}
	return string(result), nil
}

// generateUniqueID generates a record id with collision detection against
// the active tier. Ids are unique per tier only; cross-tier duplicates
// remain possible since tiers never check each other.
func (s *TieredStore) generateUniqueID(ctx context.Context, tier Tier) (string, error) {
	for attempt := 0; attempt < maxRetries; attempt++ {
		lengthRange := idMaxLength - idMinLength + 1
		randomOffset, err := rand.Int(rand.Reader, big.NewInt(int64(lengthRange)))
		if err != nil {
			return "", err
		}
		length := idMinLength + int(randomOffset.Int64())

		id, err := generateRandomString(length)
		if err != nil {
			return "", err
		}

		var exists bool
		if tier == TierRemote {
			exists, err = s.remote.Exists(ctx, id)
		} else {
			exists, err = s.local.Exists(ctx, id)
		}
		if err != nil {
			return "", err
		}
		if !exists {
			return id, nil
		}

		log.Warn().Str("id", id).Int("attempt", attempt+1).Msg("Collision detected, retrying")
	}

	return "", ErrMaxRetriesExceeded
}
