// Package resolver implements the ordered fallback chain a scan walks to
// find its record: remote tier, encrypted local tier, legacy local tier,
// then the payload embedded in the link itself. Sources are tried
// strictly in sequence; a failing source counts as a miss and never
// aborts the chain.
package resolver

import (
	"context"

	"qr-code-tracker/connectivity"
	"qr-code-tracker/model"
	"qr-code-tracker/storage"
	"qr-code-tracker/utils"

	"github.com/rs/zerolog/log"
)

// Source is one resolution strategy with a uniform found/miss result.
type Source interface {
	Name() string
	Resolve(ctx context.Context, id string) (*model.Record, bool, error)
}

// Resolver tries its sources in order; first hit wins.
type Resolver struct {
	sources []Source
}

func New(sources ...Source) *Resolver {
	return &Resolver{sources: sources}
}

// Resolve walks the chain. It returns the record, the name of the source
// that served it, and whether anything was found at all.
func (r *Resolver) Resolve(ctx context.Context, id string) (*model.Record, string, bool) {
	for _, src := range r.sources {
		rec, found, err := src.Resolve(ctx, id)
		if err != nil {
			log.Warn().Err(err).Str("source", src.Name()).Str("id", id).
				Msg("Resolution source failed, falling through")
			continue
		}
		if found {
			log.Debug().Str("source", src.Name()).Str("id", id).Msg("Record resolved")
			return rec, src.Name(), true
		}
	}
	return nil, "", false
}

type remoteSource struct {
	store  *storage.RemoteStore
	signal connectivity.Signal
}

// RemoteSource resolves against the authoritative tier, skipped entirely
// while connectivity reports offline.
func RemoteSource(store *storage.RemoteStore, signal connectivity.Signal) Source {
	return &remoteSource{store: store, signal: signal}
}

func (s *remoteSource) Name() string { return "remote" }

func (s *remoteSource) Resolve(ctx context.Context, id string) (*model.Record, bool, error) {
	if !s.signal.Online() {
		return nil, false, nil
	}
	rec, err := s.store.Get(ctx, id)
	if err == utils.ErrNotFound {
		return nil, false, nil
	} else if err != nil {
		return nil, false, err
	}
	return rec, true, nil
}

type encryptedSource struct {
	store *storage.LocalStore
}

// EncryptedSource resolves against the encrypted local tier only.
func EncryptedSource(store *storage.LocalStore) Source {
	return &encryptedSource{store: store}
}

func (s *encryptedSource) Name() string { return "encrypted-local" }

func (s *encryptedSource) Resolve(ctx context.Context, id string) (*model.Record, bool, error) {
	rec, err := s.store.GetEncrypted(ctx, id)
	if err == utils.ErrNotFound {
		return nil, false, nil
	} else if err != nil {
		return nil, false, err
	}
	return rec, true, nil
}

type legacySource struct {
	store *storage.LocalStore
}

// LegacySource resolves against pre-encryption plaintext slots, migrating
// any hit to encrypted storage as a side effect.
func LegacySource(store *storage.LocalStore) Source {
	return &legacySource{store: store}
}

func (s *legacySource) Name() string { return "legacy-local" }

func (s *legacySource) Resolve(ctx context.Context, id string) (*model.Record, bool, error) {
	rec, err := s.store.GetLegacy(ctx, id)
	if err == utils.ErrNotFound {
		return nil, false, nil
	} else if err != nil {
		return nil, false, err
	}
	return rec, true, nil
}

type payloadSource struct {
	data string
}

// PayloadSource reconstructs a minimal record from the base64 JSON blob
// the creator embedded in the link when the remote tier was unavailable.
// Last resort; scan count starts at zero.
func PayloadSource(data string) Source {
	return &payloadSource{data: data}
}

func (s *payloadSource) Name() string { return "embedded-payload" }

func (s *payloadSource) Resolve(ctx context.Context, id string) (*model.Record, bool, error) {
	if s.data == "" {
		return nil, false, nil
	}
	payload, err := model.DecodePayload(s.data)
	if err != nil {
		return nil, false, err
	}
	return payload.ToRecord(id), true, nil
}
