package storage

import (
	"context"
	"time"

	"qr-code-tracker/model"
	"qr-code-tracker/utils"
	"qr-code-tracker/vault"

	"github.com/rs/zerolog/log"
)

const (
	recordSlotPrefix = "record_"
	localIndexSlot   = "record_index"
	localIndexMax    = 500

	// Delay before the one-shot local watch callback fires; simulates a
	// snapshot, not a stream.
	localWatchDelay = 10 * time.Millisecond
)

// LocalStore is the encrypted fallback tier, backed by the crypto vault.
// Single-profile scope: no concurrent-writer protection is needed on
// read-modify-write cycles.
type LocalStore struct {
	vault *vault.Vault
}

func NewLocalStore(v *vault.Vault) *LocalStore {
	return &LocalStore{vault: v}
}

func recordSlot(id string) string { return recordSlotPrefix + id }

// Put stores a record and prepends its id to the local index.
func (s *LocalStore) Put(ctx context.Context, rec *model.Record) error {
	if err := s.vault.SetItem(recordSlot(rec.ID), rec); err != nil {
		return err
	}

	var ids []string
	if _, err := s.vault.GetItem(localIndexSlot, &ids); err != nil {
		log.Warn().Err(err).Msg("Failed to read local record index")
	}
	ids = append([]string{rec.ID}, ids...)
	if len(ids) > localIndexMax {
		ids = ids[:localIndexMax]
	}
	if err := s.vault.SetItem(localIndexSlot, ids); err != nil {
		log.Warn().Err(err).Str("id", rec.ID).Msg("Failed to index record locally")
	}
	return nil
}

// Get reads a record through the full vault semantics (encrypted slot
// first, then legacy migration).
func (s *LocalStore) Get(ctx context.Context, id string) (*model.Record, error) {
	var rec model.Record
	found, err := s.vault.GetItem(recordSlot(id), &rec)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, utils.ErrNotFound
	}
	return &rec, nil
}

// GetEncrypted reads only the encrypted slot; the resolver uses it as its
// second tier.
func (s *LocalStore) GetEncrypted(ctx context.Context, id string) (*model.Record, error) {
	var rec model.Record
	found, err := s.vault.GetItemEncrypted(recordSlot(id), &rec)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, utils.ErrNotFound
	}
	return &rec, nil
}

// GetLegacy reads only the legacy plaintext slot, migrating on a hit; the
// resolver uses it as its third tier.
func (s *LocalStore) GetLegacy(ctx context.Context, id string) (*model.Record, error) {
	var rec model.Record
	found, err := s.vault.GetItemLegacy(recordSlot(id), &rec)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, utils.ErrNotFound
	}
	return &rec, nil
}

// Exists reports whether a record id is taken locally.
func (s *LocalStore) Exists(ctx context.Context, id string) (bool, error) {
	_, err := s.Get(ctx, id)
	if err == utils.ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// IncrementScan is a plain read-modify-write; last write wins within the
// single-profile scope.
func (s *LocalStore) IncrementScan(ctx context.Context, id string, meta *model.ScanLog) error {
	rec, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	now := time.Now()
	rec.ScanCount++
	rec.LastScanned = &now

	return s.vault.SetItem(recordSlot(id), rec)
}

// ListRecent walks the local index, newest first, skipping ids whose
// slots have gone missing.
func (s *LocalStore) ListRecent(ctx context.Context, limit int) ([]model.Record, error) {
	var ids []string
	if _, err := s.vault.GetItem(localIndexSlot, &ids); err != nil {
		return nil, err
	}

	records := make([]model.Record, 0, limit)
	for _, id := range ids {
		if len(records) >= limit {
			break
		}
		rec, err := s.Get(ctx, id)
		if err == utils.ErrNotFound {
			continue
		} else if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, nil
}

// Watch degrades to a one-shot asynchronous snapshot callback: fn fires
// once, shortly after subscribing, with the current record state. Callers
// must not assume continuous updates outside remote mode.
func (s *LocalStore) Watch(ctx context.Context, id string, fn func(model.Record)) (func(), error) {
	timer := time.AfterFunc(localWatchDelay, func() {
		rec, err := s.Get(ctx, id)
		if err != nil {
			log.Debug().Err(err).Str("id", id).Msg("Local watch snapshot miss")
			return
		}
		fn(*rec)
	})

	return func() { timer.Stop() }, nil
}
