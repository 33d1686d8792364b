package storage

import (
	"context"
	"encoding/json"
	"time"

	"qr-code-tracker/model"
	"qr-code-tracker/utils"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog/log"
)

const (
	recordKeyPrefix     = "record:"
	recentIDsKey        = "records:recent"
	scanLogKeyPrefix    = "scans:"
	updateChannelPrefix = "records:updates:"

	recentListMax       = 500
	maxIncrementRetries = 5
)

// RemoteStore is the authoritative tier, backed by Redis. Concurrent scan
// increments from multiple devices serialize through an optimistic
// WATCH/MULTI retry loop.
type RemoteStore struct {
	rdb          *redis.Client
	scanLogLimit int64
}

func NewRemoteStore(rdb *redis.Client, scanLogLimit int) *RemoteStore {
	if scanLogLimit <= 0 {
		scanLogLimit = 100
	}
	return &RemoteStore{rdb: rdb, scanLogLimit: int64(scanLogLimit)}
}

func recordKey(id string) string { return recordKeyPrefix + id }

// Put stores a record, pushes its id onto the recent list, and publishes
// the new state to watchers.
func (s *RemoteStore) Put(ctx context.Context, rec *model.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return &utils.StorageError{Tier: "remote", Op: "marshal", Err: err}
	}

	if err := s.rdb.Set(ctx, recordKey(rec.ID), data, 0).Err(); err != nil {
		return &utils.StorageError{Tier: "remote", Op: "set", Err: err}
	}

	if err := s.rdb.LPush(ctx, recentIDsKey, rec.ID).Err(); err != nil {
		log.Error().Err(err).Str("id", rec.ID).Msg("Failed to index record in recent list")
	} else if err := s.rdb.LTrim(ctx, recentIDsKey, 0, recentListMax-1).Err(); err != nil {
		log.Error().Err(err).Msg("Failed to trim recent list")
	}

	s.publish(ctx, rec)
	return nil
}

// Get fetches a record by id. Returns utils.ErrNotFound on a miss.
func (s *RemoteStore) Get(ctx context.Context, id string) (*model.Record, error) {
	data, err := s.rdb.Get(ctx, recordKey(id)).Bytes()
	if err == redis.Nil {
		return nil, utils.ErrNotFound
	} else if err != nil {
		return nil, &utils.StorageError{Tier: "remote", Op: "get", Err: err}
	}

	var rec model.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, &utils.StorageError{Tier: "remote", Op: "unmarshal", Err: err}
	}
	return &rec, nil
}

// Exists reports whether a record id is taken.
func (s *RemoteStore) Exists(ctx context.Context, id string) (bool, error) {
	n, err := s.rdb.Exists(ctx, recordKey(id)).Result()
	if err != nil {
		return false, &utils.StorageError{Tier: "remote", Op: "exists", Err: err}
	}
	return n > 0, nil
}

// IncrementScan bumps the scan counter with an optimistic
// read-modify-write. On a WATCH conflict the transaction is retried, so
// concurrent scans never lose increments.
func (s *RemoteStore) IncrementScan(ctx context.Context, id string, meta *model.ScanLog) error {
	key := recordKey(id)
	var updated model.Record

	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err == redis.Nil {
			return utils.ErrNotFound
		} else if err != nil {
			return err
		}

		var rec model.Record
		if err := json.Unmarshal(data, &rec); err != nil {
			return err
		}

		now := time.Now()
		rec.ScanCount++
		rec.LastScanned = &now

		payload, err := json.Marshal(&rec)
		if err != nil {
			return err
		}
		updated = rec

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, 0)
			return nil
		})
		return err
	}

	var err error
	for attempt := 0; attempt < maxIncrementRetries; attempt++ {
		err = s.rdb.Watch(ctx, txf, key)
		if err == nil {
			break
		}
		if err == redis.TxFailedErr {
			log.Debug().Str("id", id).Int("attempt", attempt+1).
				Msg("Scan increment conflict, retrying")
			continue
		}
		if err == utils.ErrNotFound {
			return err
		}
		return &utils.StorageError{Tier: "remote", Op: "increment", Err: err}
	}
	if err != nil {
		return &utils.StorageError{Tier: "remote", Op: "increment", Err: err}
	}

	s.appendScanLog(ctx, id, meta)
	s.publish(ctx, &updated)
	return nil
}

// ListRecent returns up to limit records, newest first.
func (s *RemoteStore) ListRecent(ctx context.Context, limit int) ([]model.Record, error) {
	ids, err := s.rdb.LRange(ctx, recentIDsKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, &utils.StorageError{Tier: "remote", Op: "lrange", Err: err}
	}

	records := make([]model.Record, 0, len(ids))
	for _, id := range ids {
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

// Watch delivers every update to the record over a pub/sub subscription
// until the returned unsubscribe function is called.
func (s *RemoteStore) Watch(ctx context.Context, id string, fn func(model.Record)) (func(), error) {
	sub := s.rdb.Subscribe(ctx, updateChannelPrefix+id)
	// Force the subscription to be established before returning.
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, &utils.StorageError{Tier: "remote", Op: "subscribe", Err: err}
	}

	go func() {
		for msg := range sub.Channel() {
			var rec model.Record
			if err := json.Unmarshal([]byte(msg.Payload), &rec); err != nil {
				log.Warn().Err(err).Str("id", id).Msg("Dropping malformed watch update")
				continue
			}
			fn(rec)
		}
	}()

	return func() {
		if err := sub.Close(); err != nil {
			log.Debug().Err(err).Str("id", id).Msg("Watch unsubscribe close failed")
		}
	}, nil
}

// ScanLogs returns up to limit scan log entries, newest first.
func (s *RemoteStore) ScanLogs(ctx context.Context, id string, limit int) ([]model.ScanLog, error) {
	raw, err := s.rdb.LRange(ctx, scanLogKeyPrefix+id, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, &utils.StorageError{Tier: "remote", Op: "lrange", Err: err}
	}

	logs := make([]model.ScanLog, 0, len(raw))
	for _, entry := range raw {
		var sl model.ScanLog
		if err := json.Unmarshal([]byte(entry), &sl); err != nil {
			log.Warn().Err(err).Str("id", id).Msg("Skipping malformed scan log entry")
			continue
		}
		logs = append(logs, sl)
	}
	return logs, nil
}

// Ping probes the tier, feeding the connectivity monitor.
func (s *RemoteStore) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

func (s *RemoteStore) appendScanLog(ctx context.Context, id string, meta *model.ScanLog) {
	if meta == nil {
		return
	}
	data, err := json.Marshal(meta)
	if err != nil {
		log.Error().Err(err).Str("id", id).Msg("Failed to marshal scan log")
		return
	}
	key := scanLogKeyPrefix + id
	if err := s.rdb.LPush(ctx, key, data).Err(); err != nil {
		log.Error().Err(err).Str("id", id).Msg("Failed to append scan log")
		return
	}
	if err := s.rdb.LTrim(ctx, key, 0, s.scanLogLimit-1).Err(); err != nil {
		log.Error().Err(err).Str("id", id).Msg("Failed to trim scan log")
	}
}

func (s *RemoteStore) publish(ctx context.Context, rec *model.Record) {
	data, err := json.Marshal(rec)
	if err != nil {
		log.Error().Err(err).Str("id", rec.ID).Msg("Failed to marshal watch update")
		return
	}
	if err := s.rdb.Publish(ctx, updateChannelPrefix+rec.ID, data).Err(); err != nil {
		log.Debug().Err(err).Str("id", rec.ID).Msg("Failed to publish watch update")
	}
}
