/*
store.go - Durable storage of unlocked achievement ids

RECORD FORMAT:
  One record under StorageKey holding versioned JSON:

    {"version":1,"ids":["first_goal_created","first_contribution"]}

  A bare JSON array of ids (the unversioned layout) is still accepted on
  load. Ids are written in unlock order with no duplicates.

FAILURE SEMANTICS:
  Load never fails: a missing, unreadable or undecodable record means
  "nothing unlocked yet". Save returns *StorageError; the engine logs it and
  keeps its in-memory set, so an unlock can be lost only across a restart.
*/
package achievements

import (
	"context"
	"encoding/json"
	"log/slog"
)

// StorageKey is the fixed record key for the unlocked set.
const StorageKey = "achievements_unlocked_ids"

// recordVersion is written with every save. Bump it when the layout changes.
const recordVersion = 1

// UnlockStore persists the unlocked id set.
type UnlockStore interface {
	// Load returns the persisted ids, or an empty slice on any failure.
	Load(ctx context.Context) []string

	// Save replaces the persisted ids.
	Save(ctx context.Context, ids []string) error
}

// RecordStore is a durable key-value record table.
// Implemented by store/sqlite and store/memory.
type RecordStore interface {
	// GetRecord returns the value for key; the bool is false if absent.
	GetRecord(ctx context.Context, key string) ([]byte, bool, error)

	// PutRecord replaces the value for key.
	PutRecord(ctx context.Context, key string, value []byte) error
}

type unlockRecord struct {
	Version int      `json:"version"`
	IDs     []string `json:"ids"`
}

// RecordUnlockStore implements UnlockStore on top of a RecordStore.
type RecordUnlockStore struct {
	records RecordStore
	key     string
	logger  *slog.Logger
}

// NewRecordUnlockStore stores the unlocked set under StorageKey.
func NewRecordUnlockStore(records RecordStore, logger *slog.Logger) *RecordUnlockStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &RecordUnlockStore{records: records, key: StorageKey, logger: logger}
}

// Load implements UnlockStore.
func (s *RecordUnlockStore) Load(ctx context.Context) []string {
	data, ok, err := s.records.GetRecord(ctx, s.key)
	if err != nil {
		s.logger.Warn("unlock record unreadable, starting empty",
			slog.String("key", s.key),
			slog.Any("error", &StorageError{Op: "load", Key: s.key, Err: err}))
		return []string{}
	}
	if !ok || len(data) == 0 {
		return []string{}
	}

	ids, err := decodeRecord(data)
	if err != nil {
		s.logger.Warn("unlock record undecodable, starting empty",
			slog.String("key", s.key),
			slog.Any("error", err))
		return []string{}
	}
	return dedupe(ids)
}

// Save implements UnlockStore.
func (s *RecordUnlockStore) Save(ctx context.Context, ids []string) error {
	data, err := json.Marshal(unlockRecord{Version: recordVersion, IDs: dedupe(ids)})
	if err != nil {
		return &StorageError{Op: "save", Key: s.key, Err: err}
	}
	if err := s.records.PutRecord(ctx, s.key, data); err != nil {
		return &StorageError{Op: "save", Key: s.key, Err: err}
	}
	return nil
}

func decodeRecord(data []byte) ([]string, error) {
	var rec unlockRecord
	objErr := json.Unmarshal(data, &rec)
	if objErr == nil {
		return rec.IDs, nil
	}

	var legacy []string
	if err := json.Unmarshal(data, &legacy); err != nil {
		return nil, objErr
	}
	return legacy, nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
