package achievements_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nestegg/savings-engine/achievements"
	"github.com/nestegg/savings-engine/logging"
	"github.com/nestegg/savings-engine/store/memory"
)

// brokenRecords fails every read and write.
type brokenRecords struct{ err error }

func (b brokenRecords) GetRecord(context.Context, string) ([]byte, bool, error) {
	return nil, false, b.err
}

func (b brokenRecords) PutRecord(context.Context, string, []byte) error {
	return b.err
}

func TestRecordUnlockStore_MissingRecordIsEmpty(t *testing.T) {
	s := achievements.NewRecordUnlockStore(memory.New(), logging.Discard())

	got := s.Load(context.Background())

	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestRecordUnlockStore_SaveWritesVersionedRecord(t *testing.T) {
	// GIVEN: A record store
	ctx := context.Background()
	records := memory.New()
	s := achievements.NewRecordUnlockStore(records, logging.Discard())

	// WHEN: A set with a duplicate is saved
	err := s.Save(ctx, []string{"progress_25", "first_goal_created", "progress_25"})

	// THEN: The record is versioned, deduplicated and order-preserving
	require.NoError(t, err)
	raw, ok, err := records.GetRecord(ctx, achievements.StorageKey)
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `{"version":1,"ids":["progress_25","first_goal_created"]}`, string(raw))

	assert.Equal(t, []string{"progress_25", "first_goal_created"}, s.Load(ctx))
}

func TestRecordUnlockStore_Load(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{name: "versioned", raw: `{"version":1,"ids":["a","b"]}`, want: []string{"a", "b"}},
		{name: "newer version keeps ids", raw: `{"version":7,"ids":["a"],"extra":true}`, want: []string{"a"}},
		{name: "legacy bare array", raw: `["first_goal_created","progress_25"]`, want: []string{"first_goal_created", "progress_25"}},
		{name: "duplicates dropped", raw: `["a","a","b"]`, want: []string{"a", "b"}},
		{name: "null ids", raw: `{"version":1,"ids":null}`, want: []string{}},
		{name: "corrupt", raw: `{"ids":[`, want: []string{}},
		{name: "wrong type", raw: `"first_goal_created"`, want: []string{}},
		{name: "empty", raw: ``, want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			records := memory.New()
			require.NoError(t, records.PutRecord(ctx, achievements.StorageKey, []byte(tt.raw)))

			got := achievements.NewRecordUnlockStore(records, logging.Discard()).Load(ctx)

			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRecordUnlockStore_ReadFailureIsEmpty(t *testing.T) {
	s := achievements.NewRecordUnlockStore(brokenRecords{err: errors.New("locked")}, logging.Discard())

	assert.Empty(t, s.Load(context.Background()))
}

func TestRecordUnlockStore_SaveFailureIsStorageError(t *testing.T) {
	cause := errors.New("read-only filesystem")
	s := achievements.NewRecordUnlockStore(brokenRecords{err: cause}, logging.Discard())

	err := s.Save(context.Background(), []string{"a"})

	require.Error(t, err)
	assert.ErrorIs(t, err, achievements.ErrStorage)
	assert.ErrorIs(t, err, cause)

	var se *achievements.StorageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "save", se.Op)
	assert.Equal(t, achievements.StorageKey, se.Key)
}

func TestRecordUnlockStore_RecordIsPlainJSON(t *testing.T) {
	ctx := context.Background()
	records := memory.New()
	s := achievements.NewRecordUnlockStore(records, logging.Discard())
	require.NoError(t, s.Save(ctx, nil))

	raw, _, err := records.GetRecord(ctx, achievements.StorageKey)
	require.NoError(t, err)

	var decoded struct {
		Version int      `json:"version"`
		IDs     []string `json:"ids"`
	}
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, 1, decoded.Version)
	assert.Empty(t, decoded.IDs)
}
