package vault

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Name  string         `json:"name"`
	Count int            `json:"count"`
	Tags  []string       `json:"tags"`
	Meta  map[string]any `json:"meta"`
}

func samplePayload() payload {
	return payload{
		Name:  "Demo",
		Count: 3,
		Tags:  []string{"a", "b"},
		Meta:  map[string]any{"nested": "value"},
	}
}

func TestSetGetRoundTrip(t *testing.T) {
	v := New(NewMemoryMap())

	want := samplePayload()
	require.NoError(t, v.SetItem("item", want))

	var got payload
	found, err := v.GetItem("item", &got)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, want, got)
}

func TestRoundTripAcrossKeyReimport(t *testing.T) {
	store := NewMemoryMap()

	want := samplePayload()
	require.NoError(t, New(store).SetItem("item", want))

	// A fresh vault over the same map re-imports the device key from its
	// slot instead of sharing process state.
	var got payload
	found, err := New(store).GetItem("item", &got)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, want, got)
}

func TestValueIsEncryptedAtRest(t *testing.T) {
	store := NewMemoryMap()
	v := New(store)

	require.NoError(t, v.SetItem("item", samplePayload()))

	_, plainExists, err := store.Get("item")
	require.NoError(t, err)
	assert.False(t, plainExists, "no plaintext slot should exist")

	raw, encExists, err := store.Get("encrypted_item")
	require.NoError(t, err)
	require.True(t, encExists)
	assert.NotContains(t, string(raw), "Demo", "ciphertext must not leak the plaintext")
}

func TestLegacyMigration(t *testing.T) {
	store := NewMemoryMap()
	v := New(store)

	want := samplePayload()
	raw, err := json.Marshal(want)
	require.NoError(t, err)
	require.NoError(t, store.Set("item", raw))

	var got payload
	found, err := v.GetItem("item", &got)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, want, got)

	// Migration moved the value: encrypted slot present, legacy gone.
	_, legacyExists, err := store.Get("item")
	require.NoError(t, err)
	assert.False(t, legacyExists, "legacy slot should be deleted after migration")

	_, encExists, err := store.Get("encrypted_item")
	require.NoError(t, err)
	assert.True(t, encExists, "encrypted slot should exist after migration")
}

func TestLegacyMigrationIdempotent(t *testing.T) {
	store := NewMemoryMap()
	v := New(store)

	want := samplePayload()
	raw, err := json.Marshal(want)
	require.NoError(t, err)
	require.NoError(t, store.Set("item", raw))

	for run := 0; run < 3; run++ {
		var got payload
		found, err := v.GetItem("item", &got)
		require.NoError(t, err, "run %d", run)
		require.True(t, found, "run %d", run)
		assert.Equal(t, want, got, "run %d", run)
	}

	_, legacyExists, _ := store.Get("item")
	assert.False(t, legacyExists)
}

func TestGetItemMissing(t *testing.T) {
	v := New(NewMemoryMap())

	var got payload
	found, err := v.GetItem("absent", &got)
	require.NoError(t, err)
	assert.False(t, found)
}

type failingCipher struct{}

func (failingCipher) Seal(key, plaintext []byte) ([]byte, error) {
	return nil, errors.New("seal broken")
}

func (failingCipher) Open(key, blob []byte) ([]byte, error) {
	return nil, errors.New("open broken")
}

func TestSetItemDegradesToPlaintext(t *testing.T) {
	store := NewMemoryMap()
	v := NewWithCipher(store, failingCipher{})

	want := samplePayload()
	require.NoError(t, v.SetItem("item", want), "crypto failure must not surface")

	raw, plainExists, err := store.Get("item")
	require.NoError(t, err)
	require.True(t, plainExists, "degraded write lands in the plaintext slot")

	var got payload
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, want, got)
}

func TestCorruptCiphertextReadAsAbsent(t *testing.T) {
	store := NewMemoryMap()
	v := New(store)

	require.NoError(t, store.Set("encrypted_item", []byte("bm90IGEgcmVhbCBibG9i")))

	var got payload
	found, err := v.GetItem("item", &got)
	require.NoError(t, err, "decryption failure is logged, not raised")
	assert.False(t, found)
}

func TestGetItemEncryptedSkipsLegacy(t *testing.T) {
	store := NewMemoryMap()
	v := New(store)

	raw, err := json.Marshal(samplePayload())
	require.NoError(t, err)
	require.NoError(t, store.Set("item", raw))

	var got payload
	found, err := v.GetItemEncrypted("item", &got)
	require.NoError(t, err)
	assert.False(t, found, "strict encrypted read must not consult the legacy slot")

	// Legacy slot untouched by the strict read.
	_, legacyExists, _ := store.Get("item")
	assert.True(t, legacyExists)
}
