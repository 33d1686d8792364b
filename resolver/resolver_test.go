package resolver

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"qr-code-tracker/connectivity"
	"qr-code-tracker/model"
	"qr-code-tracker/storage"
	"qr-code-tracker/vault"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
)

// fakeSource is a scripted Source that records whether it was consulted.
type fakeSource struct {
	name     string
	rec      *model.Record
	err      error
	consults int
}

func (s *fakeSource) Name() string { return s.name }

func (s *fakeSource) Resolve(ctx context.Context, id string) (*model.Record, bool, error) {
	s.consults++
	if s.err != nil {
		return nil, false, s.err
	}
	return s.rec, s.rec != nil, nil
}

func TestResolve_FirstHitWins(t *testing.T) {
	first := &fakeSource{name: "first", rec: &model.Record{ID: "abc12345", Name: "from-first"}}
	second := &fakeSource{name: "second", rec: &model.Record{ID: "abc12345", Name: "from-second"}}

	rec, source, found := New(first, second).Resolve(context.Background(), "abc12345")
	if !found {
		t.Fatal("expected a hit")
	}
	if source != "first" {
		t.Errorf("source = %q, want first", source)
	}
	if rec.Name != "from-first" {
		t.Errorf("Name = %q, want from-first", rec.Name)
	}
	if second.consults != 0 {
		t.Errorf("second source consulted %d times, want 0", second.consults)
	}
}

func TestResolve_MissFallsThrough(t *testing.T) {
	first := &fakeSource{name: "first"}
	second := &fakeSource{name: "second", rec: &model.Record{ID: "abc12345"}}

	rec, source, found := New(first, second).Resolve(context.Background(), "abc12345")
	if !found {
		t.Fatal("expected a hit from the second source")
	}
	if source != "second" {
		t.Errorf("source = %q, want second", source)
	}
	if rec.ID != "abc12345" {
		t.Errorf("ID = %q, want abc12345", rec.ID)
	}
}

func TestResolve_ErrorCountsAsMiss(t *testing.T) {
	broken := &fakeSource{name: "broken", err: errors.New("backend down")}
	fallback := &fakeSource{name: "fallback", rec: &model.Record{ID: "abc12345"}}

	_, source, found := New(broken, fallback).Resolve(context.Background(), "abc12345")
	if !found {
		t.Fatal("a failing source must not abort the chain")
	}
	if source != "fallback" {
		t.Errorf("source = %q, want fallback", source)
	}
}

func TestResolve_AllMiss(t *testing.T) {
	_, _, found := New(&fakeSource{name: "a"}, &fakeSource{name: "b"}).Resolve(context.Background(), "missing")
	if found {
		t.Error("expected a miss when no source has the record")
	}
}

func TestResolve_EncryptedTierPreemptsLegacy(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	defer mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	remote := storage.NewRemoteStore(rdb, 100)
	kv := vault.NewMemoryMap()
	local := storage.NewLocalStore(vault.New(kv))

	flag := &connectivity.Flag{}
	flag.Set(true)

	ctx := context.Background()

	// Encrypted slot holds the current record; a stale plaintext slot
	// from before encryption lingers under the same id.
	current := &model.Record{ID: "abc12345", Name: "current", OriginalText: "https://example.org", CreatedAt: time.Now()}
	if err := local.Put(ctx, current); err != nil {
		t.Fatal(err)
	}
	stale, err := json.Marshal(&model.Record{ID: "abc12345", Name: "stale", OriginalText: "old content"})
	if err != nil {
		t.Fatal(err)
	}
	if err := kv.Set("record_abc12345", stale); err != nil {
		t.Fatal(err)
	}

	chain := New(
		RemoteSource(remote, flag),
		EncryptedSource(local),
		LegacySource(local),
	)

	// Remote is empty: the chain must fall through to the encrypted tier
	// and stop there.
	rec, source, found := chain.Resolve(ctx, "abc12345")
	if !found {
		t.Fatal("expected a hit")
	}
	if source != "encrypted-local" {
		t.Errorf("source = %q, want encrypted-local", source)
	}
	if rec.Name != "current" {
		t.Errorf("Name = %q, want the encrypted record", rec.Name)
	}

	// The legacy slot was never consulted, so no migration fired: the
	// stale plaintext copy is still there, untouched.
	raw, ok, err := kv.Get("record_abc12345")
	if err != nil || !ok {
		t.Fatalf("legacy slot gone: ok=%v err=%v", ok, err)
	}
	var leftover model.Record
	if err := json.Unmarshal(raw, &leftover); err != nil {
		t.Fatal(err)
	}
	if leftover.Name != "stale" {
		t.Errorf("legacy slot Name = %q, want stale (unmodified)", leftover.Name)
	}
}

func TestPayloadSource(t *testing.T) {
	encoded, err := model.EncodePayload(model.FallbackPayload{
		Text:    "https://example.org",
		Name:    "Embedded",
		Created: time.Now(),
	})
	if err != nil {
		t.Fatal(err)
	}

	rec, found, err := PayloadSource(encoded).Resolve(context.Background(), "abc12345")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if !found {
		t.Fatal("expected the payload to resolve")
	}
	if rec.ID != "abc12345" {
		t.Errorf("ID = %q, want abc12345", rec.ID)
	}
	if rec.OriginalText != "https://example.org" {
		t.Errorf("OriginalText = %q", rec.OriginalText)
	}
	if rec.ScanCount != 0 {
		t.Errorf("ScanCount = %d, want 0", rec.ScanCount)
	}
}

func TestPayloadSource_BadData(t *testing.T) {
	_, found, err := PayloadSource("!!!not-base64!!!").Resolve(context.Background(), "abc12345")
	if err == nil {
		t.Error("expected an error for undecodable payload data")
	}
	if found {
		t.Error("undecodable payload must not resolve")
	}
}
