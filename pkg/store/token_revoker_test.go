package store

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestMemoryTokenRevoker(t *testing.T) {
	r := NewMemoryTokenRevoker()

	if revoked, err := r.IsRevoked("jti-1"); err != nil || revoked {
		t.Fatalf("fresh jti should not be revoked, revoked=%v err=%v", revoked, err)
	}
	if err := r.Revoke("jti-1", time.Minute); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if revoked, _ := r.IsRevoked("jti-1"); !revoked {
		t.Fatalf("expected jti-1 revoked")
	}
	// Non-positive TTL means the token already expired on its own.
	if err := r.Revoke("jti-2", 0); err != nil {
		t.Fatalf("revoke with zero ttl: %v", err)
	}
	if revoked, _ := r.IsRevoked("jti-2"); revoked {
		t.Fatalf("zero-ttl revoke should be a no-op")
	}
}

func TestMemoryTokenRevokerUserCutoffOnlyAdvances(t *testing.T) {
	r := NewMemoryTokenRevoker()
	later := time.Now().UTC()
	earlier := later.Add(-time.Hour)

	if err := r.RevokeUser("u1", later); err != nil {
		t.Fatalf("revoke user: %v", err)
	}
	if err := r.RevokeUser("u1", earlier); err != nil {
		t.Fatalf("revoke user: %v", err)
	}
	cutoff, err := r.RevokedAfter("u1")
	if err != nil {
		t.Fatalf("revoked after: %v", err)
	}
	if !cutoff.Equal(later) {
		t.Fatalf("cutoff moved backwards: got %v want %v", cutoff, later)
	}
}

func TestRedisTokenRevoker(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	r := NewRedisTokenRevoker(client, time.Hour)

	if err := r.Revoke("jti-1", time.Minute); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if revoked, err := r.IsRevoked("jti-1"); err != nil || !revoked {
		t.Fatalf("expected jti-1 revoked, revoked=%v err=%v", revoked, err)
	}
	if revoked, _ := r.IsRevoked("jti-other"); revoked {
		t.Fatalf("unrelated jti should not be revoked")
	}

	cutoff := time.Now().UTC()
	if err := r.RevokeUser("u1", cutoff); err != nil {
		t.Fatalf("revoke user: %v", err)
	}
	got, err := r.RevokedAfter("u1")
	if err != nil {
		t.Fatalf("revoked after: %v", err)
	}
	if !got.Equal(cutoff) {
		t.Fatalf("cutoff mismatch: got %v want %v", got, cutoff)
	}
	if got, _ := r.RevokedAfter("u-none"); !got.IsZero() {
		t.Fatalf("expected zero cutoff for unknown user, got %v", got)
	}
}
