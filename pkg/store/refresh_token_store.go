package store

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrInvalidRefreshToken indicates the token is unknown or expired.
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	// ErrRefreshTokenReplay indicates reuse of an already rotated token.
	ErrRefreshTokenReplay = errors.New("refresh token replay detected")
)

// RefreshTokenStore persists refresh tokens with rotation and replay
// detection. Tokens belong to families; presenting a superseded token
// burns the whole family.
type RefreshTokenStore interface {
	NewToken(userID string, ttl time.Duration) (string, error)
	RotateToken(token string, ttl time.Duration) (userID string, newToken string, err error)
	DeleteToken(token string) error
	RevokeUserTokens(userID string) error
}

type tokenFamily struct {
	userID      string
	currentHash string
	expiry      time.Time
	hashes      map[string]struct{}
}

// MemoryRefreshTokenStore keeps token families in memory.
type MemoryRefreshTokenStore struct {
	mu       sync.Mutex
	families map[string]*tokenFamily // familyID -> family
	byHash   map[string]string       // tokenHash -> familyID
	byUser   map[string]map[string]struct{}
}

func NewMemoryRefreshTokenStore() *MemoryRefreshTokenStore {
	return &MemoryRefreshTokenStore{
		families: make(map[string]*tokenFamily),
		byHash:   make(map[string]string),
		byUser:   make(map[string]map[string]struct{}),
	}
}

func (s *MemoryRefreshTokenStore) NewToken(userID string, ttl time.Duration) (string, error) {
	token, err := randomToken(32)
	if err != nil {
		return "", err
	}
	familyID, err := randomToken(16)
	if err != nil {
		return "", err
	}
	hash := hashToken(token)

	s.mu.Lock()
	s.families[familyID] = &tokenFamily{
		userID:      userID,
		currentHash: hash,
		expiry:      time.Now().UTC().Add(ttl),
		hashes:      map[string]struct{}{hash: {}},
	}
	s.byHash[hash] = familyID
	if s.byUser[userID] == nil {
		s.byUser[userID] = make(map[string]struct{})
	}
	s.byUser[userID][familyID] = struct{}{}
	s.mu.Unlock()
	return token, nil
}

func (s *MemoryRefreshTokenStore) RotateToken(token string, ttl time.Duration) (string, string, error) {
	hash := hashToken(token)
	now := time.Now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	familyID, ok := s.byHash[hash]
	if !ok {
		return "", "", ErrInvalidRefreshToken
	}
	family := s.families[familyID]
	if family == nil || now.After(family.expiry) {
		s.dropFamilyLocked(familyID)
		return "", "", ErrInvalidRefreshToken
	}
	if family.currentHash != hash {
		// Superseded token presented: treat as theft, burn the family.
		s.dropFamilyLocked(familyID)
		return "", "", ErrRefreshTokenReplay
	}

	newToken, err := randomToken(32)
	if err != nil {
		return "", "", err
	}
	newHash := hashToken(newToken)
	family.currentHash = newHash
	family.expiry = now.Add(ttl)
	family.hashes[newHash] = struct{}{}
	s.byHash[newHash] = familyID
	return family.userID, newToken, nil
}

func (s *MemoryRefreshTokenStore) DeleteToken(token string) error {
	hash := hashToken(token)
	s.mu.Lock()
	if familyID, ok := s.byHash[hash]; ok {
		s.dropFamilyLocked(familyID)
	}
	s.mu.Unlock()
	return nil
}

func (s *MemoryRefreshTokenStore) RevokeUserTokens(userID string) error {
	s.mu.Lock()
	for familyID := range s.byUser[userID] {
		s.dropFamilyLocked(familyID)
	}
	s.mu.Unlock()
	return nil
}

func (s *MemoryRefreshTokenStore) dropFamilyLocked(familyID string) {
	family := s.families[familyID]
	if family == nil {
		return
	}
	for h := range family.hashes {
		delete(s.byHash, h)
	}
	delete(s.families, familyID)
	if fams := s.byUser[family.userID]; fams != nil {
		delete(fams, familyID)
		if len(fams) == 0 {
			delete(s.byUser, family.userID)
		}
	}
}

// RedisRefreshTokenStore stores token families in Redis. The client is
// injected and shared with the other Redis-backed components.
type RedisRefreshTokenStore struct {
	client    *redis.Client
	opTimeout time.Duration
}

func NewRedisRefreshTokenStore(client *redis.Client) *RedisRefreshTokenStore {
	return &RedisRefreshTokenStore{client: client, opTimeout: 3 * time.Second}
}

func (s *RedisRefreshTokenStore) NewToken(userID string, ttl time.Duration) (string, error) {
	token, err := randomToken(32)
	if err != nil {
		return "", err
	}
	familyID, err := randomToken(16)
	if err != nil {
		return "", err
	}
	hash := hashToken(token)
	ctx, cancel := context.WithTimeout(context.Background(), s.opTimeout)
	defer cancel()

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, rtHashKey(hash), familyID, ttl)
	pipe.HSet(ctx, rtFamilyKey(familyID), map[string]any{
		"userId":      userID,
		"currentHash": hash,
	})
	pipe.Expire(ctx, rtFamilyKey(familyID), ttl)
	pipe.SAdd(ctx, rtFamilyHashesKey(familyID), hash)
	pipe.Expire(ctx, rtFamilyHashesKey(familyID), ttl)
	pipe.SAdd(ctx, rtUserKey(userID), familyID)
	pipe.Expire(ctx, rtUserKey(userID), ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", err
	}
	return token, nil
}

func (s *RedisRefreshTokenStore) RotateToken(token string, ttl time.Duration) (string, string, error) {
	hash := hashToken(token)
	ctx, cancel := context.WithTimeout(context.Background(), s.opTimeout)
	defer cancel()

	for {
		if err := ctx.Err(); err != nil {
			return "", "", err
		}
		familyID, err := s.client.Get(ctx, rtHashKey(hash)).Result()
		if err == redis.Nil {
			return "", "", ErrInvalidRefreshToken
		}
		if err != nil {
			return "", "", err
		}

		familyKey := rtFamilyKey(familyID)
		var (
			userID   string
			newToken string
			burn     bool
		)
		err = s.client.Watch(ctx, func(tx *redis.Tx) error {
			family, err := tx.HGetAll(ctx, familyKey).Result()
			if err != nil {
				return err
			}
			userID = family["userId"]
			currentHash := family["currentHash"]
			if userID == "" || currentHash == "" {
				burn = true
				return ErrInvalidRefreshToken
			}
			if currentHash != hash {
				burn = true
				return ErrRefreshTokenReplay
			}
			newToken, err = randomToken(32)
			if err != nil {
				return err
			}
			newHash := hashToken(newToken)
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, rtHashKey(newHash), familyID, ttl)
				pipe.HSet(ctx, familyKey, "currentHash", newHash)
				pipe.Expire(ctx, familyKey, ttl)
				pipe.SAdd(ctx, rtFamilyHashesKey(familyID), newHash)
				pipe.Expire(ctx, rtFamilyHashesKey(familyID), ttl)
				pipe.Expire(ctx, rtUserKey(userID), ttl)
				return nil
			})
			return err
		}, familyKey)

		if err == redis.TxFailedErr {
			continue
		}
		if err != nil {
			if burn {
				_ = s.dropFamily(ctx, familyID, userID)
			}
			return "", "", err
		}
		return userID, newToken, nil
	}
}

func (s *RedisRefreshTokenStore) DeleteToken(token string) error {
	hash := hashToken(token)
	ctx, cancel := context.WithTimeout(context.Background(), s.opTimeout)
	defer cancel()

	familyID, err := s.client.Get(ctx, rtHashKey(hash)).Result()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		return err
	}
	return s.dropFamily(ctx, familyID, "")
}

func (s *RedisRefreshTokenStore) RevokeUserTokens(userID string) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.opTimeout)
	defer cancel()
	familyIDs, err := s.client.SMembers(ctx, rtUserKey(userID)).Result()
	if err != nil && err != redis.Nil {
		return err
	}
	for _, familyID := range familyIDs {
		if err := s.dropFamily(ctx, familyID, userID); err != nil {
			return err
		}
	}
	if err := s.client.Del(ctx, rtUserKey(userID)).Err(); err != nil && err != redis.Nil {
		return err
	}
	return nil
}

func (s *RedisRefreshTokenStore) dropFamily(ctx context.Context, familyID, userID string) error {
	if userID == "" {
		family, err := s.client.HGetAll(ctx, rtFamilyKey(familyID)).Result()
		if err != nil && err != redis.Nil {
			return err
		}
		userID = family["userId"]
	}
	hashes, err := s.client.SMembers(ctx, rtFamilyHashesKey(familyID)).Result()
	if err != nil && err != redis.Nil {
		return err
	}
	pipe := s.client.TxPipeline()
	for _, h := range hashes {
		pipe.Del(ctx, rtHashKey(h))
	}
	pipe.Del(ctx, rtFamilyHashesKey(familyID))
	pipe.Del(ctx, rtFamilyKey(familyID))
	if userID != "" {
		pipe.SRem(ctx, rtUserKey(userID), familyID)
	}
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return err
	}
	return nil
}

func randomToken(nBytes int) (string, error) {
	buf := make([]byte, nBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func rtHashKey(hash string) string       { return "rt:token:" + hash }
func rtFamilyKey(id string) string       { return "rt:family:" + id }
func rtFamilyHashesKey(id string) string { return "rt:family_tokens:" + id }
func rtUserKey(userID string) string     { return "rt:user:" + userID }
