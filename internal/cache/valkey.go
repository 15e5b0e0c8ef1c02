package cache

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/rueidis"
)

// ErrMiss is returned when a key is not cached.
var ErrMiss = errors.New("cache miss")

type Config struct {
	Addr     string
	Password string
	AuthTTL  time.Duration
}

// ValkeyClient caches successful Basic auth lookups so that repeated
// requests from the same credentials skip the users table.
type ValkeyClient struct {
	client rueidis.Client
	ttl    time.Duration
}

func NewValkeyClient(cfg Config) (*ValkeyClient, error) {
	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  []string{cfg.Addr},
		Password:     cfg.Password,
		DisableCache: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Valkey: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping Valkey: %w", err)
	}

	ttl := cfg.AuthTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &ValkeyClient{client: client, ttl: ttl}, nil
}

// CachedUser is the part of a user the auth middleware needs.
type CachedUser struct {
	UserID  int64
	IsStaff bool
}

func authKey(email, passwordHash string) string {
	return "auth:" + base64.StdEncoding.EncodeToString([]byte(email+":"+passwordHash))
}

func (v *ValkeyClient) GetUserByAuth(ctx context.Context, email, passwordHash string) (CachedUser, error) {
	raw, err := v.client.Do(ctx, v.client.B().Get().Key(authKey(email, passwordHash)).Build()).ToString()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return CachedUser{}, ErrMiss
		}
		return CachedUser{}, fmt.Errorf("cache lookup error: %w", err)
	}
	return decodeUser(raw)
}

func (v *ValkeyClient) SetUserByAuth(ctx context.Context, email, passwordHash string, u CachedUser) error {
	cmd := v.client.B().Set().
		Key(authKey(email, passwordHash)).
		Value(encodeUser(u)).
		ExSeconds(int64(v.ttl / time.Second)).
		Build()
	if err := v.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("cache store error: %w", err)
	}
	return nil
}

func (v *ValkeyClient) Close() error {
	v.client.Close()
	return nil
}

func encodeUser(u CachedUser) string {
	return strconv.FormatInt(u.UserID, 10) + "|" + strconv.FormatBool(u.IsStaff)
}

func decodeUser(raw string) (CachedUser, error) {
	id, staff, ok := strings.Cut(raw, "|")
	if !ok {
		return CachedUser{}, fmt.Errorf("invalid cached user %q", raw)
	}
	userID, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return CachedUser{}, fmt.Errorf("invalid user ID in cache: %w", err)
	}
	isStaff, err := strconv.ParseBool(staff)
	if err != nil {
		return CachedUser{}, fmt.Errorf("invalid staff flag in cache: %w", err)
	}
	return CachedUser{UserID: userID, IsStaff: isStaff}, nil
}
