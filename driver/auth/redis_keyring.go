// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/99designs/keyring"
	"github.com/go-redis/redis/v8"
)

const (
	redisKeyPrefix     = SessionServiceName + ":"
	redisOpTimeout     = 5 * time.Second
	defaultRedisMaxTTL = 12 * time.Hour
)

// RedisKeyring stores keyring items in Redis so that identity provider
// sessions can be shared between hosts. Items expire after maxTTL even if
// the cache entry inside carries a later expiry.
type RedisKeyring struct {
	client *redis.Client
	maxTTL time.Duration
}

// NewRedisKeyring wraps a Redis client. maxTTL <= 0 means 12h.
func NewRedisKeyring(client *redis.Client, maxTTL time.Duration) *RedisKeyring {
	if maxTTL <= 0 {
		maxTTL = defaultRedisMaxTTL
	}
	return &RedisKeyring{client: client, maxTTL: maxTTL}
}

// OpenRedisSessionCache connects to redisURL (redis://host:port/db) and
// returns a session cache backed by it
func OpenRedisSessionCache(ctx context.Context, redisURL string, maxTTL time.Duration) (*SessionCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(ctx, redisOpTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return NewSessionCache(NewRedisKeyring(client, maxTTL)), nil
}

func (k *RedisKeyring) opContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), redisOpTimeout)
}

// Get implements keyring.Keyring
func (k *RedisKeyring) Get(key string) (keyring.Item, error) {
	ctx, cancel := k.opContext()
	defer cancel()

	data, err := k.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return keyring.Item{}, keyring.ErrKeyNotFound
	}
	if err != nil {
		return keyring.Item{}, err
	}
	return keyring.Item{Key: key, Data: data}, nil
}

// GetMetadata implements keyring.Keyring. Redis keeps no modification time.
func (k *RedisKeyring) GetMetadata(key string) (keyring.Metadata, error) {
	item, err := k.Get(key)
	if err != nil {
		return keyring.Metadata{}, err
	}
	return keyring.Metadata{Item: &item}, nil
}

// Set implements keyring.Keyring
func (k *RedisKeyring) Set(item keyring.Item) error {
	ctx, cancel := k.opContext()
	defer cancel()
	return k.client.Set(ctx, redisKeyPrefix+item.Key, item.Data, k.maxTTL).Err()
}

// Remove implements keyring.Keyring
func (k *RedisKeyring) Remove(key string) error {
	ctx, cancel := k.opContext()
	defer cancel()

	n, err := k.client.Del(ctx, redisKeyPrefix+key).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return keyring.ErrKeyNotFound
	}
	return nil
}

// Keys implements keyring.Keyring
func (k *RedisKeyring) Keys() ([]string, error) {
	ctx, cancel := k.opContext()
	defer cancel()

	var keys []string
	iter := k.client.Scan(ctx, 0, redisKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val()[len(redisKeyPrefix):])
	}
	return keys, iter.Err()
}
