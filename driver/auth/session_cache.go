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
	"encoding/json"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/99designs/keyring"
)

// SessionServiceName is the keyring namespace for cached IdP sessions.
const SessionServiceName = "tsodbc"

const sessionKeyPrefix = "okta_session:"

type cachedSession struct {
	ID        string    `json:"id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SessionCache keeps identity provider session ids in the OS keyring.
// Only session ids are stored, never passwords or service credentials.
type SessionCache struct {
	mu   sync.RWMutex
	ring keyring.Keyring
	now  func() time.Time
}

// NewSessionCache wraps an opened keyring
func NewSessionCache(ring keyring.Keyring) *SessionCache {
	return &SessionCache{ring: ring, now: time.Now}
}

// OpenSessionCache opens the platform keyring for the driver's namespace
func OpenSessionCache() (*SessionCache, error) {
	var backends []keyring.BackendType
	switch runtime.GOOS {
	case "darwin":
		backends = []keyring.BackendType{keyring.KeychainBackend, keyring.PassBackend}
	case "windows":
		backends = []keyring.BackendType{keyring.WinCredBackend}
	default:
		backends = []keyring.BackendType{keyring.SecretServiceBackend, keyring.KWalletBackend, keyring.PassBackend}
	}

	cfg := keyring.Config{
		ServiceName:     SessionServiceName,
		AllowedBackends: backends,
		PassPrefix:      SessionServiceName,
		WinCredPrefix:   SessionServiceName,
	}
	ring, err := keyring.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open keyring: %w", err)
	}
	return NewSessionCache(ring), nil
}

func sessionKey(host string) string {
	return sessionKeyPrefix + strings.ToLower(host)
}

// Store saves a session id for host until expiresAt
func (c *SessionCache) Store(host, sessionID string, expiresAt time.Time) error {
	data, err := json.Marshal(cachedSession{ID: sessionID, ExpiresAt: expiresAt})
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ring.Set(keyring.Item{
		Key:         sessionKey(host),
		Data:        data,
		Label:       "Okta session for " + host,
		Description: "tsodbc identity provider session",
	})
}

// Load returns the session id for host if one is cached and not expired.
// Expired entries are removed.
func (c *SessionCache) Load(host string) (string, bool) {
	c.mu.RLock()
	item, err := c.ring.Get(sessionKey(host))
	c.mu.RUnlock()
	if err != nil {
		return "", false
	}

	var s cachedSession
	if err := json.Unmarshal(item.Data, &s); err != nil || s.ID == "" {
		_ = c.Delete(host)
		return "", false
	}
	if !s.ExpiresAt.IsZero() && !c.now().Before(s.ExpiresAt) {
		_ = c.Delete(host)
		return "", false
	}
	return s.ID, true
}

// Delete removes the cached session for host. A missing entry is not an
// error.
func (c *SessionCache) Delete(host string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	err := c.ring.Remove(sessionKey(host))
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return nil
	}
	return err
}
