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
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
)

// Credentials are temporary or static service credentials owned by one
// connection. They never print their secret parts.
type Credentials struct {
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	// Expires is zero for static keys.
	Expires time.Time
	// Source names the strategy that produced the credentials.
	Source string
}

// CanExpire reports whether the credentials carry an expiry
func (c *Credentials) CanExpire() bool {
	return c != nil && !c.Expires.IsZero()
}

// Expired reports whether the credentials are past their expiry at now
func (c *Credentials) Expired(now time.Time) bool {
	return c.CanExpire() && !now.Before(c.Expires)
}

// Valid reports whether the credentials carry a key pair
func (c *Credentials) Valid() bool {
	return c != nil && c.AccessKeyID != "" && c.SecretAccessKey != ""
}

// Wipe clears every field. Called on connection teardown.
func (c *Credentials) Wipe() {
	if c == nil {
		return
	}
	*c = Credentials{}
}

// AWS converts to the SDK credential value
func (c *Credentials) AWS() aws.Credentials {
	return aws.Credentials{
		AccessKeyID:     c.AccessKeyID,
		SecretAccessKey: c.SecretAccessKey,
		SessionToken:    c.SessionToken,
		Source:          c.Source,
		CanExpire:       c.CanExpire(),
		Expires:         c.Expires,
	}
}

// Provider returns an SDK credentials provider that reads the current value
// of c on every call, so a wiped connection stops signing requests.
func (c *Credentials) Provider() aws.CredentialsProvider {
	return aws.CredentialsProviderFunc(func(context.Context) (aws.Credentials, error) {
		if !c.Valid() {
			return aws.Credentials{}, fmt.Errorf("connection credentials have been released")
		}
		return c.AWS(), nil
	})
}

func (c Credentials) String() string {
	exp := "never"
	if !c.Expires.IsZero() {
		exp = c.Expires.UTC().Format(time.RFC3339)
	}
	return fmt.Sprintf("Credentials{AccessKeyID: %s, Source: %s, Expires: %s}", maskKeyID(c.AccessKeyID), c.Source, exp)
}

// GoString keeps %#v from dumping secrets.
func (c Credentials) GoString() string {
	return c.String()
}

// maskKeyID shows only the last 4 characters of an access key id
func maskKeyID(id string) string {
	if len(id) <= 8 {
		return "***"
	}
	return "***" + id[len(id)-4:]
}

func fromAWS(v aws.Credentials, source string) *Credentials {
	c := &Credentials{
		AccessKeyID:     v.AccessKeyID,
		SecretAccessKey: v.SecretAccessKey,
		SessionToken:    v.SessionToken,
		Source:          source,
	}
	if v.CanExpire {
		c.Expires = v.Expires
	}
	return c
}
