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

package drivertest

import (
	"context"
	"sync"
	"time"

	"tsodbc/platform/driver/attributes"
	"tsodbc/platform/driver/auth"
	"tsodbc/platform/driver/base"
)

// NewPage builds a VARCHAR page. Every row must have one value per column.
func NewPage(columns []string, rows ...[]string) *base.Page {
	p := &base.Page{}
	for _, c := range columns {
		p.Columns = append(p.Columns, base.ColumnInfo{Name: c, Type: "VARCHAR"})
	}
	for _, r := range rows {
		cells := make([]*string, len(r))
		for i := range r {
			v := r[i]
			cells[i] = &v
		}
		p.Rows = append(p.Rows, cells)
	}
	return p
}

// Cell dereferences a result cell, rendering SQL NULL as "NULL"
func Cell(v *string) string {
	if v == nil {
		return "NULL"
	}
	return *v
}

// StubResolver is a scripted credential resolver
type StubResolver struct {
	Mode        auth.AuthMode
	ValidateErr error
	ResolveErr  error
	Expires     time.Time

	mu       sync.Mutex
	resolved []*auth.Credentials
	attrs    []*attributes.Attributes
}

// Validate returns ValidateErr
func (s *StubResolver) Validate(attrs *attributes.Attributes) (auth.AuthMode, error) {
	return s.Mode, s.ValidateErr
}

// Resolve returns fresh credentials, or ResolveErr
func (s *StubResolver) Resolve(ctx context.Context, attrs *attributes.Attributes) (*auth.Credentials, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attrs = append(s.attrs, attrs.Clone())
	if s.ResolveErr != nil {
		return nil, s.ResolveErr
	}
	c := &auth.Credentials{
		AccessKeyID:     "ASIASTUB",
		SecretAccessKey: "stub-secret",
		SessionToken:    "stub-token",
		Expires:         s.Expires,
		Source:          "stub",
	}
	s.resolved = append(s.resolved, c)
	return c, nil
}

// Issued returns every credential set handed out
func (s *StubResolver) Issued() []*auth.Credentials {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*auth.Credentials, len(s.resolved))
	copy(out, s.resolved)
	return out
}

// SeenAttributes returns copies of the attributes passed to Resolve
func (s *StubResolver) SeenAttributes() []*attributes.Attributes {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*attributes.Attributes, len(s.attrs))
	copy(out, s.attrs)
	return out
}
