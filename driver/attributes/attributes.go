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

package attributes

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"tsodbc/platform/driver/base"
)

const redactedValue = "***"

type entry struct {
	name  string
	value string
}

// Attributes is an ordered, case-insensitive mapping of connection
// attributes. The zero value is not usable; use New or Parse.
type Attributes struct {
	entries []entry
	index   map[string]int // lower-case name -> position in entries
}

// New returns an empty attribute set
func New() *Attributes {
	return &Attributes{index: make(map[string]int)}
}

// FromMap builds attributes from a plain map. Known keys come first, then
// unknown ones, each group sorted by name.
func FromMap(m map[string]string) *Attributes {
	a := New()
	for _, k := range orderedKeys(m) {
		a.Set(k, m[k])
	}
	return a
}

// Set stores value under key. Known keys are stored with canonical casing.
// A repeated key overwrites the value and keeps its original position.
func (a *Attributes) Set(key, value string) {
	name, _ := Canonical(strings.TrimSpace(key))
	lower := strings.ToLower(name)
	if i, ok := a.index[lower]; ok {
		a.entries[i].value = value
		return
	}
	a.index[lower] = len(a.entries)
	a.entries = append(a.entries, entry{name: name, value: value})
}

// Lookup returns the value for key and whether it is present
func (a *Attributes) Lookup(key string) (string, bool) {
	if a == nil {
		return "", false
	}
	i, ok := a.index[strings.ToLower(strings.TrimSpace(key))]
	if !ok {
		return "", false
	}
	return a.entries[i].value, true
}

// Get returns the value for key or "" when absent
func (a *Attributes) Get(key string) string {
	v, _ := a.Lookup(key)
	return v
}

// Has reports whether key is present with a non-blank value
func (a *Attributes) Has(key string) bool {
	return strings.TrimSpace(a.Get(key)) != ""
}

// Delete removes key if present
func (a *Attributes) Delete(key string) {
	lower := strings.ToLower(strings.TrimSpace(key))
	i, ok := a.index[lower]
	if !ok {
		return
	}
	a.entries = append(a.entries[:i], a.entries[i+1:]...)
	delete(a.index, lower)
	for j := i; j < len(a.entries); j++ {
		a.index[strings.ToLower(a.entries[j].name)] = j
	}
}

// Keys returns attribute names in insertion order
func (a *Attributes) Keys() []string {
	if a == nil {
		return nil
	}
	keys := make([]string, len(a.entries))
	for i, e := range a.entries {
		keys[i] = e.name
	}
	return keys
}

// Len returns the number of attributes
func (a *Attributes) Len() int {
	if a == nil {
		return 0
	}
	return len(a.entries)
}

// Clone returns an independent copy
func (a *Attributes) Clone() *Attributes {
	c := New()
	if a == nil {
		return c
	}
	for _, e := range a.entries {
		c.Set(e.name, e.value)
	}
	return c
}

// Merge returns a copy of a with every attribute of over applied on top.
// DSN defaults are merged under connection-string values this way.
func (a *Attributes) Merge(over *Attributes) *Attributes {
	c := a.Clone()
	if over == nil {
		return c
	}
	for _, e := range over.entries {
		c.Set(e.name, e.value)
	}
	return c
}

// Without returns a copy with the given keys removed
func (a *Attributes) Without(keys ...string) *Attributes {
	c := a.Clone()
	for _, k := range keys {
		c.Delete(k)
	}
	return c
}

// Map returns the attributes as a plain map keyed by stored name
func (a *Attributes) Map() map[string]string {
	m := make(map[string]string, a.Len())
	if a == nil {
		return m
	}
	for _, e := range a.entries {
		m[e.name] = e.value
	}
	return m
}

// Equal reports whether both sets hold the same names and values in the same
// order.
func (a *Attributes) Equal(b *Attributes) bool {
	if a.Len() != b.Len() {
		return false
	}
	if a.Len() == 0 {
		return true
	}
	for i := range a.entries {
		if a.entries[i] != b.entries[i] {
			return false
		}
	}
	return true
}

// Int parses key as an integer. Absent or blank values return fallback.
func (a *Attributes) Int(key string, fallback int) (int, error) {
	v := strings.TrimSpace(a.Get(key))
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		name, _ := Canonical(key)
		return fallback, base.NewError(base.KindMalformedAttributes, "Int",
			fmt.Sprintf("attribute %s is not an integer: %q", name, v), err)
	}
	return n, nil
}

// String serialises the attributes back to connection-string form. Values
// that would not survive a round trip unquoted are brace-quoted with '}'
// doubled.
func (a *Attributes) String() string {
	return a.render(false)
}

// Redacted is String with every secret-bearing value replaced by ***.
func (a *Attributes) Redacted() string {
	return a.render(true)
}

func (a *Attributes) render(redact bool) string {
	if a == nil {
		return ""
	}
	var sb strings.Builder
	for _, e := range a.entries {
		v := e.value
		if redact && IsSecret(e.name) && v != "" {
			v = redactedValue
		}
		sb.WriteString(e.name)
		sb.WriteByte('=')
		sb.WriteString(quote(v))
		sb.WriteByte(';')
	}
	return sb.String()
}

func quote(v string) string {
	if !strings.ContainsRune(v, ';') && !strings.HasPrefix(v, "{") {
		return v
	}
	return "{" + strings.ReplaceAll(v, "}", "}}") + "}"
}

func orderedKeys(m map[string]string) []string {
	var known, unknown []string
	for k := range m {
		if _, ok := Canonical(k); ok {
			known = append(known, k)
		} else {
			unknown = append(unknown, k)
		}
	}
	sort.Strings(known)
	sort.Strings(unknown)
	return append(known, unknown...)
}
