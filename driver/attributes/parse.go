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
	"strings"

	"tsodbc/platform/driver/base"
)

const (
	delimiter    = ';'
	openBrace    = '{'
	closingBrace = '}'
)

// Parse tokenizes a semicolon-delimited key=value attribute string.
//
// A value starting with '{' is brace-quoted: it may contain ';', a doubled
// '}}' stands for a literal '}', and the first single '}' closes it. The
// closing brace must be followed by ';' or the end of the input. Segments
// without '=' are skipped. Later duplicates overwrite earlier ones.
func Parse(raw string) (*Attributes, error) {
	attrs := New()

	i := 0
	for i < len(raw) {
		eq := -1
		j := i
		for ; j < len(raw) && raw[j] != delimiter; j++ {
			if raw[j] == '=' {
				eq = j
				break
			}
		}
		if eq < 0 {
			i = j + 1
			continue
		}

		key := strings.TrimSpace(raw[i:eq])
		start := eq + 1

		var value string
		if start < len(raw) && raw[start] == openBrace {
			v, next, err := readBraced(raw, start, key)
			if err != nil {
				return nil, err
			}
			value, i = v, next
		} else {
			end := strings.IndexByte(raw[start:], delimiter)
			if end < 0 {
				value, i = raw[start:], len(raw)
			} else {
				value, i = raw[start:start+end], start+end+1
			}
		}

		if key == "" {
			continue
		}
		attrs.Set(key, value)
	}

	return attrs, nil
}

// readBraced reads a brace-quoted value starting at raw[start] == '{'. It
// returns the unescaped value and the index just past the value's delimiter.
func readBraced(raw string, start int, key string) (string, int, error) {
	var sb strings.Builder
	p := start + 1
	for p < len(raw) {
		c := raw[p]
		if c != closingBrace {
			sb.WriteByte(c)
			p++
			continue
		}
		if p+1 < len(raw) && raw[p+1] == closingBrace {
			sb.WriteByte(closingBrace)
			p += 2
			continue
		}
		next := p + 1
		if next == len(raw) {
			return sb.String(), next, nil
		}
		if raw[next] == delimiter {
			return sb.String(), next + 1, nil
		}
		return "", 0, base.NewError(base.KindMalformedAttributes, "Parse",
			fmt.Sprintf("unexpected character %q after closing brace of attribute %s", raw[next], displayKey(key)), nil)
	}
	return "", 0, base.NewError(base.KindMalformedAttributes, "Parse",
		fmt.Sprintf("missing closing brace for attribute %s", displayKey(key)), nil)
}

func displayKey(key string) string {
	if key == "" {
		return "<unnamed>"
	}
	name, _ := Canonical(key)
	return name
}
