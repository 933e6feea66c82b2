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

package communication

import (
	"fmt"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"

	"tsodbc/platform/driver/base"
)

// DefaultEncoding is the client encoding of a new facade
const DefaultEncoding = "UTF8"

// ClientEncoding is a named character encoding the client may request
type ClientEncoding struct {
	Name string
	enc  encoding.Encoding
}

var clientEncodings = []struct {
	ClientEncoding
	aliases []string
}{
	{ClientEncoding{"UTF8", unicode.UTF8}, []string{"UTF8"}},
	{ClientEncoding{"UTF16LE", unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)}, []string{"UTF16LE", "UTF16", "UCS2"}},
	{ClientEncoding{"LATIN1", charmap.ISO8859_1}, []string{"LATIN1", "ISO88591", "L1"}},
	{ClientEncoding{"WIN1252", charmap.Windows1252}, []string{"WIN1252", "WINDOWS1252", "CP1252"}},
}

// normalizeEncodingName folds case and drops separators so that "utf-8",
// "UTF_8" and "Utf8" compare equal.
func normalizeEncodingName(name string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '-', '_', ' ', '.':
			return -1
		}
		return r
	}, strings.ToUpper(strings.TrimSpace(name)))
}

// LookupEncoding finds a supported encoding by name or alias
func LookupEncoding(name string) (ClientEncoding, bool) {
	n := normalizeEncodingName(name)
	for _, e := range clientEncodings {
		for _, a := range e.aliases {
			if a == n {
				return e.ClientEncoding, true
			}
		}
	}
	return ClientEncoding{}, false
}

// SupportedEncodings lists the canonical names of supported encodings
func SupportedEncodings() []string {
	names := make([]string, 0, len(clientEncodings))
	for _, e := range clientEncodings {
		names = append(names, e.Name)
	}
	return names
}

// Encode converts UTF-8 text to the client encoding
func (e ClientEncoding) Encode(s string) ([]byte, error) {
	out, err := e.enc.NewEncoder().Bytes([]byte(s))
	if err != nil {
		return nil, base.NewError(base.KindUnsupportedEncoding, "Encode",
			fmt.Sprintf("text cannot be represented in %s", e.Name), err)
	}
	return out, nil
}

// Decode converts client-encoded bytes to UTF-8 text
func (e ClientEncoding) Decode(b []byte) (string, error) {
	out, err := e.enc.NewDecoder().Bytes(b)
	if err != nil {
		return "", base.NewError(base.KindUnsupportedEncoding, "Decode",
			fmt.Sprintf("input is not valid %s", e.Name), err)
	}
	return string(out), nil
}
