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

import "regexp"

// secretPattern matches a secret-bearing pair in an unparsed attribute string.
// The value alternatives are tried in order: a closed brace span, an
// unterminated brace span (masks to the end), a plain value.
var secretPattern = regexp.MustCompile(`(?i)(^|;)(\s*(?:PWD|AADClientSecret|SessionToken)\s*)=(\{(?:[^}]|\}\})*\}|\{.*|[^;]*)`)

// MaskRaw masks secret values in a raw attribute string so it can be logged
// even when it does not parse.
func MaskRaw(raw string) string {
	return secretPattern.ReplaceAllString(raw, "${1}${2}="+redactedValue)
}
