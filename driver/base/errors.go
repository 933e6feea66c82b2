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

package base

import "errors"

// ErrorKind classifies driver failures so the call-level layer can map them
// to diagnostic records.
type ErrorKind string

const (
	KindMalformedAttributes    ErrorKind = "MalformedAttributes"
	KindUnsupportedAuthMode    ErrorKind = "UnsupportedAuthMode"
	KindAuthenticationRejected ErrorKind = "AuthenticationRejected"
	KindRoleAssumptionRejected ErrorKind = "RoleAssumptionRejected"
	KindUpstreamFetchFailed    ErrorKind = "UpstreamFetchFailed"
	KindUnsupportedEncoding    ErrorKind = "UnsupportedEncoding"
	KindNotConnected           ErrorKind = "NotConnected"
	KindConfigurationFailed    ErrorKind = "ConfigurationFailed"
)

// Error represents a classified driver failure. Message carries remote
// diagnostic text verbatim when the failure came from an identity provider,
// STS or the query service.
type Error struct {
	Kind    ErrorKind
	Op      string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	prefix := string(e.Kind)
	if e.Op != "" {
		prefix += "." + e.Op
	}
	if e.Cause != nil {
		return prefix + ": " + e.Message + " (cause: " + e.Cause.Error() + ")"
	}
	return prefix + ": " + e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches another *Error of the same kind, so errors.Is works against
// the sentinel values below.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Op == "" && t.Message == "" && t.Kind == e.Kind
}

// NewError creates a new Error
func NewError(kind ErrorKind, op, message string, cause error) *Error {
	return &Error{
		Kind:    kind,
		Op:      op,
		Message: message,
		Cause:   cause,
	}
}

// Sentinels for errors.Is checks.
var (
	ErrMalformedAttributes    = &Error{Kind: KindMalformedAttributes}
	ErrUnsupportedAuthMode    = &Error{Kind: KindUnsupportedAuthMode}
	ErrAuthenticationRejected = &Error{Kind: KindAuthenticationRejected}
	ErrRoleAssumptionRejected = &Error{Kind: KindRoleAssumptionRejected}
	ErrUpstreamFetchFailed    = &Error{Kind: KindUpstreamFetchFailed}
	ErrUnsupportedEncoding    = &Error{Kind: KindUnsupportedEncoding}
	ErrNotConnected           = &Error{Kind: KindNotConnected}
	ErrConfigurationFailed    = &Error{Kind: KindConfigurationFailed}
)

// KindOf returns the kind of the first *Error in err's chain, or "" if there
// is none.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}

// IsKind reports whether err carries the given kind
func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}
