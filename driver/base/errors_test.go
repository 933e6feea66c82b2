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

import (
	"errors"
	"fmt"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name    string
		err     *Error
		wantMsg string
	}{
		{
			name:    "without cause",
			err:     NewError(KindMalformedAttributes, "Parse", "missing closing brace", nil),
			wantMsg: "MalformedAttributes.Parse: missing closing brace",
		},
		{
			name:    "with cause",
			err:     NewError(KindUpstreamFetchFailed, "FetchNextPage", "page fetch failed", errors.New("throttled")),
			wantMsg: "UpstreamFetchFailed.FetchNextPage: page fetch failed (cause: throttled)",
		},
		{
			name:    "without op",
			err:     NewError(KindUnsupportedEncoding, "", "EBCDIC is not supported", nil),
			wantMsg: "UnsupportedEncoding: EBCDIC is not supported",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMsg {
				t.Errorf("Error() = %q, want %q", got, tt.wantMsg)
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := NewError(KindAuthenticationRejected, "Authenticate", "bad password", cause)

	if !errors.Is(err, cause) {
		t.Error("expected errors.Is to find the cause")
	}
	if err.Unwrap() != cause {
		t.Error("Unwrap() should return the cause")
	}
}

func TestKindMatching(t *testing.T) {
	inner := NewError(KindRoleAssumptionRejected, "AssumeRoleWithSAML", "Not authorized", nil)
	wrapped := fmt.Errorf("setup: %w", inner)

	if !errors.Is(wrapped, ErrRoleAssumptionRejected) {
		t.Error("expected wrapped error to match its sentinel")
	}
	if errors.Is(wrapped, ErrAuthenticationRejected) {
		t.Error("did not expect a match against a different kind")
	}
	if KindOf(wrapped) != KindRoleAssumptionRejected {
		t.Errorf("KindOf = %q", KindOf(wrapped))
	}
	if !IsKind(wrapped, KindRoleAssumptionRejected) {
		t.Error("IsKind should be true")
	}
	if IsKind(nil, KindRoleAssumptionRejected) {
		t.Error("IsKind(nil) should be false")
	}
	if KindOf(errors.New("plain")) != "" {
		t.Error("plain errors have no kind")
	}
}

func TestConnectionStatusString(t *testing.T) {
	tests := map[ConnectionStatus]string{
		StatusBad:            "Bad",
		StatusNeeded:         "Needed",
		StatusOk:             "Ok",
		ConnectionStatus(42): "Unknown",
	}
	for s, want := range tests {
		if s.String() != want {
			t.Errorf("%d.String() = %q, want %q", int(s), s.String(), want)
		}
	}
}

func TestPendingResultConstructors(t *testing.T) {
	v := "1"
	page := &Page{
		Columns: []ColumnInfo{{Name: "a", Type: "BIGINT"}, {Name: "b", Type: "VARCHAR"}},
		Rows:    [][]*string{{&v, nil}},
	}

	r := NewRowsResult(page)
	if r.Kind != ResultRows || r.FieldCount != 2 || r.RowCount() != 1 {
		t.Errorf("unexpected rows result: %+v", r)
	}

	e := NewErrorResult(errors.New("boom"))
	if e.Kind != ResultError || e.Err == nil || e.RowCount() != 0 {
		t.Errorf("unexpected error result: %+v", e)
	}

	var nilResult *PendingResult
	if nilResult.RowCount() != 0 {
		t.Error("nil result has zero rows")
	}
}
