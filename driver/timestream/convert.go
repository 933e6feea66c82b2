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

package timestream

import (
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/timestreamquery"
	"github.com/aws/aws-sdk-go-v2/service/timestreamquery/types"

	"tsodbc/platform/driver/base"
)

func convertPage(out *timestreamquery.QueryOutput) *base.Page {
	page := &base.Page{Columns: make([]base.ColumnInfo, len(out.ColumnInfo))}
	for i, c := range out.ColumnInfo {
		page.Columns[i] = base.ColumnInfo{Name: aws.ToString(c.Name), Type: typeName(c.Type)}
	}
	page.Rows = make([][]*string, len(out.Rows))
	for i, row := range out.Rows {
		cells := make([]*string, len(row.Data))
		for j := range row.Data {
			cells[j] = renderDatum(row.Data[j])
		}
		page.Rows[i] = cells
	}
	return page
}

// typeName renders a column type: scalar names as-is, complex types as
// ARRAY(...), ROW(...) or TIMESERIES(...)
func typeName(t *types.Type) string {
	if t == nil {
		return "UNKNOWN"
	}
	switch {
	case t.ScalarType != "":
		return string(t.ScalarType)
	case t.ArrayColumnInfo != nil:
		return "ARRAY(" + typeName(t.ArrayColumnInfo.Type) + ")"
	case t.TimeSeriesMeasureValueColumnInfo != nil:
		return "TIMESERIES(" + typeName(t.TimeSeriesMeasureValueColumnInfo.Type) + ")"
	case len(t.RowColumnInfo) > 0:
		parts := make([]string, len(t.RowColumnInfo))
		for i, c := range t.RowColumnInfo {
			parts[i] = typeName(c.Type)
		}
		return "ROW(" + strings.Join(parts, ", ") + ")"
	}
	return "UNKNOWN"
}

// renderDatum returns nil for SQL NULL and the textual form otherwise
func renderDatum(d types.Datum) *string {
	if aws.ToBool(d.NullValue) {
		return nil
	}
	s := datumText(d)
	return &s
}

func datumText(d types.Datum) string {
	switch {
	case aws.ToBool(d.NullValue):
		return "NULL"
	case d.ScalarValue != nil:
		return *d.ScalarValue
	case d.ArrayValue != nil:
		parts := make([]string, len(d.ArrayValue))
		for i, v := range d.ArrayValue {
			parts[i] = datumText(v)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case d.RowValue != nil:
		parts := make([]string, len(d.RowValue.Data))
		for i, v := range d.RowValue.Data {
			parts[i] = datumText(v)
		}
		return "(" + strings.Join(parts, ", ") + ")"
	case d.TimeSeriesValue != nil:
		parts := make([]string, len(d.TimeSeriesValue))
		for i, p := range d.TimeSeriesValue {
			value := "NULL"
			if p.Value != nil {
				value = datumText(*p.Value)
			}
			parts[i] = "{time: " + aws.ToString(p.Time) + ", value: " + value + "}"
		}
		return "[" + strings.Join(parts, ", ") + "]"
	}
	return ""
}
