package negotiation

import (
	"bytes"
	"strconv"
	"strings"
	"time"

	"github.com/dukerupert/splitweek/internal/model"
)

const csvHeader = "Id,ChildId,RequestedBy,Status,Reason,OriginalData,ProposedData,CounterData,ExpiresAt,RespondedAt,CreatedAt"

// Round-trip timestamp layout with seven fractional digits.
const csvTimeLayout = "2006-01-02T15:04:05.0000000Z07:00"

// escapeCSV quotes a field only when it holds a comma, quote or line
// break. Unlike encoding/csv it leaves leading spaces unquoted.
func escapeCSV(s string) string {
	if s == "" {
		return ""
	}
	if !strings.ContainsAny(s, ",\"\n\r") {
		return s
	}
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func optional(s *string) string {
	if s == nil {
		return ""
	}
	return escapeCSV(*s)
}

func csvTime(t time.Time) string {
	return t.UTC().Format(csvTimeLayout)
}

func renderCSV(reqs []model.ChangeRequest) []byte {
	var buf bytes.Buffer
	buf.WriteString(csvHeader)
	buf.WriteByte('\n')

	for _, r := range reqs {
		responded := ""
		if r.RespondedAt != nil {
			responded = csvTime(*r.RespondedAt)
		}
		fields := []string{
			strconv.FormatInt(r.ID, 10),
			strconv.FormatInt(r.ChildID, 10),
			escapeCSV(r.RequestedByName),
			r.Status,
			optional(r.Reason),
			escapeCSV(r.OriginalData),
			escapeCSV(r.ProposedData),
			optional(r.CounterData),
			csvTime(r.ExpiresAt),
			responded,
			csvTime(r.CreatedAt),
		}
		buf.WriteString(strings.Join(fields, ","))
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}
