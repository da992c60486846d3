package settlement

import (
	"bytes"
	"context"
	"encoding/csv"
	"strconv"
	"time"

	pkgerrors "github.com/hyeonlabs/guideport-backend/pkg/errors"
	"github.com/hyeonlabs/guideport-backend/pkg/period"
)

var exportHeader = []string{
	"period", "guide_id", "guide_name", "order_count",
	"gross", "fee", "net",
	"payout_status", "payout_method", "payout_reference", "paid_at",
}

// ExportCSV renders the locked guide rows of a period as a CSV document.
// The export is a read-only projection; it never recomputes amounts.
func (s *service) ExportCSV(ctx context.Context, key period.Key) ([]byte, error) {
	detail, err := s.GetRun(ctx, key)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)
	if err := writer.Write(exportHeader); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "write csv header")
	}
	for _, row := range detail.Guides {
		record := []string{
			row.PeriodKey,
			row.GuideID.String(),
			row.GuideName,
			strconv.Itoa(row.OrderCount),
			strconv.FormatInt(row.Gross, 10),
			strconv.FormatInt(row.Fee, 10),
			strconv.FormatInt(row.Net, 10),
			row.PayoutStatus.String(),
			stringOrEmpty(row.PayoutMethod),
			stringOrEmpty(row.PayoutReference),
			timeOrEmpty(row.PaidAt),
		}
		if err := writer.Write(record); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "write csv row")
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "flush csv")
	}
	return buf.Bytes(), nil
}

func stringOrEmpty(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

func timeOrEmpty(value *time.Time) string {
	if value == nil {
		return ""
	}
	return value.UTC().Format(time.RFC3339)
}
