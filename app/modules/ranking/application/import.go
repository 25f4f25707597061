package rankingservice

import (
	"context"
	"fmt"
	"io"

	rankingevents "github.com/Black-And-White-Club/courtrank/app/modules/ranking/events"
	"github.com/Black-And-White-Club/courtrank/internal/observability/attr"
	"github.com/google/uuid"
)

// ImportMatches parses a CSV or XLSX match sheet and submits each row in
// order. Unreadable and rejected rows are reported; they do not stop the
// rest of the sheet. Only a parse failure of the whole file or an infrastructure
// error from SubmitMatch is returned as an error.
func (s *RankingService) ImportMatches(ctx context.Context, filename string, r io.Reader) (ImportReport, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return ImportReport{}, fmt.Errorf("ImportMatches: failed to read upload: %w", err)
	}

	parser, err := s.parsers.GetParser(filename)
	if err != nil {
		return ImportReport{}, fmt.Errorf("ImportMatches: %w: %v", ErrUnreadableSheet, err)
	}
	sheet, err := parser.Parse(data)
	if err != nil {
		return ImportReport{}, fmt.Errorf("ImportMatches: %w: %s: %v", ErrUnreadableSheet, filename, err)
	}

	report := ImportReport{
		BatchID: uuid.New().String(),
		Rows:    make([]ImportRow, 0, len(sheet.Rows)),
	}
	s.logger.InfoContext(ctx, "Importing match sheet",
		attr.ExtractCorrelationID(ctx),
		attr.String("batch_id", report.BatchID),
		attr.String("filename", filename),
		attr.Int("rows", len(sheet.Rows)),
	)

	for _, row := range sheet.Rows {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		line := ImportRow{Row: row.Row, MatchID: row.Submission.MatchID}
		if row.Err != nil {
			line.Status = ImportRejected
			line.Code = rankingevents.RejectUnreadableRow
			line.Reason = row.Err.Error()
			report.Rejected++
			report.Rows = append(report.Rows, line)
			continue
		}

		result, err := s.SubmitMatch(ctx, row.Submission)
		if err != nil {
			return report, fmt.Errorf("ImportMatches: row %d: %w", row.Row, err)
		}

		switch {
		case result.IsFailure():
			line.Status = ImportRejected
			line.Code = result.Failure.Code
			line.Reason = result.Failure.Reason
			report.Rejected++
		case result.Success.Replayed:
			line.Status = ImportReplayed
			report.Accepted++
		default:
			line.Status = ImportAccepted
			report.Accepted++
		}
		report.Rows = append(report.Rows, line)
	}

	s.logger.InfoContext(ctx, "Match sheet imported",
		attr.ExtractCorrelationID(ctx),
		attr.String("batch_id", report.BatchID),
		attr.Int("accepted", report.Accepted),
		attr.Int("rejected", report.Rejected),
	)
	return report, nil
}
