package service

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strings"

	"betfair_go/internal/domain"

	"github.com/shopspring/decimal"
)

// ExportRequest selects the export format and filtering.
type ExportRequest struct {
	Format        string  `json:"format"` // csv or json
	IncludePrices bool    `json:"include_prices"`
	RunnerFilter  []int64 `json:"runner_filter,omitempty"`
}

// ExportResult is a rendered export ready to stream to the client.
type ExportResult struct {
	Content     []byte
	ContentType string
	FileName    string
}

// Export renders a stored parse result in the requested format.
func (s *ParseService) Export(fileID string, req ExportRequest) (*ExportResult, error) {
	resp, err := s.GetFile(fileID)
	if err != nil {
		return nil, err
	}

	switch strings.ToLower(req.Format) {
	case "csv":
		content, err := exportCSV(resp.Markets, req.IncludePrices, req.RunnerFilter)
		if err != nil {
			return nil, err
		}
		return &ExportResult{Content: content, ContentType: "text/csv", FileName: fileID + ".csv"}, nil
	case "json":
		content, err := json.MarshalIndent(resp, "", "  ")
		if err != nil {
			return nil, err
		}
		return &ExportResult{Content: content, ContentType: "application/json", FileName: fileID + ".json"}, nil
	default:
		return nil, fmt.Errorf("unsupported export format %q", req.Format)
	}
}

// exportCSV flattens the market snapshots to one row per runner.
func exportCSV(markets []domain.Market, includePrices bool, filter []int64) ([]byte, error) {
	keep := func(int64) bool { return true }
	if len(filter) > 0 {
		set := make(map[int64]struct{}, len(filter))
		for _, id := range filter {
			set[id] = struct{}{}
		}
		keep = func(id int64) bool {
			_, ok := set[id]
			return ok
		}
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := []string{"Market ID", "Market Name", "Event Name", "Runner ID", "Runner Name", "Status"}
	if includePrices {
		header = append(header, "Last Traded", "Near Price", "Far Price", "Actual SP", "Back Vol", "Lay Vol")
	}
	if err := w.Write(header); err != nil {
		return nil, err
	}

	for _, m := range markets {
		for _, r := range m.Runners {
			if !keep(r.SelectionID) {
				continue
			}
			row := []string{
				m.MarketID,
				m.MarketName,
				m.EventName,
				fmt.Sprintf("%d", r.SelectionID),
				r.RunnerName,
				string(r.Status),
			}
			if includePrices {
				backVol := sumVolumes(r.EX.AvailableToBack)
				layVol := sumVolumes(r.EX.AvailableToLay)
				row = append(row,
					decimalOrEmpty(r.LastPriceTraded),
					bspField(r.BSP, func(b *domain.RunnerBSP) string { return decimalOrEmpty(b.NearPrice) }),
					bspField(r.BSP, func(b *domain.RunnerBSP) string { return decimalOrEmpty(b.FarPrice) }),
					bspField(r.BSP, func(b *domain.RunnerBSP) string { return decimalOrEmpty(b.ActualSP) }),
					backVol,
					layVol,
				)
			}
			if err := w.Write(row); err != nil {
				return nil, err
			}
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func sumVolumes(levels []domain.PriceVolume) string {
	l := domain.Ladder{Levels: levels}
	return l.TotalVolume().String()
}

func decimalOrEmpty(d *decimal.Decimal) string {
	if d == nil {
		return ""
	}
	return d.String()
}

func bspField(b *domain.RunnerBSP, f func(*domain.RunnerBSP) string) string {
	if b == nil {
		return ""
	}
	return f(b)
}
