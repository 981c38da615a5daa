package jobs

import (
	"bytes"
	"encoding/csv"
	"strconv"
	"time"

	"github.com/iliyamo/parking-reservation/internal/model"
	"github.com/iliyamo/parking-reservation/internal/service"
)

var exportHeader = []string{"reservation_id", "lot_id", "spot_id", "parked_at", "left_at", "cost_cents", "status"}

// BuildCSV renders sessions as CSV, one row per reservation.  Open
// reservations have empty left_at and cost_cents columns; a closed one
// without a stored cost is billed from its lot price.
func BuildCSV(sessions []model.Session) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(exportHeader); err != nil {
		return nil, err
	}
	for _, s := range sessions {
		leftAt, cost, status := "", "", service.StatusActive
		if s.LeftAt != nil {
			leftAt = s.LeftAt.UTC().Format(time.RFC3339)
			status = service.StatusParkedOut
			cost = strconv.FormatInt(service.SessionCost(s), 10)
		}
		row := []string{
			strconv.FormatUint(s.ID, 10),
			strconv.FormatUint(s.LotID, 10),
			strconv.FormatUint(s.SpotID, 10),
			s.ParkedAt.UTC().Format(time.RFC3339),
			leftAt,
			cost,
			status,
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}
