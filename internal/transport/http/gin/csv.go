package httpgin

import (
	"bytes"
	"encoding/csv"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/vharuk/ticketd/internal/domain"
)

var csvHeader = []string{
	"id", "timestamp", "date", "eventId", "eventName",
	"quantity", "total", "breakdown", "cancelled",
}

// writeCSV renders purchases as a CSV attachment. The leading BOM keeps
// spreadsheet imports from mangling non-ASCII event names.
func writeCSV(c *gin.Context, list []domain.Purchase) {
	var buf bytes.Buffer
	buf.Write([]byte{0xEF, 0xBB, 0xBF})

	w := csv.NewWriter(&buf)
	_ = w.Write(csvHeader)

	for _, p := range list {
		_ = w.Write([]string{
			strconv.FormatInt(p.ID, 10),
			strconv.FormatInt(p.Timestamp, 10),
			time.UnixMilli(p.Timestamp).UTC().Format(time.RFC3339),
			strconv.FormatInt(p.EventID, 10),
			p.EventName,
			strconv.FormatInt(p.Quantity, 10),
			p.Total.String(),
			formatBreakdown(p.Breakdown),
			yesNo(p.Cancelled),
		})
	}

	w.Flush()
	if err := w.Error(); err != nil {
		c.Status(http.StatusInternalServerError)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="purchases.csv"`)
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

// formatBreakdown joins breakdown lines as "2x5;1x10" (count x price).
func formatBreakdown(lines []domain.BreakdownLine) string {
	parts := make([]string, 0, len(lines))
	for _, l := range lines {
		parts = append(parts, strconv.FormatInt(l.Count, 10)+"x"+l.Price.String())
	}

	return strings.Join(parts, ";")
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
