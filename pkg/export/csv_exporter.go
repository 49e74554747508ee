package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
)

// ScheduleColumns is the default column order for exam schedule exports.
// Renderers fall back to it when a dataset does not override the headers.
var ScheduleColumns = []string{
	"Section",
	"Course",
	"Department",
	"Day",
	"Start",
	"End",
	"Day Part",
	"Room",
	"Building",
}

// UnplacedRoomMarker fills the Room column for sections the placement run
// could not seat, so unplaced work stays visible in exported files.
const UnplacedRoomMarker = "UNPLACED"

// Dataset defines tabular export content keyed by column name.
type Dataset struct {
	Headers []string
	Rows    []map[string]string
}

// Columns returns the effective column order for the dataset.
func (d Dataset) Columns() []string {
	if len(d.Headers) > 0 {
		return d.Headers
	}
	return ScheduleColumns
}

// CSVExporter renders schedule datasets into CSV bytes.
type CSVExporter struct{}

// NewCSVExporter builds a CSV exporter.
func NewCSVExporter() *CSVExporter {
	return &CSVExporter{}
}

// Render produces CSV encoded bytes, one row per placement with the schedule
// columns as header.
func (e *CSVExporter) Render(data Dataset) ([]byte, error) {
	columns := data.Columns()
	buf := &bytes.Buffer{}
	writer := csv.NewWriter(buf)
	if err := writer.Write(columns); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	for _, row := range data.Rows {
		record := make([]string, len(columns))
		for i, column := range columns {
			record[i] = row[column]
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}
