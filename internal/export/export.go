// Package export serializes a run sheet's activities for download. It reads
// committed values only; timing fields are already in their final form once
// an activity completes.
package export

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"

	"github.com/runsheetapp/runsheet/internal/store"
)

// Row is one exported activity. Timing fields are zero for activities that
// have not completed.
type Row struct {
	ActivityName   string `json:"activityName"`
	TimeAllotted   int    `json:"timeAllotted"`
	TimeSpent      int    `json:"timeSpent"`
	ExtraTimeTaken int    `json:"extraTimeTaken"`
	TimeGained     int    `json:"timeGained"`
	IsCompleted    bool   `json:"isCompleted"`
}

// Rows flattens an event's activities in order.
func Rows(ev *store.Event) []Row {
	rows := make([]Row, 0, len(ev.Activities))
	for _, a := range ev.Activities {
		rows = append(rows, Row{
			ActivityName:   a.Name,
			TimeAllotted:   a.AllottedSeconds,
			TimeSpent:      intOrZero(a.SpentSeconds),
			ExtraTimeTaken: intOrZero(a.ExtraSeconds),
			TimeGained:     intOrZero(a.GainedSeconds),
			IsCompleted:    a.Status == store.StatusCompleted,
		})
	}
	return rows
}

// WriteCSV writes rows with a header line.
func WriteCSV(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"activityName", "timeAllotted", "timeSpent", "extraTimeTaken", "timeGained", "isCompleted"}); err != nil {
		return err
	}
	for _, r := range rows {
		record := []string{
			r.ActivityName,
			strconv.Itoa(r.TimeAllotted),
			strconv.Itoa(r.TimeSpent),
			strconv.Itoa(r.ExtraTimeTaken),
			strconv.Itoa(r.TimeGained),
			strconv.FormatBool(r.IsCompleted),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteJSON writes rows as an indented JSON array.
func WriteJSON(w io.Writer, rows []Row) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rows)
}

func intOrZero(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}
