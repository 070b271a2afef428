package export

import (
	"bytes"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/require"

	"github.com/runsheetapp/runsheet/internal/store"
)

func intPtr(v int) *int { return &v }

func sampleEvent() *store.Event {
	return &store.Event{
		ID:   "11111111-1111-1111-1111-111111111111",
		Name: "Launch day",
		Activities: []store.Activity{
			{Name: "Doors open", AllottedSeconds: 600, Status: store.StatusCompleted,
				SpentSeconds: intPtr(540), ExtraSeconds: intPtr(0), GainedSeconds: intPtr(60), Position: 0},
			{Name: "Keynote", AllottedSeconds: 1800, Status: store.StatusCompleted,
				SpentSeconds: intPtr(1950), ExtraSeconds: intPtr(150), GainedSeconds: intPtr(0), Position: 1},
			{Name: "Q&A", AllottedSeconds: 900, Status: store.StatusPending, Position: 2},
		},
	}
}

func TestRows(t *testing.T) {
	rows := Rows(sampleEvent())

	require.Len(t, rows, 3)
	require.Equal(t, Row{ActivityName: "Doors open", TimeAllotted: 600, TimeSpent: 540,
		ExtraTimeTaken: 0, TimeGained: 60, IsCompleted: true}, rows[0])
	require.Equal(t, Row{ActivityName: "Q&A", TimeAllotted: 900, IsCompleted: false}, rows[2])
}

func TestRowsTimingIdentity(t *testing.T) {
	for _, row := range Rows(sampleEvent()) {
		if !row.IsCompleted {
			continue
		}
		require.Equal(t, row.TimeAllotted+row.ExtraTimeTaken-row.TimeGained, row.TimeSpent,
			"activity %s", row.ActivityName)
	}
}

func TestWriteCSVGolden(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, Rows(sampleEvent())))

	g := goldie.New(t)
	g.Assert(t, "event_export_csv", buf.Bytes())
}

func TestWriteJSONGolden(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, Rows(sampleEvent())))

	g := goldie.New(t)
	g.Assert(t, "event_export_json", buf.Bytes())
}
