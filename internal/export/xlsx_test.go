package export

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/funnel-wizard/internal/monitoring"
	"github.com/sells-group/funnel-wizard/internal/store"
)

func strPtr(s string) *string { return &s }

func TestWriteSessionReport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.xlsx")

	sessions := []store.SessionRecord{
		{
			ID:         "sess-1",
			ClientName: strPtr("Acme Plumbing"),
			Product:    strPtr("SEO"),
			MaxStep:    9,
			TotalSteps: 9,
			Completed:  true,
			StartedAt:  time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC),
		},
		{ID: "sess-2", MaxStep: 3, TotalSteps: 9},
	}
	snap := &monitoring.MetricsSnapshot{
		SessionsTotal:     2,
		SessionsCompleted: 1,
		CompletionRate:    0.5,
		ByProduct: map[string]monitoring.ProductFunnel{
			"SEO":          {Total: 1, Completed: 1, CompletionRate: 1},
			"unclassified": {Total: 1},
		},
		DropOffByStep: map[int]int{3: 1},
	}

	require.NoError(t, WriteSessionReport(path, sessions, snap))

	f, err := xlsx.OpenFile(path)
	require.NoError(t, err)
	require.Len(t, f.Sheets, 2)

	sheet := f.Sheet["Sessions"]
	require.NotNil(t, sheet)
	require.Len(t, sheet.Rows, 3)
	assert.Equal(t, "Session ID", sheet.Rows[0].Cells[0].String())
	assert.Equal(t, "sess-1", sheet.Rows[1].Cells[0].String())
	assert.Equal(t, "Acme Plumbing", sheet.Rows[1].Cells[1].String())
	assert.Equal(t, "SEO", sheet.Rows[1].Cells[2].String())
	assert.Equal(t, "2025-03-14T09:00:00Z", sheet.Rows[1].Cells[6].String())
	assert.Equal(t, "", sheet.Rows[2].Cells[2].String(), "missing product stays blank")

	funnelSheet := f.Sheet["Funnel"]
	require.NotNil(t, funnelSheet)
	assert.Equal(t, "Sessions", funnelSheet.Rows[0].Cells[0].String())
	total, err := funnelSheet.Rows[0].Cells[1].Int()
	require.NoError(t, err)
	assert.Equal(t, 2, total)
}

func TestWriteSessionReport_NoSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.xlsx")

	require.NoError(t, WriteSessionReport(path, nil, nil))

	f, err := xlsx.OpenFile(path)
	require.NoError(t, err)
	require.Len(t, f.Sheets, 1)
	assert.Equal(t, "Sessions", f.Sheets[0].Name)
}
