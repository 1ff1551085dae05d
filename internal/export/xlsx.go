// Package export writes funnel session reports as XLSX workbooks.
package export

import (
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/funnel-wizard/internal/monitoring"
	"github.com/sells-group/funnel-wizard/internal/store"
)

// WriteSessionReport writes a workbook with one sheet of raw sessions and
// one sheet of funnel metrics.
func WriteSessionReport(path string, sessions []store.SessionRecord, snap *monitoring.MetricsSnapshot) error {
	f := xlsx.NewFile()

	if err := addSessionsSheet(f, sessions); err != nil {
		return err
	}
	if snap != nil {
		if err := addFunnelSheet(f, snap); err != nil {
			return err
		}
	}

	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "export: save %s", path)
	}
	return nil
}

func addSessionsSheet(f *xlsx.File, sessions []store.SessionRecord) error {
	sheet, err := f.AddSheet("Sessions")
	if err != nil {
		return eris.Wrap(err, "export: add sessions sheet")
	}

	header := sheet.AddRow()
	for _, h := range []string{"Session ID", "Client", "Product", "Max Step", "Total Steps", "Completed", "Started At"} {
		header.AddCell().SetString(h)
	}

	for _, s := range sessions {
		row := sheet.AddRow()
		row.AddCell().SetString(s.ID)
		row.AddCell().SetString(strOrEmpty(s.ClientName))
		row.AddCell().SetString(strOrEmpty(s.Product))
		row.AddCell().SetInt(s.MaxStep)
		row.AddCell().SetInt(s.TotalSteps)
		row.AddCell().SetBool(s.Completed)
		row.AddCell().SetString(s.StartedAt.UTC().Format(time.RFC3339))
	}
	return nil
}

func addFunnelSheet(f *xlsx.File, snap *monitoring.MetricsSnapshot) error {
	sheet, err := f.AddSheet("Funnel")
	if err != nil {
		return eris.Wrap(err, "export: add funnel sheet")
	}

	row := sheet.AddRow()
	row.AddCell().SetString("Sessions")
	row.AddCell().SetInt(snap.SessionsTotal)

	row = sheet.AddRow()
	row.AddCell().SetString("Completed")
	row.AddCell().SetInt(snap.SessionsCompleted)

	row = sheet.AddRow()
	row.AddCell().SetString("Completion rate")
	row.AddCell().SetFloat(snap.CompletionRate)

	sheet.AddRow()
	header := sheet.AddRow()
	header.AddCell().SetString("Product")
	header.AddCell().SetString("Total")
	header.AddCell().SetString("Completed")
	header.AddCell().SetString("Completion rate")

	for _, product := range sortedKeys(snap.ByProduct) {
		pf := snap.ByProduct[product]
		row = sheet.AddRow()
		row.AddCell().SetString(product)
		row.AddCell().SetInt(pf.Total)
		row.AddCell().SetInt(pf.Completed)
		row.AddCell().SetFloat(pf.CompletionRate)
	}

	sheet.AddRow()
	header = sheet.AddRow()
	header.AddCell().SetString("Drop-off step")
	header.AddCell().SetString("Sessions")

	steps := make([]int, 0, len(snap.DropOffByStep))
	for step := range snap.DropOffByStep {
		steps = append(steps, step)
	}
	sort.Ints(steps)
	for _, step := range steps {
		row = sheet.AddRow()
		row.AddCell().SetInt(step)
		row.AddCell().SetInt(snap.DropOffByStep[step])
	}
	return nil
}

func sortedKeys(m map[string]monitoring.ProductFunnel) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func strOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
