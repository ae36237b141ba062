package output

import (
	"io"
	"strconv"

	"github.com/marmos91/dittoftl/pkg/ftl"
	"github.com/marmos91/dittoftl/pkg/ftl/mngt"
)

// BandTable renders a device report one band per row.
type BandTable ftl.Report

func (t BandTable) Headers() []string {
	return []string{"ID", "Group", "State", "Type", "Owner", "Queue", "Offset", "Start"}
}

func (t BandTable) Rows() [][]string {
	rows := make([][]string, 0, len(t.Bands))
	for _, b := range t.Bands {
		group := strconv.FormatUint(b.PhysID, 10)
		queue := b.Queue
		if b.Dropped {
			group = "-"
			queue = "dropped"
		}
		rows = append(rows, []string{
			strconv.FormatUint(b.ID, 10),
			group,
			orDash(b.State),
			orDash(b.Type),
			orDash(b.Owner),
			orDash(queue),
			strconv.FormatUint(b.IterOffset, 10),
			strconv.FormatUint(b.StartAddr, 10),
		})
	}
	return rows
}

// PrintSummary writes the device-level counters of a report.
func PrintSummary(w io.Writer, r ftl.Report) error {
	return PrintKeyValues(w, [][2]string{
		{"Device", r.Device},
		{"Usable bands", strconv.FormatUint(r.NumBands, 10)},
		{"Blocks per band", strconv.FormatUint(r.BlocksPerBand, 10)},
		{"Free", strconv.FormatUint(r.NumFree, 10)},
		{"Shut", strconv.FormatUint(r.NumShut, 10)},
		{"User writer", strconv.FormatUint(r.UserBands, 10)},
		{"GC writer", strconv.FormatUint(r.GCBands, 10)},
		{"Limit", r.Level},
		{"Clean", strconv.FormatBool(r.Clean)},
	})
}

// StepTable renders the steps of a management process.
type StepTable mngt.Result

func (t StepTable) Headers() []string {
	return []string{"Step", "Duration", "Status"}
}

func (t StepTable) Rows() [][]string {
	rows := make([][]string, 0, len(t.Steps))
	for _, s := range t.Steps {
		status := "ok"
		switch {
		case s.Err != nil:
			status = "failed: " + s.Err.Error()
		case s.RolledBack:
			status = "rolled back"
		}
		rows = append(rows, []string{s.Name, s.Duration.String(), status})
	}
	return rows
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
