package ftl

import (
	"github.com/marmos91/dittoftl/pkg/ftl/band"
	"github.com/marmos91/dittoftl/pkg/ftl/writer"
)

// BandInfo is a point-in-time view of one band.
type BandInfo struct {
	ID         uint64 `json:"id" yaml:"id"`
	PhysID     uint64 `json:"phys_id" yaml:"phys_id"`
	State      string `json:"state" yaml:"state"`
	Type       string `json:"type" yaml:"type"`
	Owner      string `json:"owner,omitempty" yaml:"owner,omitempty"`
	Queue      string `json:"queue,omitempty" yaml:"queue,omitempty"`
	IterOffset uint64 `json:"iter_offset" yaml:"iter_offset"`
	StartAddr  uint64 `json:"start_addr" yaml:"start_addr"`
	Dropped    bool   `json:"dropped,omitempty" yaml:"dropped,omitempty"`
}

// Report describes the band table of an open device.
type Report struct {
	Device        string     `json:"device" yaml:"device"`
	NumBands      uint64     `json:"num_bands" yaml:"num_bands"`
	BlocksPerBand uint64     `json:"blocks_per_band" yaml:"blocks_per_band"`
	NumFree       uint64     `json:"num_free" yaml:"num_free"`
	NumShut       uint64     `json:"num_shut" yaml:"num_shut"`
	UserBands     uint64     `json:"user_bands" yaml:"user_bands"`
	GCBands       uint64     `json:"gc_bands" yaml:"gc_bands"`
	Level         string     `json:"level" yaml:"level"`
	Clean         bool       `json:"clean" yaml:"clean"`
	Bands         []BandInfo `json:"bands" yaml:"bands"`
}

// Report snapshots the band table. It returns an empty report when no
// table is allocated.
func (d *Device) Report() Report {
	r := Report{
		Device:        d.Name,
		NumBands:      d.NumBands,
		BlocksPerBand: d.geo.BlocksPerBand,
		UserBands:     d.UserWriter.NumBands,
		GCBands:       d.GCWriter.NumBands,
		Level:         d.Limits.Level().String(),
		Clean:         d.Clean(),
	}
	if d.Bands == nil {
		return r
	}

	r.NumFree = d.Bands.NumFree()
	r.NumShut = d.Bands.Shut().Len()
	r.Bands = make([]BandInfo, 0, d.Bands.Len())

	for id := uint64(0); id < d.Bands.Len(); id++ {
		b := d.Bands.Band(id)
		info := BandInfo{
			ID:        b.ID,
			PhysID:    b.PhysID,
			StartAddr: b.StartAddr,
			Dropped:   b.Dropped,
		}
		if b.MD != nil {
			info.State = b.State().String()
			info.Type = b.Type().String()
			info.IterOffset = b.MD.IterOffset()
		}
		if q := b.Queue(); q != nil {
			info.Queue = q.Name()
		}
		if w, ok := b.Owner().(*writer.Writer); ok {
			info.Owner = w.Kind.String()
			if info.Queue == "" {
				info.Queue = slotName(w, b)
			}
		}
		r.Bands = append(r.Bands, info)
	}
	return r
}

func slotName(w *writer.Writer, b *band.Band) string {
	switch b {
	case w.Band:
		return "current"
	case w.NextBand:
		return "next"
	default:
		return ""
	}
}
