// Package export renders the wireless diagnostics report.
package export

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"

	"github.com/lcalzada-xor/linkd/internal/core/domain"
	"github.com/lcalzada-xor/linkd/internal/core/ports"
)

// ReportInput is everything the generator needs, snapshotted by the caller.
type ReportInput struct {
	GeneratedAt time.Time
	Devices     []domain.DeviceView
	Networks    map[string][]domain.APView // keyed by device UDI
	Events      []ports.Event
}

// Generate renders the diagnostics PDF: device summary, visible networks
// per device and the recent link-event timeline.
func Generate(in ReportInput) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Link Diagnostics", false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, "Network Link Diagnostics")
	pdf.Ln(8)
	pdf.SetFont("Helvetica", "", 9)
	pdf.SetTextColor(120, 120, 120)
	pdf.Cell(0, 6, "Generated "+in.GeneratedAt.Format(time.RFC1123))
	pdf.Ln(12)
	pdf.SetTextColor(0, 0, 0)

	pdf.SetFont("Helvetica", "B", 13)
	pdf.Cell(0, 8, "Devices")
	pdf.Ln(9)
	pdf.SetFont("Helvetica", "", 10)
	for _, dev := range in.Devices {
		line := fmt.Sprintf("%s (%s)  link=%v", dev.Iface, dev.Type, dev.LinkActive)
		if dev.IP4 != "" {
			line += "  ip=" + dev.IP4
		}
		if dev.ESSID != "" {
			line += "  essid=" + dev.ESSID
			line += fmt.Sprintf("  signal=%d%%", dev.Signal)
		}
		pdf.Cell(0, 6, line)
		pdf.Ln(6)

		for _, ap := range in.Networks[dev.UDI] {
			sec := "open"
			if ap.Encrypted {
				sec = "encrypted"
			}
			pdf.SetX(16)
			pdf.Cell(0, 5, fmt.Sprintf("- %s  %s  %d%%  %.0f MHz  %s",
				essidOr(ap.ESSID), ap.BSSID, ap.Strength, ap.Freq, sec))
			pdf.Ln(5)
		}
		pdf.Ln(2)
	}

	pdf.Ln(4)
	pdf.SetFont("Helvetica", "B", 13)
	pdf.Cell(0, 8, "Recent Events")
	pdf.Ln(9)
	pdf.SetFont("Helvetica", "", 9)
	for _, ev := range in.Events {
		line := fmt.Sprintf("%s  %-24s %s", ev.Time.Format("15:04:05"), ev.Kind, ev.Device)
		if ev.ESSID != "" {
			line += "  " + ev.ESSID
		}
		if ev.Detail != "" {
			line += "  " + ev.Detail
		}
		pdf.Cell(0, 5, line)
		pdf.Ln(5)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func essidOr(essid string) string {
	if essid == "" {
		return "(none)"
	}
	return essid
}
