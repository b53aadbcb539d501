// internal/opc/format.go
package opc

import (
	"math"
	"strconv"
	"strings"
)

// RecordHeader is the column header matching FormatRecord.
func RecordHeader(withBins bool) string {
	var b strings.Builder
	if withBins {
		for i := 0; i < NumBins; i++ {
			b.WriteString("bin")
			b.WriteString(strconv.Itoa(i))
			b.WriteByte(',')
		}
	}
	b.WriteString("sample_period_s,flow_rate_ml_s,pm1_0,pm2_5,pm10_0,")
	return b.String()
}

// FormatRecord renders a reading as a comma-terminated log record:
// [bins...,] period, flow, PM1.0, PM2.5, PM10.0,
func FormatRecord(r Reading, withBins bool) string {
	var b strings.Builder
	if withBins {
		for _, v := range r.Bins {
			b.WriteString(formatBin(v))
			b.WriteByte(',')
		}
	}
	for _, v := range []float64{r.SamplePeriod, r.FlowRate, r.PM1, r.PM25, r.PM10} {
		b.WriteString(formatValue(v))
		b.WriteByte(',')
	}
	return b.String()
}

// FormatPrint renders a reading in labelled, human-readable form.
func FormatPrint(r Reading, withBins bool) string {
	var b strings.Builder
	if withBins {
		for i, v := range r.Bins {
			b.WriteString("Bin ")
			b.WriteString(strconv.Itoa(i))
			b.WriteString(": ")
			b.WriteString(formatBin(v))
			b.WriteByte(',')
		}
	}

	fields := []struct {
		label string
		v     float64
	}{
		{"Sample Period", r.SamplePeriod},
		{"Sample Flow Rate", r.FlowRate},
		{"PM1.0", r.PM1},
		{"PM2.5", r.PM25},
		{"PM10.0", r.PM10},
	}
	for _, f := range fields {
		b.WriteString(f.label)
		b.WriteString(": ")
		b.WriteString(formatValue(f.v))
		b.WriteByte(',')
	}
	if r.Degraded {
		b.WriteString("Degraded: true,")
	}
	return b.String()
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// integral bins print without decimals.
func formatBin(v float64) string {
	if v == math.Trunc(v) && !math.IsInf(v, 0) {
		return strconv.FormatFloat(v, 'f', 0, 64)
	}
	return formatValue(v)
}
