package main

import (
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"

	"github.com/greenbench/greenbench-sdk-go/measure/common"
)

var outcomeHeader = []string{"test", "status", "ok reps", "energy (J)", "power (W)", "carbon (g)", "reason"}

func formatMetric(set common.MetricSet, name string) string {
	m, ok := set[name]
	if !ok || !m.Available {
		return "n/a"
	}
	s := strconv.FormatFloat(m.Value, 'f', 3, 64)
	if m.Partial {
		s += "*"
	}
	return s
}

func outcomeRow(o *common.Outcome) []string {
	return []string{
		o.Key.TestName,
		string(o.Status),
		strconv.Itoa(o.OKRepetitions) + "/" + strconv.Itoa(len(o.Repetitions)),
		formatMetric(o.Metrics, common.TotalEnergyName),
		formatMetric(o.Metrics, common.TotalPowerName),
		formatMetric(o.Metrics, common.CarbonName),
		o.FailureReason,
	}
}

// renderOutcomes prints one row per session. Partial values carry a
// trailing asterisk.
func renderOutcomes(w io.Writer, outcomes []*common.Outcome) {
	table := tablewriter.NewWriter(w)
	table.SetHeader(outcomeHeader)
	table.SetAutoWrapText(false)
	for _, o := range outcomes {
		table.Append(outcomeRow(o))
	}
	table.Render()
}
