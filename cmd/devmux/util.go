package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/ternlight/devmux/internal/supervisor"
)

func printStatuses(sts ...supervisor.ProcessStatus) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tSTATE\tPID\tUPTIME\tRESTARTS\tCPU%\tRSS")
	for _, st := range sts {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
			st.Key.Name,
			st.State,
			formatPID(st),
			formatUptime(st),
			st.Restarts,
			formatCPU(st),
			formatRSS(st.MemoryRSS),
		)
	}
	_ = w.Flush()
}

func formatPID(st supervisor.ProcessStatus) string {
	if st.State != supervisor.StateRunning || st.PID == 0 {
		return "-"
	}
	return fmt.Sprintf("%d", st.PID)
}

func formatUptime(st supervisor.ProcessStatus) string {
	if st.State != supervisor.StateRunning || st.StartedAt.IsZero() {
		return "-"
	}
	return time.Since(st.StartedAt).Truncate(time.Second).String()
}

func formatCPU(st supervisor.ProcessStatus) string {
	if st.State != supervisor.StateRunning {
		return "-"
	}
	return fmt.Sprintf("%.1f", st.CPUPercent)
}

func formatRSS(rss uint64) string {
	if rss == 0 {
		return "-"
	}
	const (
		kb = 1 << 10
		mb = 1 << 20
		gb = 1 << 30
	)
	switch {
	case rss >= gb:
		return fmt.Sprintf("%.1fG", float64(rss)/gb)
	case rss >= mb:
		return fmt.Sprintf("%.1fM", float64(rss)/mb)
	case rss >= kb:
		return fmt.Sprintf("%.1fK", float64(rss)/kb)
	default:
		return fmt.Sprintf("%dB", rss)
	}
}
