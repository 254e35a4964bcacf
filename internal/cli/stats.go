package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/raphaelgruber/recap/internal/metrics"
)

// printStats displays in-process runtime statistics.
func printStats(w io.Writer, s metrics.Snapshot) {
	fmt.Fprintf(w, "\nRuntime Statistics\n")
	fmt.Fprintf(w, "═══════════════════════════════════════\n")
	fmt.Fprintf(w, "Uptime: %.1f seconds\n", s.Uptime.Seconds())

	if h := s.History; h.Pages > 0 {
		fmt.Fprintf(w, "\nHistory:\n")
		fmt.Fprintf(w, "  Pages: %d (%d empty), Messages received: %d\n", h.Pages, h.EmptyPages, h.Messages)
		printLatency(w, h.Latency)
	}

	if len(s.Providers) > 0 {
		fmt.Fprintf(w, "\nLLM Backends:\n")
		for _, p := range s.Providers {
			fmt.Fprintf(w, "  %s: %d calls, %d failed\n", p.Name, p.Calls, p.Failures)
			if p.Latency.Count > 0 {
				printLatency(w, p.Latency)
			}
			if p.InputTokens > 0 || p.OutputTokens > 0 {
				fmt.Fprintf(w, "    Tokens: %d in, %d out\n", p.InputTokens, p.OutputTokens)
			}
		}
	}

	if len(s.Store) > 0 {
		fmt.Fprintf(w, "\nStore:\n")
		for _, q := range s.Store {
			fmt.Fprintf(w, "  %-16s %d calls", q.Method, q.Calls)
			if q.Errors > 0 {
				fmt.Fprintf(w, ", %d failed", q.Errors)
			}
			fmt.Fprintf(w, ", avg %s\n", ms(q.Latency.Avg()))
		}
	}
}

func printLatency(w io.Writer, l metrics.Latency) {
	fmt.Fprintf(w, "    Time: total %s, avg %s, min %s, max %s\n",
		ms(l.Total), ms(l.Avg()), ms(l.Min), ms(l.Max))
}

func ms(d time.Duration) string {
	return fmt.Sprintf("%dms", d.Milliseconds())
}
