package report

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/sicney/eve-mo/internal/engine"
)

var interpretation = map[engine.Direction]string{
	engine.Buy:  "z_score << 0  => price well BELOW its trailing mean (mean-reversion BUY setup)",
	engine.Sell: "z_score >> 0  => price well ABOVE its trailing mean (mean-reversion SELL setup)",
}

var emptyMessage = map[engine.Direction]string{
	engine.Buy:  "No BUY candidates (no item clearly below its mean at the current threshold).",
	engine.Sell: "No SELL candidates (no item clearly above its mean at the current threshold).",
}

// PrintSignals writes a titled, column-aligned table of signals to w.
func PrintSignals(w io.Writer, title string, side engine.Direction, signals []engine.Signal) error {
	bar := strings.Repeat("=", len(title)+4)
	fmt.Fprintf(w, "\n%s\n  %s\n%s\n\n", bar, title, bar)

	if len(signals) == 0 {
		_, err := fmt.Fprintln(w, emptyMessage[side])
		return err
	}
	fmt.Fprintf(w, "Interpretation:\n  %s\n\n", interpretation[side])

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, strings.Join(Header(side), "\t")+"\t")
	for _, s := range signals {
		fmt.Fprintln(tw, strings.Join(Row(side, s), "\t")+"\t")
	}
	return tw.Flush()
}
