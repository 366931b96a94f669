package report

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"breachstudy/internal/enrich"
	"breachstudy/internal/regress"
	"breachstudy/internal/stats"
)

// WriteSummary writes a plain-text run summary: sample accounting from the
// audit, headline descriptives, and the main-variant regression highlights.
func WriteSummary(path, runID string, audit *enrich.AttritionAudit,
	descs []stats.Descriptives, estimates []*regress.Estimate, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Breach event study run %s\n", runID)
	fmt.Fprintf(&b, "%s\n\n", strings.Repeat("=", 40))

	fmt.Fprintf(&b, "Sample: %d events through %d pipeline steps\n", audit.RowCount, len(audit.Steps))
	for _, step := range audit.Steps {
		line := fmt.Sprintf("  %-24s rows=%d", step.Step, step.RowsOut)
		if step.Merge != nil {
			line += fmt.Sprintf(" matched=%d collisions=%d", step.Merge.Matched, step.Merge.Collisions)
		}
		if n, ok := step.FlagCounts[enrich.FlagHasCompleteData]; ok {
			line += fmt.Sprintf(" complete=%d", n)
		}
		b.WriteString(line + "\n")
	}

	if len(descs) > 0 {
		b.WriteString("\nDescriptives\n")
		for _, d := range descs {
			fmt.Fprintf(&b, "  %-28s n=%-5d mean=%10.4f sd=%10.4f\n",
				d.Variable, d.N, d.Mean, d.StdDev)
		}
	}

	if len(estimates) > 0 {
		b.WriteString("\nRegressions (main variants)\n")
		for _, est := range estimates {
			if est.Variant != regress.VariantMain {
				continue
			}
			fmt.Fprintf(&b, "  %-28s n=%-5d R2=%.3f F=%.2f\n",
				est.Spec.Name, est.Result.N, est.Result.R2, est.Result.FStat)
			for i, term := range est.Result.Terms {
				if term == "intercept" {
					continue
				}
				fmt.Fprintf(&b, "    %-26s %10.4f%-3s (p=%.3f)\n",
					term, est.Result.Coef[i],
					stats.Significance(est.Result.PValues[i]), est.Result.PValues[i])
			}
		}
	}

	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		return err
	}

	logger.Info("wrote summary report", slog.String("path", path))
	return nil
}
