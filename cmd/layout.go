package main

import (
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/logo-cli/internal/config"
	"github.com/sells-group/logo-cli/internal/layout"
)

var layoutCmd = &cobra.Command{
	Use:   "layout <logo-dir>",
	Short: "Clean logos and compute their slide placement",
	Long: `Removes white backgrounds, crops and scales every logo in <logo-dir>, writes
the results as PNG, and saves a placement plan (EMU coordinates) as YAML or JSON.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("layout"); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		grid, err := layout.NewGrid(gridConfig(cfg.Layout))
		if err != nil {
			return err
		}

		outDir, _ := cmd.Flags().GetString("out")
		if outDir == "" {
			outDir = cfg.Layout.OutputDir
		}
		planPath, _ := cmd.Flags().GetString("plan")
		if planPath == "" {
			planPath = cfg.Layout.PlanPath
		}

		items, skipped, err := grid.ProcessDir(ctx, args[0], outDir, uint8(cfg.Layout.WhiteThreshold))
		if err != nil {
			return err
		}

		plan := grid.BuildPlan(items, skipped)
		if err := layout.WritePlan(planPath, plan); err != nil {
			return err
		}

		printPlanSummary(cmd.OutOrStdout(), plan, outDir, planPath)
		return nil
	},
}

var layoutShowCmd = &cobra.Command{
	Use:   "show [plan]",
	Short: "Print a saved placement plan",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		planPath := cfg.Layout.PlanPath
		if len(args) == 1 {
			planPath = args[0]
		}
		plan, err := layout.LoadPlan(planPath)
		if err != nil {
			return err
		}
		formatPlan(cmd.OutOrStdout(), plan)
		return nil
	},
}

func init() {
	layoutCmd.Flags().String("out", "", "directory for processed logos (default: layout.output_dir)")
	layoutCmd.Flags().String("plan", "", "placement plan path, .yaml or .json (default: layout.plan_path)")
	layoutCmd.AddCommand(layoutShowCmd)
	rootCmd.AddCommand(layoutCmd)
}

func gridConfig(c config.LayoutConfig) layout.GridConfig {
	return layout.GridConfig{
		Columns:  c.Columns,
		Rows:     c.Rows,
		WidthIn:  c.WidthIn,
		HeightIn: c.HeightIn,
		DPI:      c.DPI,
	}
}

func printPlanSummary(w io.Writer, p layout.Plan, outDir, planPath string) {
	_, _ = fmt.Fprintf(w, "Placed %d of %d slots (%dx%d grid)\n",
		len(p.Placements), p.Grid.Columns*p.Grid.Rows, p.Grid.Columns, p.Grid.Rows)
	if len(p.Overflow) > 0 {
		_, _ = fmt.Fprintf(w, "Did not fit: %d\n", len(p.Overflow))
	}
	if len(p.Skipped) > 0 {
		_, _ = fmt.Fprintf(w, "Skipped: %d\n", len(p.Skipped))
	}
	_, _ = fmt.Fprintf(w, "Logos: %s\nPlan: %s\n", outDir, planPath)
}

// formatPlan writes one row per placement followed by the leftovers.
func formatPlan(out io.Writer, p *layout.Plan) {
	_, _ = fmt.Fprintf(out, "Slide %d x %d EMU, %dx%d grid\n\n", p.Slide.WidthEMU, p.Slide.HeightEMU, p.Grid.Columns, p.Grid.Rows)
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "NAME\tCELL\tX_EMU\tY_EMU\tWIDTH_EMU\tHEIGHT_EMU")
	for _, pl := range p.Placements {
		_, _ = fmt.Fprintf(w, "%s\t%d,%d\t%d\t%d\t%d\t%d\n",
			pl.Name, pl.Column, pl.Row, pl.XEMU, pl.YEMU, pl.WidthEMU, pl.HeightEMU)
	}
	_ = w.Flush()
	for _, name := range p.Overflow {
		_, _ = fmt.Fprintf(out, "did not fit: %s\n", name)
	}
	for _, name := range p.Skipped {
		_, _ = fmt.Fprintf(out, "skipped: %s\n", name)
	}
}
