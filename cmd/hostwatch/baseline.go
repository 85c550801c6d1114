package main

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/fatih/color"
	"github.com/lucid-vigil/hostwatch/pkg/baseline"
	"github.com/lucid-vigil/hostwatch/pkg/config"
	"github.com/lucid-vigil/hostwatch/pkg/store"
	"github.com/spf13/cobra"
)

var baselineCmd = &cobra.Command{
	Use:   "baseline",
	Short: "Show the persisted baseline and dismissed anomalies",
	Long:  `Print the learned mean and standard deviation of every signal and monitored host, followed by the anomalies an operator has dismissed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfigFrom(configPath)
		if err != nil {
			return err
		}
		doc, err := store.NewFileStore(cfg.Monitoring.BaselineFile).Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
		printBaseline(cmd.OutOrStdout(), cfg.Monitoring.BaselineFile, doc)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(baselineCmd)
}

func printBaseline(w io.Writer, path string, doc store.Document) {
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()

	fmt.Fprintf(w, "\n%s\n", cyan("=== Baseline ==="))
	fmt.Fprintf(w, "%s\n\n", gray(path))

	fmt.Fprintf(w, "%s\n", yellow("Learned ranges:"))
	if len(doc.Baseline) == 0 {
		fmt.Fprintf(w, "  %s\n", gray("No baseline learned yet"))
	} else {
		for _, key := range sortedKeys(doc.Baseline) {
			st := doc.Baseline[key]
			fmt.Fprintf(w, "  %-16s %s ±%.2f  (%d samples)\n", key, green(fmt.Sprintf("%.2f", st.Mean)), st.Std, st.SampleCount)
		}
	}

	fmt.Fprintf(w, "\n%s\n", yellow("Dismissed:"))
	dismissed := dismissedKeys(doc.Feedback)
	if len(dismissed) == 0 {
		fmt.Fprintf(w, "  %s\n", gray("None"))
		return
	}
	for _, key := range dismissed {
		fmt.Fprintf(w, "  %s\n", key)
	}
}

func sortedKeys(set baseline.Set) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func dismissedKeys(fb baseline.Feedback) []string {
	keys := make([]string, 0, len(fb))
	for k, ok := range fb {
		if ok {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}
