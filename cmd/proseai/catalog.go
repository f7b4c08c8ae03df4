package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/hazyhaar/proseai/observability"
	"github.com/hazyhaar/proseai/platform"
	"github.com/hazyhaar/proseai/rewrite"
)

var (
	listJSON     bool
	profilesFile string
	statsSince   time.Duration
)

var tonesCmd = &cobra.Command{
	Use:   "tones",
	Short: "List the rewrite tones",
	RunE: func(cmd *cobra.Command, args []string) error {
		w := cmd.OutOrStdout()
		if listJSON {
			return writeIndented(w, rewrite.Tones())
		}
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tLABEL\tDESCRIPTION")
		for _, t := range rewrite.Tones() {
			fmt.Fprintf(tw, "%s\t%s %s\t%s\n", t.ID, t.Icon, t.Label, t.Description)
		}
		return tw.Flush()
	},
}

var platformsCmd = &cobra.Command{
	Use:   "platforms",
	Short: "List the chat platforms and whether each is enabled",
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := loadRegistry()
		if err != nil {
			return err
		}
		db, store, err := openSettings()
		if err != nil {
			return err
		}
		defer db.Close()
		st, err := store.Get(cmd.Context())
		if err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		if listJSON {
			type row struct {
				platform.Profile
				Enabled bool `json:"enabled"`
			}
			var rows []row
			for _, p := range reg.All() {
				rows = append(rows, row{Profile: p, Enabled: st.Enabled(p.ID)})
			}
			return writeIndented(w, rows)
		}
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tNAME\tENABLED\tURL")
		for _, p := range reg.All() {
			fmt.Fprintf(tw, "%s\t%s\t%t\t%s\n", p.ID, p.Name, st.Enabled(p.ID), p.URL)
		}
		if !st.OnboardingCompleted {
			fmt.Fprintln(tw, "\nonboarding not completed: the pilot opens nothing")
		}
		return tw.Flush()
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize recorded rewrites per provider",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openMetrics()
		if err != nil {
			return err
		}
		defer db.Close()
		rec := observability.NewRecorder(db, logger)
		defer rec.Close()

		var since time.Time
		if statsSince > 0 {
			since = time.Now().Add(-statsSince)
		}
		sum, err := rec.Summary(cmd.Context(), since)
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		if listJSON {
			return writeIndented(w, sum)
		}
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "PROVIDER\tTOTAL\tOK\tFAILED\tAVG MS")
		for _, s := range sum {
			fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%.0f\n", s.Provider, s.Total, s.Succeeded, s.Failed, s.AvgDurationMs)
		}
		return tw.Flush()
	},
}

func init() {
	for _, c := range []*cobra.Command{tonesCmd, platformsCmd, statsCmd, settingsGetCmd} {
		c.Flags().BoolVar(&listJSON, "json", false, "print JSON")
	}
	for _, c := range []*cobra.Command{platformsCmd, settingsSetCmd} {
		c.Flags().StringVar(&profilesFile, "profiles", env("PROFILES_FILE", ""), "profiles YAML file")
	}
	statsCmd.Flags().DurationVar(&statsSince, "since", 24*time.Hour, "window to summarize, 0 for all")
}

func loadRegistry() (*platform.Registry, error) {
	if profilesFile == "" {
		return platform.Default(), nil
	}
	return platform.LoadFile(profilesFile)
}

func writeIndented(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
