package main

import (
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hazyhaar/proseai/settings"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Read and change the pilot settings",
	Long: `Keys: ` + strings.Join(settings.Keys(), ", ") + `.

A running pilot applies changes within its settings poll interval.`,
}

var settingsGetCmd = &cobra.Command{
	Use:   "get [key]",
	Short: "Print all settings or one key",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
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
		if len(args) == 0 {
			if listJSON {
				return writeIndented(w, st)
			}
			for _, k := range settings.Keys() {
				fmt.Fprintf(w, "%s=%s\n", k, settingValue(st, k))
			}
			return nil
		}
		v := settingValue(st, args[0])
		if v == "" && !knownKey(args[0]) {
			return fmt.Errorf("%w: %q", settings.ErrUnknownKey, args[0])
		}
		fmt.Fprintln(w, v)
		return nil
	},
}

var settingsSetCmd = &cobra.Command{
	Use:   "set key value",
	Short: "Change one setting",
	Example: `  proseai settings set onboardingCompleted true
  proseai settings set selectedApps whatsapp,telegram
  proseai settings set apiEndpoint http://192.168.1.20:3000`,
	Args: cobra.ExactArgs(2),
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
		return store.SetString(cmd.Context(), args[0], args[1], reg)
	},
}

func init() {
	settingsCmd.AddCommand(settingsGetCmd)
	settingsCmd.AddCommand(settingsSetCmd)
}

func knownKey(k string) bool { return slices.Contains(settings.Keys(), k) }

func settingValue(st settings.Settings, key string) string {
	switch key {
	case settings.KeyOnboardingCompleted:
		return fmt.Sprint(st.OnboardingCompleted)
	case settings.KeySelectedApps:
		return strings.Join(st.SelectedPlatforms, ",")
	case settings.KeyLastUsedTone:
		return st.LastUsedTone
	case settings.KeyAPIEndpoint:
		return st.APIEndpoint
	}
	return ""
}
