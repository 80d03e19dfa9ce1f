package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/tuncerburak97/gozcu/internal/config"
)

func newSettingsCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change the URL pattern list",
	}
	cmd.AddCommand(newSettingsGetCmd(e), newSettingsSetCmd(e))
	return cmd
}

func newSettingsGetCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "get",
		Short: "Print the active URL patterns, one per line",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s := config.NewViperSettings(e.v).Load()
			return e.printSettings(cmd, s)
		},
	}
}

func newSettingsSetCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "set [pattern...]",
		Short: "Replace the URL patterns",
		Long: `Replaces the pattern list. Each argument may hold several patterns separated by
newlines. With no arguments every URL is captured. The list is written back to the
config file when one is in use.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if e.v.ConfigFileUsed() == "" {
				return fmt.Errorf("settings set needs --config to persist the pattern list")
			}
			var raw []string
			for _, arg := range args {
				raw = append(raw, config.SanitizeURLs(arg)...)
			}
			s, err := config.NewViperSettings(e.v).Save(raw)
			if err != nil {
				return err
			}
			return e.printSettings(cmd, s)
		},
	}
}

func (e *env) printSettings(cmd *cobra.Command, s config.CaptureSettings) error {
	if e.jsonOutput {
		urls := s.URLs
		if urls == nil {
			urls = []string{}
		}
		return e.printJSON(cmd.OutOrStdout(), map[string][]string{"urls": urls})
	}
	if len(s.URLs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "(all URLs)")
		return nil
	}
	fmt.Fprintln(cmd.OutOrStdout(), s.Text())
	return nil
}
