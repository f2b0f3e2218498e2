package main

import (
	"errors"
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/airpuck/internal/config"
	"github.com/alfredjeanlab/airpuck/internal/ui"
)

var profileCmd = &cobra.Command{
	Use:     "profile",
	Short:   "Manage named table profiles",
	GroupID: "system",
	// Profiles are local file operations and need no resolved configuration.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if noColor {
			ui.ForceNoColor()
		} else {
			ui.Init()
		}
		return nil
	},
}

var profileAddCmd = &cobra.Command{
	Use:   "add <name> --base <id> --table <name>",
	Short: "Add or update a named profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		if flagBase == "" || flagTable == "" {
			return errors.New("--base and --table are required")
		}
		natsURL, _ := cmd.Flags().GetString("nats-url")
		description, _ := cmd.Flags().GetString("description")

		profiles, err := config.LoadProfiles()
		if err != nil {
			return err
		}
		profiles.Profiles[name] = config.Profile{
			APIURL:      flagAPIURL,
			BaseID:      flagBase,
			Table:       flagTable,
			APIKey:      flagAPIKey,
			NATSURL:     natsURL,
			Description: description,
		}
		if profiles.Active == "" {
			profiles.Active = name
		}
		if err := config.SaveProfiles(profiles); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "profile %q saved (%s/%s)\n", name, flagBase, flagTable)
		return nil
	},
}

var profileRemoveCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Remove a named profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]

		profiles, err := config.LoadProfiles()
		if err != nil {
			return err
		}
		if _, ok := profiles.Profiles[name]; !ok {
			return fmt.Errorf("profile %q not found", name)
		}
		delete(profiles.Profiles, name)
		if profiles.Active == name {
			profiles.Active = ""
		}
		if err := config.SaveProfiles(profiles); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "profile %q removed\n", name)
		return nil
	},
}

var profileListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all profiles",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		profiles, err := config.LoadProfiles()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(profiles.Profiles) == 0 {
			fmt.Fprintln(out, "no profiles configured")
			return nil
		}

		names := make([]string, 0, len(profiles.Profiles))
		for name := range profiles.Profiles {
			names = append(names, name)
		}
		sort.Strings(names)

		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "  NAME\tBASE\tTABLE\tAPI URL\tKEY\tDESCRIPTION")
		for _, name := range names {
			p := profiles.Profiles[name]
			marker := "  "
			if name == profiles.Active {
				marker = "* "
			}
			apiURL := p.APIURL
			if apiURL == "" {
				apiURL = "(default)"
			}
			fmt.Fprintf(w, "%s%s\t%s\t%s\t%s\t%s\t%s\n",
				marker, name, p.BaseID, p.Table, apiURL, maskKey(p.APIKey), p.Description)
		}
		return w.Flush()
	},
}

var profileUseCmd = &cobra.Command{
	Use:   "use <name>",
	Short: "Set the active profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]

		profiles, err := config.LoadProfiles()
		if err != nil {
			return err
		}
		if _, ok := profiles.Profiles[name]; !ok {
			return fmt.Errorf("profile %q not found", name)
		}
		profiles.Active = name
		if err := config.SaveProfiles(profiles); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "active profile set to %q\n", name)
		return nil
	},
}

// maskKey keeps the first four characters of a credential.
func maskKey(key string) string {
	switch {
	case key == "":
		return ""
	case len(key) <= 4:
		return "****"
	default:
		return key[:4] + "..."
	}
}

func init() {
	profileAddCmd.Flags().String("nats-url", "", "NATS URL for change events")
	profileAddCmd.Flags().String("description", "", "free-form note shown by profile list")

	profileCmd.AddCommand(profileAddCmd)
	profileCmd.AddCommand(profileRemoveCmd)
	profileCmd.AddCommand(profileListCmd)
	profileCmd.AddCommand(profileUseCmd)
}
