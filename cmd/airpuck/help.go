package main

import (
	"fmt"
	"regexp"
	"strings"
	"text/template"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/alfredjeanlab/airpuck/internal/ui"
)

// helpEnv is the Environment section of the root command's help.
var helpEnv = []struct{ name, usage string }{
	{"AIRPUCK_BASE_ID", "base id"},
	{"AIRPUCK_TABLE", "table name"},
	{"AIRPUCK_API_KEY", "api key, sent as a bearer token"},
	{"AIRPUCK_API_URL", "service root (default https://api.airtable.com/v0/)"},
	{"AIRPUCK_READY_TIMEOUT", "how long to wait for the first pull (default 20s)"},
	{"AIRPUCK_RATE_LIMIT", "requests per second, 0 for none (default 5)"},
	{"AIRPUCK_NATS_URL", "NATS server for change events"},
	{"AIRPUCK_LOG_LEVEL", "debug, info, warn or error (default info)"},
}

var reFlagDefault = regexp.MustCompile(`\(default [^)]*\)`)

// usageTemplate is cobra's layout with styled headings and command names,
// plus an Environment section on the root command.
const usageTemplate = `{{heading "Usage:"}}{{if .Runnable}}
  {{.UseLine}}{{end}}{{if .HasAvailableSubCommands}}
  {{.CommandPath}} [command]{{end}}{{if gt (len .Aliases) 0}}

{{heading "Aliases:"}}
  {{.NameAndAliases}}{{end}}{{if .HasExample}}

{{heading "Examples:"}}
{{.Example}}{{end}}{{if .HasAvailableSubCommands}}{{range $group := .Groups}}

{{heading $group.Title}}{{range $.Commands}}{{if (and (eq .GroupID $group.ID) (or .IsAvailableCommand (eq .Name "help")))}}
  {{command (rpad .Name .NamePadding)}} {{.Short}}{{end}}{{end}}{{end}}{{if not .AllChildCommandsHaveGroup}}

{{heading "Additional Commands:"}}{{range .Commands}}{{if (and (eq .GroupID "") (or .IsAvailableCommand (eq .Name "help")))}}
  {{command (rpad .Name .NamePadding)}} {{.Short}}{{end}}{{end}}{{end}}{{end}}{{if .HasAvailableLocalFlags}}

{{heading "Flags:"}}
{{flagUsages .LocalFlags}}{{end}}{{if .HasAvailableInheritedFlags}}

{{heading "Global Flags:"}}
{{flagUsages .InheritedFlags}}{{end}}{{if not .HasParent}}

{{heading "Environment:"}}
{{environment}}{{end}}{{if .HasAvailableSubCommands}}

Use "{{.CommandPath}} [command] --help" for more information about a command.{{end}}
`

func init() {
	cobra.AddTemplateFuncs(template.FuncMap{
		"heading":     ui.RenderAccent,
		"command":     ui.RenderCommand,
		"flagUsages":  flagUsages,
		"environment": environmentUsage,
	})
}

func flagUsages(fs *pflag.FlagSet) string {
	return reFlagDefault.ReplaceAllStringFunc(strings.TrimRight(fs.FlagUsages(), " \n"), ui.RenderMuted)
}

func environmentUsage() string {
	width := 0
	for _, e := range helpEnv {
		width = max(width, len(e.name))
	}
	lines := make([]string, len(helpEnv))
	for i, e := range helpEnv {
		lines[i] = fmt.Sprintf("  %s%s  %s", e.name, strings.Repeat(" ", width-len(e.name)), ui.RenderMuted(e.usage))
	}
	return strings.Join(lines, "\n")
}

// helpFunc prints a command's description and usage to stdout. Color is
// decided here because help runs before PersistentPreRunE would.
func helpFunc(cmd *cobra.Command, _ []string) {
	if noColor {
		ui.ForceNoColor()
	} else {
		ui.Init()
	}

	desc := cmd.Long
	if desc == "" {
		desc = cmd.Short
	}
	out := cmd.OutOrStdout()
	if desc != "" {
		fmt.Fprintf(out, "%s\n\n", strings.TrimSpace(desc))
	}
	fmt.Fprint(out, cmd.UsageString())
}
