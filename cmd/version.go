package cmd

import (
	"fmt"
	"runtime"
	"runtime/debug"

	"github.com/spf13/cobra"
)

// version is overridden with -ldflags "-X github.com/prawko/prawko/cmd.version=...".
var version = ""

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the build version",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		v, rev := buildVersion()
		out := cmd.OutOrStdout()
		if rev != "" {
			_, err := fmt.Fprintf(out, "prawko %s (%s, %s)\n", v, rev, runtime.Version())
			return err
		}
		_, err := fmt.Fprintf(out, "prawko %s (%s)\n", v, runtime.Version())
		return err
	},
}

// buildVersion prefers the linker-injected version, then the module
// version recorded by "go install", then "(devel)".
func buildVersion() (v, revision string) {
	v = version
	info, ok := debug.ReadBuildInfo()
	if !ok {
		if v == "" {
			v = "(devel)"
		}
		return v, ""
	}
	if v == "" {
		v = info.Main.Version
	}
	if v == "" {
		v = "(devel)"
	}
	for _, s := range info.Settings {
		if s.Key == "vcs.revision" && len(s.Value) >= 7 {
			revision = s.Value[:7]
		}
	}
	return v, revision
}
