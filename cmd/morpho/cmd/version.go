package cmd

import (
	"fmt"
	"runtime"

	"github.com/MeKo-Tech/morpho/internal/version"
	"github.com/spf13/cobra"
)

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Print version information",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{skipConfig: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			v, commit, date := version.Info()
			w := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(w, "morpho version %s\n", v)
			_, _ = fmt.Fprintf(w, "Commit: %s\n", commit)
			_, _ = fmt.Fprintf(w, "Date: %s\n", date)
			_, _ = fmt.Fprintf(w, "Go: %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
			return nil
		},
	}
}
