package cli

import (
	"runtime"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/idfflash/internal/core/domain"
)

var versionShort bool

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version and supported chips",
	Args:  cobra.NoArgs,
	Run:   runVersion,
}

func init() {
	versionCmd.Flags().BoolVar(&versionShort, "short", false, "Print only the version number")
	rootCmd.AddCommand(versionCmd)
}

func runVersion(cmd *cobra.Command, _ []string) {
	if versionShort {
		cmd.Println(version)
		return
	}

	chips := make([]string, 0, len(domain.AllChips()))
	for _, c := range domain.AllChips() {
		chips = append(chips, c.String())
	}
	cmd.Printf("idfflash %s (%s %s/%s)\n", version, runtime.Version(), runtime.GOOS, runtime.GOARCH)
	cmd.Printf("Chips: %s\n", strings.Join(chips, ", "))
}
