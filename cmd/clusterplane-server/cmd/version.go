package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/yaroslav/clusterplane/internal/apiversion"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Long:  `Display build version, supported API microversions and Go version.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(versionString())
		fmt.Printf("API versions: %s - %s\n", apiversion.BaseVersion, apiversion.MaxVersion)
		fmt.Printf("Go: %s\n", runtime.Version())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
