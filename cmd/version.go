package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information (injected at build time via ldflags).
var (
	AppVersion = "development"
	BuildTime  = "unknown"
	GitCommit  = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(_ *cobra.Command, _ []string) {
		fmt.Printf("Scrivo %s\n", AppVersion)
		fmt.Printf("Build Time: %s\n", BuildTime)
		fmt.Printf("Git Commit: %s\n", GitCommit)
		fmt.Println()

		// Report credential presence without printing full values.
		printKeyStatus("OPENAI_API_KEY")
		printKeyStatus("GEMINI_API_KEY")
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

func printKeyStatus(name string) {
	key := os.Getenv(name)
	if key == "" {
		fmt.Printf("%s: not set\n", name)
		return
	}
	if len(key) <= 8 {
		fmt.Printf("%s: configured\n", name)
		return
	}
	fmt.Printf("%s: %s...%s (configured)\n", name, key[:4], key[len(key)-4:])
}
