// newsbot publishes rewritten science and technology headlines to a blog.
//
// Usage:
//
//	newsbot run     [--config=config.yaml]
//	newsbot once    [--config=config.yaml]
//	newsbot status  [--config=config.yaml]
//	newsbot check   [--config=config.yaml]
//	newsbot auth    [--config=config.yaml] [--code=<authorization code>]
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags.
var version = "dev"

var rootFlags struct {
	configPath string
}

var rootCmd = &cobra.Command{
	Use:   "newsbot",
	Short: "Science and technology news publishing bot",
	Long: "newsbot fetches science and technology headlines, rewrites them with a\n" +
		"language model and publishes them to a Blogger blog on a fixed schedule.",
	SilenceUsage: true,
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&rootFlags.configPath, "config", "config.yaml", "path to config file")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(onceCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(authCmd)
	rootCmd.Version = version
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
