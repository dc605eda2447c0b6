// surf is the CLI binary: `surf <goal...>` runs the Planner once and exits;
// `surf shell` opens the interactive operator shell documented in §6.
// Grounded on the teacher's cmd/cobra_cli.go command-tree shape and
// fatih/color palette.
package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"surf-core/internal/config"
	"surf-core/internal/core"
)

var (
	green  = color.New(color.FgGreen).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	cyan   = color.New(color.FgCyan).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Println(red("Error:"), err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:   "surf [goal...]",
		Short: "Autonomy Core CLI",
		Long: bold("surf") + ` drives the desktop Autonomy Core: hand it a natural-language
goal and it observes the screen, plans one action at a time, and executes it
through the Policy & Approval Gate until the goal is done, fails, or needs you.`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			if len(args) == 0 {
				return cmd.Help()
			}
			return runGoal(cfg, joinArgs(args))
		},
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a surf-core YAML config file")

	viper.SetConfigName("surf-config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("$HOME")
	viper.AddConfigPath(".")

	root.AddCommand(newShellCommand(&configPath))
	root.AddCommand(newVersionCommand())
	return root
}

func loadConfig(path string) (*config.RuntimeConfig, error) {
	if path == "" {
		if err := viper.ReadInConfig(); err == nil {
			path = viper.ConfigFileUsed()
		}
	}
	return config.Load(path)
}

func joinArgs(args []string) string {
	out := args[0]
	for _, a := range args[1:] {
		out += " " + a
	}
	return out
}

func runGoal(cfg *config.RuntimeConfig, goal string) error {
	c, err := core.Build(cfg, core.BuildOptions{Interactive: true})
	if err != nil {
		return fmt.Errorf("build core: %w", err)
	}
	defer c.Close()

	fmt.Println(cyan("Goal:"), goal)
	result, err := c.Planner.Run(cmdContext(), goal, plannerOptions(cfg))
	if err != nil {
		return err
	}
	printRunResult(result)
	return nil
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("surf-core dev")
		},
	}
}
