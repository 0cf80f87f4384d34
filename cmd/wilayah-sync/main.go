// 命令行入口：离线执行全量同步、查看统计、清空本地库与按作用域查询
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"wilayah-api/internal/app"
	"wilayah-api/internal/config"
	"wilayah-api/internal/logger"
	"wilayah-api/internal/region"

	"github.com/spf13/cobra"
)

var (
	sqlitePath string
	driver     string
)

var rootCmd = &cobra.Command{
	Use:           "wilayah-sync",
	Short:         "Maintain the local Indonesian administrative region database",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// build：命令行参数覆盖环境配置
func build(cmd *cobra.Command) (*app.App, error) {
	cfg := config.Load()
	logger.Setup()
	if driver != "" {
		cfg.StoreDriver = driver
	}
	if sqlitePath != "" {
		cfg.SQLitePath = sqlitePath
	}
	return app.Build(cmd.Context(), cfg)
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Clear the local database and download the whole region tree",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := build(cmd)
		if err != nil {
			return err
		}
		defer a.Close()
		out := cmd.OutOrStdout()
		return a.Sync.Run(cmd.Context(), func(msg string, pct int) {
			fmt.Fprintf(out, "[%3d%%] %s\n", pct, msg)
		})
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print record counts per level",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := build(cmd)
		if err != nil {
			return err
		}
		defer a.Close()
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(a.Resolver.Stats(cmd.Context()))
	},
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every locally stored region",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := build(cmd)
		if err != nil {
			return err
		}
		defer a.Close()
		if err := a.Sync.Clear(cmd.Context()); err != nil {
			return fmt.Errorf("clear: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "local database cleared")
		return nil
	},
}

var getCmd = &cobra.Command{
	Use:   "get [level] [parent-id]",
	Short: "Resolve one scope (cache first, remote on miss) and print it as JSON",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		l, err := region.ParseLevel(args[0])
		if err != nil {
			return err
		}
		parent := ""
		if len(args) == 2 {
			parent = args[1]
		}
		if l.HasParent() && parent == "" {
			return fmt.Errorf("%s requires a parent id", l)
		}
		a, err := build(cmd)
		if err != nil {
			return err
		}
		defer a.Close()
		body, err := region.Encode(l, a.Resolver.Resolve(cmd.Context(), l, parent))
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), string(body))
		return err
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&driver, "driver", "", "Store driver override (sqlite|postgres)")
	rootCmd.PersistentFlags().StringVar(&sqlitePath, "sqlite", "", "SQLite file path override")
	rootCmd.AddCommand(syncCmd, statsCmd, clearCmd, getCmd)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
