// Package main implements the mlpy CLI commands.
// This file contains the cache command: stats and clearing for the
// compilation and execution caches.
package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	cacheClear  bool
	cacheAsJSON bool
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or clear the compilation and execution caches",
	RunE:  runCache,
}

func init() {
	cacheCmd.Flags().BoolVar(&cacheClear, "clear", false, "empty both caches and the persisted index")
	cacheCmd.Flags().BoolVar(&cacheAsJSON, "json", false, "print stats as JSON")
}

func runCache(cmd *cobra.Command, args []string) error {
	if !cfg.Cache.Enabled {
		fmt.Println("cache is disabled in configuration")
		return nil
	}

	cache, err := openCache()
	if err != nil {
		return err
	}
	defer cache.Close()

	if cacheClear {
		if err := cache.Clear(); err != nil {
			return err
		}
		fmt.Println("cache cleared")
		return nil
	}

	stats := cache.Stats()
	if cacheAsJSON {
		data, err := json.MarshalIndent(stats, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal stats: %w", err)
		}
		fmt.Println(string(data))
		return nil
	}
	fmt.Printf("index: %s\n", stats.Path)
	fmt.Printf("compile entries: %d\n", stats.CompileEntries)
	fmt.Printf("execution entries: %d\n", stats.ExecutionEntries)
	fmt.Printf("hits: %d, misses: %d\n", stats.Hits, stats.Misses)
	return nil
}
