// Package main implements the mlpy CLI commands.
// This file contains the parse command: front-end only, printing the AST.
package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/duns-scotus/mlpy/internal/ast"
)

var parseAsJSON bool

var parseCmd = &cobra.Command{
	Use:   "parse <file>",
	Short: "Parse an ML file and print its AST",
	Long:  `Runs only the front end (lexer and parser) and prints the resulting tree, either as an indented rendering or as JSON.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runParse,
}

func init() {
	parseCmd.Flags().BoolVar(&parseAsJSON, "json", false, "print the AST as JSON instead of a tree rendering")
}

func runParse(cmd *cobra.Command, args []string) error {
	src, prog, err := parseFile(args[0])
	if err != nil {
		return report(err, src)
	}

	if parseAsJSON {
		data, err := json.MarshalIndent(prog, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal AST: %w", err)
		}
		fmt.Println(string(data))
		return nil
	}
	fmt.Print(ast.Render(prog))
	return nil
}
