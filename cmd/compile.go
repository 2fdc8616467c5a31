package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"RequestCriteria/internal/logger"
	"RequestCriteria/internal/request"
	"RequestCriteria/internal/resolver"
	"RequestCriteria/internal/schema"
)

func newCompileCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "compile [request.json]",
		Short: "Print the SQL a request compiles to",
		Long: `Reads a request body (the JSON accepted by /api/index) from a file, or from
stdin when no file is given, and prints the select, its arguments, the count
query and any dropped clauses. No database connection is made.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := cmd.InOrStdin()
			if len(args) == 1 {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}
			return runCompile(opts, in, cmd.OutOrStdout())
		},
	}
}

func runCompile(opts *rootOptions, in io.Reader, out io.Writer) error {
	cfg := opts.load()
	if err := logger.Init(""); err != nil {
		return err
	}

	reg, err := schema.InitRegistry(cfg.ModelsDir)
	if err != nil {
		return fmt.Errorf("load models: %w", err)
	}
	compilerOpts, err := cfg.CompilerOptions()
	if err != nil {
		return err
	}
	req, err := request.Decode(in)
	if err != nil {
		return err
	}

	result, err := resolver.New(reg, compilerOpts, nil).Compile(req)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(result)
}
