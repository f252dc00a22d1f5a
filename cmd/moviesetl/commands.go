package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"moviesetl/internal/config"
	"moviesetl/internal/pipeline"
	"moviesetl/internal/records"
	"moviesetl/internal/verify"
)

func newMigrateCmd(g *globalFlags) *cobra.Command {
	var (
		chunkSize    int
		policy       string
		tables       string
		allowPartial bool
		concurrent   bool
	)

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Copy every table from the source into the target",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.load(cmd)
			if err != nil {
				return err
			}
			f := cmd.Flags()
			if f.Changed("chunk-size") {
				cfg.Runtime.ChunkSize = chunkSize
			}
			if f.Changed("policy") {
				cfg.Target.Policy = policy
			}
			if f.Changed("tables") {
				cfg.Runtime.Tables = config.SplitList(tables)
			}
			if f.Changed("allow-partial") {
				cfg.Runtime.AllowPartial = allowPartial
			}
			if f.Changed("concurrent-levels") {
				cfg.Runtime.ConcurrentLevels = concurrent
			}
			if err := g.validate(cmd, cfg); err != nil {
				return err
			}

			ctx := cmd.Context()
			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			o := pipeline.New(a.src, a.dst, records.Registry(),
				pipeline.WithLogger(a.logger),
				pipeline.WithJobName(cfg.Job),
				pipeline.WithConcurrentLevels(cfg.Runtime.ConcurrentLevels),
				pipeline.WithTables(cfg.Runtime.Tables, cfg.Runtime.AllowPartial),
			)
			rep, err := o.Run(ctx)
			printReport(cmd, rep)
			return err
		},
	}

	fl := cmd.Flags()
	fl.IntVar(&chunkSize, "chunk-size", config.DefaultChunkSize, "rows per chunk (overrides CHUNK_SIZE)")
	fl.StringVar(&policy, "policy", "ignore", "conflict policy: ignore or update (overrides CONFLICT_POLICY)")
	fl.StringVar(&tables, "tables", "", "comma separated subset of tables to migrate")
	fl.BoolVar(&allowPartial, "allow-partial", false, "allow a table subset that omits parents")
	fl.BoolVar(&concurrent, "concurrent-levels", false, "run independent tables of one level concurrently")
	return cmd
}

func printReport(cmd *cobra.Command, rep pipeline.Report) {
	if len(rep.Tables) == 0 {
		return
	}
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TABLE\tREAD\tWRITTEN\tSKIPPED\tCHUNKS\tELAPSED")
	for _, t := range rep.Tables {
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\t%s\n",
			t.Table, t.Read, t.Written, t.Skipped(), t.Chunks, t.Duration.Truncate(time.Millisecond))
	}
	read, written := rep.Totals()
	fmt.Fprintf(w, "total\t%d\t%d\t%d\t\t%s\n", read, written, read-written, rep.Duration.Truncate(time.Millisecond))
	_ = w.Flush()
}

func newVerifyCmd(g *globalFlags) *cobra.Command {
	var tables string

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Compare row counts and fingerprints of source and target",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.checked(cmd)
			if err != nil {
				return err
			}
			reg := records.Registry()
			if tables != "" {
				if reg, err = reg.Subset(config.SplitList(tables), true); err != nil {
					return fmt.Errorf("%w: %v", errInvalidConfig, err)
				}
			}

			ctx := cmd.Context()
			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := verify.Run(ctx, a.src, a.dst, reg,
				verify.WithLogger(a.logger),
				verify.WithJobName(cfg.Job),
			)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "TABLE\tSOURCE\tTARGET\tSTATUS\tFIRST_ID")
			for _, t := range res.Tables {
				status := "ok"
				if !t.Match() {
					status = t.Reason
					if status == "" {
						status = "count differs"
					}
				}
				fmt.Fprintf(w, "%s\t%d\t%d\t%s\t%s\n", t.Table, t.SourceRows, t.TargetRows, status, t.FirstID)
			}
			_ = w.Flush()

			if !res.OK() {
				return fmt.Errorf("%w in %d table(s)", errMismatch, len(res.Mismatches()))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&tables, "tables", "", "comma separated subset of tables to verify")
	return cmd
}

func newConfigCmd(g *globalFlags) *cobra.Command {
	var validateOnly bool

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration with secrets redacted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.checked(cmd)
			if err != nil {
				return err
			}
			if validateOnly {
				fmt.Fprintln(cmd.OutOrStdout(), "configuration is valid")
				return nil
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(cfg.Redacted())
		},
	}
	cmd.Flags().BoolVar(&validateOnly, "validate", false, "only validate the configuration")
	return cmd
}
