package main

import (
	"encoding/json"
	"io"

	"github.com/spf13/cobra"

	"github.com/eugener/ipscope/internal/batch"
)

func (c *cli) newLookupCmd() *cobra.Command {
	var raw bool
	cmd := &cobra.Command{
		Use:   "lookup [ip]",
		Short: "Look up a single address (your own when omitted)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			comp, err := build(c.cfg, nil)
			if err != nil {
				return err
			}
			var ip string
			if len(args) == 1 {
				ip = args[0]
			}
			if raw {
				val, err := comp.service.Raw(cmd.Context(), ip)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), json.RawMessage(val))
			}
			d, err := comp.service.Details(cmd.Context(), ip)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), d)
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "print the unformatted API response")
	return cmd
}

func (c *cli) newBatchCmd() *cobra.Command {
	var opts batch.Options
	cmd := &cobra.Command{
		Use:   "batch key...",
		Short: "Resolve many addresses, field selectors or ASNs at once",
		Long:  "Resolve keys such as 8.8.8.8, 8.8.8.8/hostname or AS15169 in chunked batch calls.\nKeys that could not be resolved are left out of the output.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			comp, err := build(c.cfg, nil)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), comp.service.Batch(cmd.Context(), args, opts))
		},
	}
	f := cmd.Flags()
	f.IntVar(&opts.ChunkSize, "chunk-size", 0, "keys per remote call (0 = config default)")
	f.DurationVar(&opts.Timeout, "timeout", 0, "per-chunk timeout (0 = config default)")
	f.BoolVar(&opts.Filter, "filter", false, "ask the API to drop unresolvable keys")
	return cmd
}

func (c *cli) newMapCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "map ip...",
		Short: "Upload addresses to the map tool and print the report URL",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			comp, err := build(c.cfg, nil)
			if err != nil {
				return err
			}
			u, err := comp.service.MapURL(cmd.Context(), args)
			if err != nil {
				return err
			}
			_, err = io.WriteString(cmd.OutOrStdout(), u+"\n")
			return err
		},
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
