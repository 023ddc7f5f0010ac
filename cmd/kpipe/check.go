package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/birdayz/kpipe"
	"github.com/birdayz/kpipe/kmeta"
)

func newCheckCommand() *cobra.Command {
	cfg, loadErr := loadConfig()
	var metaVersion uint64

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Validate the synthetic pipeline and print its stages",
		RunE: func(cmd *cobra.Command, args []string) error {
			if loadErr != nil {
				return loadErr
			}
			if err := cfg.validate(); err != nil {
				return err
			}
			if err := kmeta.CheckVersion(metaVersion); err != nil {
				return err
			}

			cfg.StoreDir = ""
			p, _, err := buildPipeline(cfg, kpipe.NullLogger())
			if err != nil {
				return err
			}
			if _, err := kpipe.New(p); err != nil {
				return err
			}

			for i, pipe := range p.Pipes() {
				items := pipe.Items()
				fmt.Fprintf(cmd.OutOrStdout(), "stage %d: %s x%d (in=%d out=%d)\n",
					i, items[0].Processor.Name(), len(items), len(pipe.InputPorts()), len(pipe.OutputPorts()))
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&cfg.Lanes, "lanes", cfg.Lanes, "parallel source lanes")
	cmd.Flags().IntVar(&cfg.Limit, "limit", cfg.Limit, "stop after this many rows, 0 reads everything")
	cmd.Flags().Uint64Var(&metaVersion, "meta-version", kmeta.Version, "metadata version the plan was written with")

	return cmd
}
