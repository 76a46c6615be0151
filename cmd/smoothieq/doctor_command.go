package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"smoothieq/internal/logging"
	"smoothieq/internal/preflight"
	"smoothieq/internal/smoothie"
)

func newDoctorCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check the smoothie-rs installation and smoothieq paths",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			p := newStatusPrinter(cmd.OutOrStdout())

			p.section("Installation")
			inst, err := smoothie.Discover(cfg, logging.NewNop())
			if err != nil {
				p.line("smoothie-rs", statusError, err.Error())
				return fmt.Errorf("smoothie-rs not found")
			}
			p.line("Root", statusInfo, inst.Root)

			p.section("Checks")
			results := preflight.RunAll(cfg, inst)
			for _, result := range results {
				p.line(result.Name, checkKind(result), result.Detail)
			}

			failed := 0
			for _, result := range preflight.Failed(results) {
				if !result.Optional {
					failed++
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d check(s) failed", failed)
			}
			return nil
		},
	}
}

func checkKind(result preflight.Result) statusKind {
	switch {
	case result.Passed:
		return statusOK
	case result.Optional:
		return statusWarn
	default:
		return statusError
	}
}
