// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/zouly-group/tadf-workbench/internal/dataset"
	"github.com/zouly-group/tadf-workbench/pkg/types"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write ML-ready datasets from the measurement stores",
	Long: `Export joins stored measurements with the compound registry and writes
rows whose compound has a structure encoding.

Without flags every named target (delta_est, fwhm, eqe) is written. Use
--target for one preset, or --kind for a full store export filtered by
--quality. --all dumps the registry and both stores as CSV regardless of
quality.`,
	RunE: runExport,
}

func init() {
	exportCmd.Flags().String("target", "", "named target: delta_est, fwhm, or eqe")
	exportCmd.Flags().String("kind", "", "export one store instead: photophysical or device")
	exportCmd.Flags().String("quality", string(types.QualityValid), "quality flag to keep with --kind")
	exportCmd.Flags().String("format", "csv", "output format: csv, json, or yaml")
	exportCmd.Flags().String("out", "", "output directory (default: <data-dir>/exports)")
	exportCmd.Flags().Bool("all", false, "dump registry and stores as CSV, every quality flag")

	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	target, _ := cmd.Flags().GetString("target")
	kindName, _ := cmd.Flags().GetString("kind")
	quality, _ := cmd.Flags().GetString("quality")
	formatName, _ := cmd.Flags().GetString("format")
	out, _ := cmd.Flags().GetString("out")
	all, _ := cmd.Flags().GetBool("all")

	if target != "" && kindName != "" {
		return fmt.Errorf("--target and --kind are mutually exclusive")
	}
	format, err := dataset.ParseFormat(formatName)
	if err != nil {
		return err
	}
	if out == "" {
		out = filepath.Join(cfg.Store.DataDir, "exports")
	}

	ctx := commandContext(cmd)
	wb, err := openWorkbench(ctx, cfg)
	if err != nil {
		return err
	}
	defer wb.Close()

	var paths []string
	switch {
	case all:
		paths, err = wb.dataset.ExportAll(ctx, out)
	case target != "":
		t, ok := dataset.TargetByName(target)
		if !ok {
			return fmt.Errorf("unknown target %q", target)
		}
		paths, err = exportOne(cmd, wb, t, out, format)
	case kindName != "":
		kind, kerr := parseKind(kindName)
		if kerr != nil {
			return kerr
		}
		t := dataset.Target{
			Name:    string(kind) + "_" + quality,
			Kind:    kind,
			Options: dataset.ExportOptions{Quality: types.QualityFlag(quality)},
		}
		paths, err = exportOne(cmd, wb, t, out, format)
	default:
		paths, err = wb.dataset.ExportTargets(ctx, out, format)
	}
	for _, p := range paths {
		fmt.Fprintf(os.Stdout, "wrote %s\n", p)
	}
	return err
}

func exportOne(cmd *cobra.Command, wb *workbench, t dataset.Target, dir string, format dataset.Format) ([]string, error) {
	ds, err := wb.dataset.ExportTarget(commandContext(cmd), t)
	if err != nil {
		return nil, err
	}
	path, err := ds.WriteFile(dir, t.Name, format)
	if err != nil {
		return nil, err
	}
	fmt.Fprintf(os.Stdout, "%s: %d rows\n", t.Name, len(ds.Rows))
	return []string{path}, nil
}
