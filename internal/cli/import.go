package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/Hons90/CRM/internal/audit"
	"github.com/Hons90/CRM/internal/pools"

	"github.com/spf13/cobra"
)

// importFile reads an .xlsx file into a pool the same way the upload endpoint does.
func (e *env) importFile(ctx context.Context, poolID int64, path string) (pools.ImportResult, error) {
	if err := pools.CheckSpreadsheetName(path); err != nil {
		return pools.ImportResult{}, err
	}
	f, err := os.Open(path)
	if err != nil {
		return pools.ImportResult{}, err
	}
	defer f.Close()

	rows, err := pools.ParseSpreadsheet(f)
	if err != nil {
		return pools.ImportResult{}, err
	}
	res, err := e.registry.ImportNumbers(ctx, poolID, rows)
	if err != nil {
		return pools.ImportResult{}, err
	}
	e.record(ctx, "dialer numbers imported", audit.TargetPool, poolID,
		fmt.Sprintf(`{"file":%q,"imported":%d,"totalRows":%d}`, filepath.Base(path), res.Imported, res.TotalRows))
	return res, nil
}

func importCmd() *cobra.Command {
	var (
		poolID int64
		file   string
	)
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import phone numbers from an .xlsx file into a dialer pool",
		Long: `Import phone numbers from column A of the first sheet of an .xlsx file.

Rows that are not all digits after trimming are skipped.

Examples:
  crmctl import --pool 3 --file leads.xlsx`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			e, closeFn, err := openEnv(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			res, err := e.importFile(ctx, poolID, file)
			if err != nil {
				return err
			}
			printImport(cmd.OutOrStdout(), res)
			return nil
		},
	}
	cmd.Flags().Int64Var(&poolID, "pool", 0, "dialer pool id")
	cmd.Flags().StringVarP(&file, "file", "f", "", ".xlsx file to import")
	_ = cmd.MarkFlagRequired("pool")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func printImport(w io.Writer, res pools.ImportResult) {
	mark := green("✓")
	if res.Imported == 0 {
		mark = red("✗")
	}
	fmt.Fprintf(w, "%s Imported %d numbers successfully. (%d rows read, pool %d)\n",
		mark, res.Imported, res.TotalRows, res.PoolID)
}

func poolCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pool",
		Short: "Manage dialer pools",
	}
	cmd.AddCommand(poolListCmd())
	cmd.AddCommand(poolCreateCmd())
	return cmd
}

func poolListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List dialer pools with their progress",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			e, closeFn, err := openEnv(ctx)
			if err != nil {
				return err
			}
			defer closeFn()
			return e.listPools(ctx, cmd.OutOrStdout())
		},
	}
}

func (e *env) listPools(ctx context.Context, w io.Writer) error {
	list, err := e.registry.ListPools(ctx)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Fprintln(w, yellow("no dialer pools"))
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tCALLED\tTOTAL\tCREATED")
	for _, p := range list {
		prog, err := e.registry.Progress(ctx, p.ID)
		if err != nil {
			return err
		}
		fmt.Fprintf(tw, "%d\t%s\t%d\t%d\t%s\n", p.ID, p.Name, prog.Called, prog.Total, p.CreatedAt.Format("2006-01-02"))
	}
	return tw.Flush()
}

func poolCreateCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a dialer pool, optionally importing an .xlsx file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			e, closeFn, err := openEnv(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			p, err := e.registry.CreatePool(ctx, args[0], nil)
			if err != nil {
				return err
			}
			e.record(ctx, "dialer pool created", audit.TargetPool, p.ID, "")
			fmt.Fprintf(cmd.OutOrStdout(), "%s created pool %d %q\n", green("✓"), p.ID, p.Name)

			if file == "" {
				return nil
			}
			res, err := e.importFile(ctx, p.ID, file)
			if err != nil {
				return err
			}
			printImport(cmd.OutOrStdout(), res)
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", ".xlsx file to import into the new pool")
	return cmd
}
