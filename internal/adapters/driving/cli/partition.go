package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/idfflash/internal/core/domain"
	"github.com/custodia-labs/idfflash/internal/core/ports/driving"
)

var (
	partitionToBinary bool
	partitionToCSV    bool
	partitionOutput   string
)

var partitionTableCmd = &cobra.Command{
	Use:   "partition-table <file>",
	Short: "Show or convert a partition table",
	Long: `Read a partition table in CSV or binary form and validate it.

Without a conversion flag the table is printed. --to-binary and --to-csv
write the converted table to --output, or to stdout when no file is given.`,
	Args: cobra.ExactArgs(1),
	RunE: runPartitionTable,
}

func init() {
	partitionTableCmd.Flags().BoolVar(&partitionToBinary, "to-binary", false, "Convert to the binary format")
	partitionTableCmd.Flags().BoolVar(&partitionToCSV, "to-csv", false, "Convert to CSV")
	partitionTableCmd.Flags().StringVarP(&partitionOutput, "output", "o", "", "Write the converted table to a file")
	partitionTableCmd.MarkFlagsMutuallyExclusive("to-binary", "to-csv")
	rootCmd.AddCommand(partitionTableCmd)
}

func runPartitionTable(cmd *cobra.Command, args []string) error {
	if partitionService == nil {
		return errors.New("partition service not configured")
	}

	var format driving.PartitionFormat
	switch {
	case partitionToBinary:
		format = driving.PartitionFormatBinary
	case partitionToCSV:
		format = driving.PartitionFormatCSV
	default:
		table, err := partitionService.Show(args[0])
		if err != nil {
			return fmt.Errorf("failed to read partition table: %w", err)
		}
		printPartitionTable(cmd, table)
		return nil
	}

	data, err := partitionService.Convert(args[0], format)
	if err != nil {
		return fmt.Errorf("failed to convert partition table: %w", err)
	}

	if partitionOutput == "" {
		_, err = cmd.OutOrStdout().Write(data)
		return err
	}
	if err := os.WriteFile(partitionOutput, data, 0o644); err != nil { //nolint:gosec // G306: partition tables are not secret
		return fmt.Errorf("failed to write %s: %w", partitionOutput, err)
	}
	cmd.Printf("Wrote %d bytes to %s\n", len(data), partitionOutput)
	return nil
}

func printPartitionTable(cmd *cobra.Command, table *domain.PartitionTable) {
	cmd.Printf("%-16s %-5s %-10s %-10s %-10s %s\n", "Name", "Type", "SubType", "Offset", "Size", "Flags")
	for _, p := range table.Partitions {
		flags := ""
		if p.Encrypted {
			flags = "encrypted"
		}
		if p.ReadOnly {
			if flags != "" {
				flags += ","
			}
			flags += "readonly"
		}
		cmd.Printf("%-16s %-5s %-10s 0x%08x 0x%08x %s\n",
			p.Name, p.Type, domain.SubTypeName(p.Type, p.SubType), p.Offset, p.Size, flags)
	}
}
