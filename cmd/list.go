package cmd

import (
	"fmt"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var namesOnly bool

var listCmd = &cobra.Command{
	Use:   "list <archive>",
	Short: "List the entries of an obby archive",
	Long: `Prints every entry in file order with its compression method and sizes.

	ex:
	obbyspy list plugin.obby
	obbyspy list --names s3://myBucket/plugin.obby`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := openArchive(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if namesOnly {
			for _, name := range r.ListEntries() {
				fmt.Fprintln(out, name)
			}
			return nil
		}

		table := tablewriter.NewWriter(out)
		table.SetHeader([]string{"Name", "Method", "Stored", "Size"})
		table.SetAutoWrapText(false)
		for _, e := range r.Entries() {
			table.Append([]string{
				e.Name,
				e.Method.String(),
				strconv.FormatInt(e.StoredSize, 10),
				strconv.FormatInt(e.RawSize, 10),
			})
		}
		table.Render()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().BoolVarP(&namesOnly, "names", "n", false, "print entry names only")
}
