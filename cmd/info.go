package cmd

import (
	"encoding/hex"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var infoCmd = &cobra.Command{
	Use:   "info <archive>",
	Short: "Show the header of an obby archive",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := openArchive(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		h := r.Header()
		rows := [][]string{
			{"API version", h.APIVersion},
			{"Plugin assembly", h.PluginAssembly},
			{"Plugin version", h.PluginVersion},
			{"Hash", hex.EncodeToString(h.Hash[:])},
			{"Signed", strconv.FormatBool(h.Signed)},
			{"Data length", strconv.FormatInt(int64(h.DataLength), 10)},
			{"Entries", strconv.Itoa(r.Index().Len())},
			{"Duplicate entries", strconv.Itoa(r.Index().Duplicates())},
			{"Archive size", strconv.FormatInt(r.Size(), 10)},
		}

		table := tablewriter.NewWriter(cmd.OutOrStdout())
		table.SetAutoWrapText(false)
		table.AppendBulk(rows)
		table.Render()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(infoCmd)
}
