package cmd

import (
	"fmt"

	"github.com/olekukonko/tablewriter"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/alec-rabold/obbyspy/pkg/obbyfile"
)

var parseManifest bool

var manifestCmd = &cobra.Command{
	Use:   "manifest <archive>",
	Short: "Print the plugin.json manifest of an obby archive",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := openArchive(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()

		if !parseManifest {
			text, err := r.ExtractPluginJSON()
			if obbyfile.IsWarning(err) {
				log.Warn(err)
			} else if err != nil {
				return err
			}
			fmt.Fprintln(out, text)
			return nil
		}

		m, err := r.PluginManifest()
		if obbyfile.IsWarning(err) {
			log.Warn(err)
		} else if err != nil {
			return err
		}
		table := tablewriter.NewWriter(out)
		table.SetAutoWrapText(false)
		table.AppendBulk([][]string{
			{"ID", m.ID},
			{"Name", m.Name},
			{"Version", m.Version},
			{"Author", m.Author},
			{"Min app version", m.MinAppVersion},
			{"Description", m.Description},
		})
		table.Render()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(manifestCmd)
	manifestCmd.Flags().BoolVarP(&parseManifest, "parse", "p", false, "decode the manifest and print its fields")
}
