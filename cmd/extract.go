package cmd

import (
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/alec-rabold/obbyspy/pkg/obbyfile"
)

var files, outFiles []string
var outDir string

var extractCmd = &cobra.Command{
	Use:   "extract <archive>",
	Short: "Extract one or more entries from an obby archive",
	Long: `Decodes the named entries of an obby archive, inflating compressed
	entries, and writes them to stdout, to files, or into a directory.

	ex:
	obbyspy extract plugin.obby -f plugin.json
	obbyspy extract plugin.obby -f main.js -o my/directory/main.js
	obbyspy extract plugin.obby -f main.js -f styles.css -o bundle.txt
	obbyspy extract plugin.obby -f main.js -o main.js -f styles.css -o styles.css
	obbyspy extract s3://myBucket/plugin.obby -d unpacked/`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(files) == 0 && outDir == "" {
			return fmt.Errorf("at least one --file, or --dir, is required")
		}
		if len(outFiles) > 1 && len(outFiles) != len(files) {
			return fmt.Errorf("must specify one output file for every entry")
		}
		if outDir != "" && len(outFiles) > 0 {
			return fmt.Errorf("--out and --dir are mutually exclusive")
		}

		r, err := openArchive(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		names := files
		if len(names) == 0 {
			names = r.ListEntries()
		}
		contents, err := extractAll(r, names)
		if err != nil {
			return err
		}

		switch {
		case outDir != "":
			for i, name := range names {
				if err := writeEntry(outDir, name, contents[i]); err != nil {
					return err
				}
			}
		case len(outFiles) == 0:
			out := cmd.OutOrStdout()
			for _, data := range contents {
				if _, err := out.Write(data); err != nil {
					return err
				}
			}
		case len(outFiles) == 1:
			return writeFile(outFiles[0], contents...)
		default:
			for i := range outFiles {
				if err := writeFile(outFiles[i], contents[i]); err != nil {
					return err
				}
			}
		}
		return nil
	},
}

// extractAll decodes the named entries concurrently, preserving order.
func extractAll(r *obbyfile.Reader, names []string) ([][]byte, error) {
	contents := make([][]byte, len(names))
	var g errgroup.Group
	for i, name := range names {
		i, name := i, name
		g.Go(func() error {
			data, err := r.ExtractEntry(name)
			if obbyfile.IsWarning(err) {
				log.Warn(err)
			} else if err != nil {
				log.Errorf("error extracting entry (name: %s), err: %v", name, err)
				return err
			}
			contents[i] = data
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return contents, nil
}

// writeEntry stores data under dir using the entry name as a relative path.
// Entry names were checked for leading or trailing separators and for
// empty, "." and ".." elements when the archive was parsed.
func writeEntry(dir, name string, data []byte) error {
	path := filepath.Join(dir, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	if err := ioutil.WriteFile(path, data, 0644); err != nil {
		log.Errorf("error writing to file (name: %s), err: %v", path, err)
		return err
	}
	log.WithField("path", path).Debug("extracted entry")
	return nil
}

// writeFile replaces path with the concatenation of contents.
func writeFile(path string, contents ...[]byte) (err error) {
	f, err := os.OpenFile(path, os.O_TRUNC|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		log.Errorf("error opening file (name: %s), err: %v", path, err)
		return err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			log.Errorf("error closing file (name: %s), err: %v", path, cerr)
			err = cerr
		}
	}()
	for _, data := range contents {
		if _, err := f.Write(data); err != nil {
			log.Errorf("error writing to file (name: %s), err: %v", path, err)
			return err
		}
	}
	return nil
}

func init() {
	rootCmd.AddCommand(extractCmd)
	extractCmd.Flags().StringSliceVarP(&files, "file", "f", []string{}, "names of the entries to extract (default: all entries when --dir is set)")
	extractCmd.Flags().StringSliceVarP(&outFiles, "out", "o", []string{}, "name(s) of the file(s) to write output to")
	extractCmd.Flags().StringVarP(&outDir, "dir", "d", "", "directory to unpack entries into, keeping their paths")
}
