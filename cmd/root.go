package cmd

import (
	"fmt"
	"os"
	"strings"

	homedir "github.com/mitchellh/go-homedir"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	// VERSION is set during build
	VERSION string
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "obbyspy",
	Short: "CLI tool to inspect and extract files from .obby plugin archives",
	Long: `The obbyspy CLI lists, extracts and inspects entries of .obby plugin
	archives, read from local disk or straight from S3.

	example:

		obbyspy list plugin.obby
		obbyspy manifest s3://myBucket/plugins/plugin.obby
		obbyspy extract plugin.obby -f main.js -f styles.css -d out/`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level, err := log.ParseLevel(viper.GetString("log-level"))
		if err != nil {
			return err
		}
		log.SetLevel(level)
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute(version string) {
	VERSION = version
	rootCmd.Version = version

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.obbyspy.yaml)")
	rootCmd.PersistentFlags().String("log-level", "warning", "log level (debug, info, warning, error)")
	rootCmd.PersistentFlags().Int64("max-entry-size", 0, "refuse to decode entries larger than this many bytes (0 = no limit)")
	rootCmd.PersistentFlags().Int64("max-archive-size", 512<<20, "refuse to load archives larger than this many bytes (0 = no limit)")
	rootCmd.PersistentFlags().String("aws-region", "", "AWS region for s3:// archives (default from the shared AWS config)")

	for _, name := range []string{"log-level", "max-entry-size", "max-archive-size", "aws-region"} {
		if err := viper.BindPFlag(name, rootCmd.PersistentFlags().Lookup(name)); err != nil {
			panic(err)
		}
	}
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory.
		home, err := homedir.Dir()
		if err != nil {
			log.Warnf("unable to locate home directory, err: %v", err)
		} else {
			// Search config in home directory with name ".obbyspy" (without extension).
			viper.AddConfigPath(home)
			viper.SetConfigName(".obbyspy")
		}
	}

	viper.SetEnvPrefix("obbyspy")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		log.Debugf("using config file: %s", viper.ConfigFileUsed())
	}
}
