package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kiesman99/tfwgen/internal/generator"
	"github.com/kiesman99/tfwgen/internal/raster"
)

// Version is reported by the health endpoint
const Version = "1.0.0"

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "tfwgen <raster>",
	Short: "Write a world file for a georeferenced raster",
	Long: `tfwgen reads the affine georeferencing transform of a raster and writes
it to a world file next to the raster: same name, extension .tfw.

The world file holds six lines: pixel width, row rotation, column rotation,
pixel height, and the X and Y coordinates of the center of the top-left pixel.

Examples:
  # Write images/tile.tfw
  tfwgen images/tile.tif

  # Fail instead of writing a default transform for rasters without georeferencing
  tfwgen --strict scan.tif

  # Start HTTP server
  tfwgen serve --port 8080`,
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE:         runGenerate,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.tfwgen.yaml)")
	rootCmd.PersistentFlags().String("driver", "", fmt.Sprintf("raster driver %v (default %s)", raster.Drivers(), raster.DefaultDriver()))
	rootCmd.PersistentFlags().Bool("strict", false, "fail when the raster has no geotransform instead of writing the default one")

	viper.BindPFlag("driver", rootCmd.PersistentFlags().Lookup("driver"))
	viper.BindPFlag("strict", rootCmd.PersistentFlags().Lookup("strict"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	// A missing .env file is fine.
	_ = godotenv.Load()

	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory.
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		// Search config in home directory with name ".tfwgen" (without extension).
		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".tfwgen")
	}

	viper.SetEnvPrefix("tfwgen")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv() // read in environment variables that match

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func runGenerate(cmd *cobra.Command, args []string) error {
	gen, err := generator.New(&generator.Options{
		Driver: viper.GetString("driver"),
		Strict: viper.GetBool("strict"),
		Log:    cmd.ErrOrStderr(),
	})
	if err != nil {
		return err
	}

	_, err = gen.Generate(args[0])
	return err
}
