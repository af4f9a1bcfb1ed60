package cmd

import (
	"fmt"
	"io"
	"io/ioutil"
	"log"
	"path/filepath"
	"strings"

	"github.com/learnedindex/skewtools"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	jww "github.com/spf13/jwalterweatherman"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var subcommandFns = map[string]func(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command{}

// appFs is where every command reads and writes files.
var appFs = afero.NewOsFs()

func NewRootCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	rc := &cobra.Command{
		Use:   "skew",
		Short: "Skewed workload tools for learned indexes",
		Long: `Generates Zipf-skewed lookup workloads over sorted key datasets,
derives per-key access weights from them, and sweeps an external
learned-index benchmark over model variants and parameters, collecting
the results in a CSV table.
`,
		Version: fmt.Sprintf("%s (built %s)", skewtools.Version, skewtools.BuildTime),
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			v := viper.New()
			v.SetFs(appFs)
			err := setAllConfig(v, cmd.Flags(), "SKEW")
			if err != nil {
				return err
			}

			// return "dry run" error if "dry-run" flag is set
			if ret, err := cmd.Flags().GetBool("dry-run"); ret && err == nil {
				if cmd.Parent() != nil {
					return fmt.Errorf("dry run")
				}
			} else if err != nil {
				return fmt.Errorf("problem getting dry-run flag: %v", err)
			}

			return nil
		},
	}
	rc.PersistentFlags().Bool("dry-run", false, "Stop before executing. Useful for testing.")
	_ = rc.PersistentFlags().MarkHidden("dry-run")
	rc.PersistentFlags().StringP("config", "c", "", "Configuration file to read from.")
	rc.PersistentFlags().Bool("verbose", false, "Enable debug logging.")
	for _, subcomFn := range subcommandFns {
		rc.AddCommand(subcomFn(stdin, stdout, stderr))
	}
	rc.SetOutput(stderr)
	return rc
}

// newNotepad returns leveled loggers writing to stderr. INFO and above are
// always shown; DEBUG only when the command's verbose flag is set.
func newNotepad(cmd *cobra.Command, stderr io.Writer) *jww.Notepad {
	threshold := jww.LevelInfo
	if verbose, err := cmd.Flags().GetBool("verbose"); err == nil && verbose {
		threshold = jww.LevelDebug
	}
	return jww.NewNotepad(threshold, jww.LevelCritical, stderr, ioutil.Discard, "", log.LstdFlags)
}

// setAllConfig takes a FlagSet to be the definition of all configuration
// options, as well as their defaults. It then reads from the command line, the
// environment, and a config file (if specified), and applies the configuration
// in that priority order. Since each flag in the set contains a pointer to
// where its value should be stored, setAllConfig can directly modify the value
// of each config variable.
//
// setAllConfig looks for environment variables which are capitalized versions
// of the flag names with dashes replaced by underscores, and prefixed with
// envPrefix plus an underscore.
func setAllConfig(v *viper.Viper, flags *pflag.FlagSet, envPrefix string) error {
	// add cmd line flag def to viper
	err := v.BindPFlags(flags)
	if err != nil {
		return err
	}

	// add env to viper
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	c := v.GetString("config")
	var flagErr error
	validTags := make(map[string]bool)
	flags.VisitAll(func(f *pflag.Flag) {
		validTags[f.Name] = true
	})

	// add config file to viper
	if c != "" {
		v.SetConfigFile(c)
		switch strings.ToLower(filepath.Ext(c)) {
		case ".yaml", ".yml":
			v.SetConfigType("yaml")
		default:
			v.SetConfigType("toml")
		}
		err := v.ReadInConfig()
		if err != nil {
			return fmt.Errorf("error reading configuration file '%s': %v", c, err)
		}

		for _, key := range v.AllKeys() {
			if _, ok := validTags[key]; !ok {
				return fmt.Errorf("invalid option in configuration file: %v", key)
			}
		}
	}

	// set all values from viper
	flags.VisitAll(func(f *pflag.Flag) {
		if flagErr != nil {
			return
		}
		// A changed flag already holds the highest priority value. Setting
		// it again would append to slice flags rather than replace them.
		// Flags nobody set keep their defaults.
		if f.Changed || !v.IsSet(f.Name) {
			return
		}
		var value string
		if strings.HasSuffix(f.Value.Type(), "Slice") {
			// v.GetString returns "" for a list from a config file, so
			// join the elements into the comma separated form flags take.
			value = strings.Join(v.GetStringSlice(f.Name), ",")
		} else {
			value = v.GetString(f.Name)
		}
		flagErr = f.Value.Set(value)
	})
	return flagErr
}
