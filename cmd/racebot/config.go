package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	url          string
	room         string
	name         string
	startArticle string
	endArticle   string
	path         []string
	host         bool
	stepInterval time.Duration
	verbose      bool
	version      bool
}

func (c *Config) validate() error {
	if c.url == "" {
		return errors.New("--url is required")
	}
	if c.room == "" {
		return errors.New("--room is required")
	}
	if c.host && (c.startArticle == "" || c.endArticle == "") {
		return errors.New("--start and --end are required when hosting")
	}
	if c.stepInterval <= 0 {
		return fmt.Errorf("invalid step interval: %s", c.stepInterval)
	}
	return nil
}

func newCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("PAGERACER")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "racebot",
		Short:         "A headless pageracer client that joins a room and walks a scripted article path.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		Version:       releaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&cfg.url, "url", "u", "", "websocket endpoint of the game server (env: PAGERACER_URL)")
	fs.StringVarP(&cfg.room, "room", "r", "", "room id to join (env: PAGERACER_ROOM)")
	fs.StringVarP(&cfg.name, "name", "n", "", "player display name, random if empty (env: PAGERACER_NAME)")
	fs.StringVar(&cfg.startArticle, "start", "", "start article when hosting (env: PAGERACER_START)")
	fs.StringVar(&cfg.endArticle, "end", "", "end article when hosting (env: PAGERACER_END)")
	fs.StringSliceVar(&cfg.path, "path", nil, "comma-separated article path to walk after the race starts (env: PAGERACER_PATH)")
	fs.BoolVar(&cfg.host, "host", false, "host the room and start the race (env: PAGERACER_HOST)")
	fs.DurationVar(&cfg.stepInterval, "step-interval", 2*time.Second, "delay between navigation steps (env: PAGERACER_STEP_INTERVAL)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display debug output (env: PAGERACER_VERBOSE)")
	fs.BoolVarP(&cfg.version, "version", "V", false, "display version and exit (env: PAGERACER_VERSION)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("racebot v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}
