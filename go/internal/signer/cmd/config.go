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
	bucket      string
	object      string
	expires     time.Duration
	method      string
	headers     []string
	keyFile     string
	email       string
	metadataURL string
	iamURL      string
	verbose     bool
}

func (c *Config) validate() error {
	if c.bucket == "" || c.object == "" {
		return errors.New("both --bucket and --object are required")
	}
	if c.email != "" && c.keyFile == "" {
		return errors.New("--email only applies together with --key-file")
	}
	for _, h := range c.headers {
		if !strings.Contains(h, "=") {
			return fmt.Errorf("invalid header %q (want key=value)", h)
		}
	}
	return nil
}

func (c *Config) headerMap() map[string]string {
	headers := make(map[string]string, len(c.headers))
	for _, h := range c.headers {
		key, value, _ := strings.Cut(h, "=")
		headers[key] = value
	}
	return headers
}

func newCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("SIGNURL")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "signurl",
		Short:         "Print a V4 signed Cloud Storage URL for an object.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			return run(cmd.Context(), cmd.OutOrStdout(), cfg)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVar(&cfg.bucket, "bucket", "", "bucket holding the object (env: SIGNURL_BUCKET)")
	fs.StringVar(&cfg.object, "object", "", "object name (env: SIGNURL_OBJECT)")
	fs.DurationVar(&cfg.expires, "expires", time.Hour, "how long the URL stays valid (env: SIGNURL_EXPIRES)")
	fs.StringVarP(&cfg.method, "method", "X", "GET", "HTTP method the URL grants (env: SIGNURL_METHOD)")
	fs.StringArrayVarP(&cfg.headers, "header", "H", nil, "extra signed header as key=value, repeatable")
	fs.StringVar(&cfg.keyFile, "key-file", "", "sign locally with a service account JSON or PEM key (env: SIGNURL_KEY_FILE)")
	fs.StringVar(&cfg.email, "email", "", "account email when --key-file is a bare PEM key (env: SIGNURL_EMAIL)")
	fs.StringVar(&cfg.metadataURL, "metadata-url", "", "compute metadata server base URL (env: SIGNURL_METADATA_URL)")
	fs.StringVar(&cfg.iamURL, "iam-url", "", "IAM Credentials API base URL (env: SIGNURL_IAM_URL)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "log intermediate signing values (env: SIGNURL_VERBOSE)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}
