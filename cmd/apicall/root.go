package main

import (
	"io"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ozzy-ext/redcucumber-apiclient/apiclient"
)

type rootOptions struct {
	registryPath string
	verbose      bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "apicall",
		Short:         "Invoke HTTP operations declared in a method registry",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	fs := cmd.PersistentFlags()
	fs.StringVarP(&opts.registryPath, "registry", "r", "api.yaml", "method registry yaml path")
	fs.BoolVarP(&opts.verbose, "verbose", "v", false, "log requests and responses to stderr")

	cmd.AddCommand(
		newMethodsCmd(opts),
		newInvokeCmd(opts),
	)
	return cmd
}

func (o *rootOptions) loadRegistry() (*apiclient.Registry, error) {
	return apiclient.LoadRegistry(strings.TrimSpace(o.registryPath))
}

func (o *rootOptions) logger(w io.Writer) zerolog.Logger {
	if !o.verbose {
		return zerolog.Nop()
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: w, NoColor: true}).
		Level(zerolog.DebugLevel).
		With().
		Timestamp().
		Logger()
}
