package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ozzy-ext/redcucumber-apiclient/apiclient"
)

func newMethodsCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "methods",
		Short: "List the methods declared in the registry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			reg, err := root.loadRegistry()
			if err != nil {
				return fmt.Errorf("load registry: %w", err)
			}
			printMethods(cmd.OutOrStdout(), reg)
			return nil
		},
	}
}

func printMethods(w io.Writer, reg *apiclient.Registry) {
	for _, id := range reg.IDs() {
		desc, _ := reg.Lookup(id)
		params := make([]string, 0, len(desc.Parameters))
		for _, p := range desc.Parameters {
			params = append(params, describeParam(p))
		}
		fmt.Fprintf(w, "%s\t%s %s\t%s\n", desc.ID, desc.Method, desc.Path, strings.Join(params, " "))
	}
}

func describeParam(p apiclient.Parameter) string {
	typ := p.Type
	if typ == "" {
		typ = "string"
	}
	return fmt.Sprintf("%s:%s(%s)", p.In, p.Name, typ)
}
