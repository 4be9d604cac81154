package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/golovatskygroup/mcp-gateway/internal/catalog"
	"github.com/golovatskygroup/mcp-gateway/internal/figma"
	"github.com/golovatskygroup/mcp-gateway/internal/youtrack"
)

var catalogs = map[string]func() *catalog.Catalog{
	youtrack.ServiceName: youtrack.Catalog,
	figma.ServiceName:    figma.Catalog,
}

func newToolsCommand() *cobra.Command {
	return &cobra.Command{
		Use:       "tools <youtrack|figma>",
		Short:     "Print a service's tool catalog as JSON",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{youtrack.ServiceName, figma.ServiceName},
		RunE: func(cmd *cobra.Command, args []string) error {
			build, ok := catalogs[args[0]]
			if !ok {
				return fmt.Errorf("unknown service %q (want youtrack or figma)", args[0])
			}
			data, err := json.MarshalIndent(build().List(), "", "  ")
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return err
		},
	}
}
