package cli

import (
	"flag"
	"fmt"

	"github.com/geoserve/confgen/pkg/generator"
	"github.com/geoserve/confgen/pkg/observability"
)

func newTenantsCommand() *Command {
	cmd := &Command{
		Name:        "tenants",
		Description: "List tenants with a config under the input directory",
	}
	cmd.Run = func(args []string) error {
		flags := flag.NewFlagSet("tenants", flag.ExitOnError)
		inputDir := flags.String("input-dir", ".", "Directory with per-tenant config subdirectories")
		if err := flags.Parse(args); err != nil {
			return err
		}

		m := generator.NewManager(generator.ManagerOptions{
			InputDir:  *inputDir,
			OutputDir: *inputDir + "-out",
			Logger:    observability.NopLogger(),
		})
		tenants, err := m.DiscoverTenants()
		if err != nil {
			return err
		}
		for _, name := range tenants {
			fmt.Println(name)
		}
		return nil
	}
	return cmd
}
