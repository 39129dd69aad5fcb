package cli

import (
	"flag"
	"fmt"

	"github.com/geoserve/confgen/pkg/tenant"
)

// check parses a tenant config and reports structural problems without
// touching the config database or writing output.
func newCheckCommand() *Command {
	cmd := &Command{
		Name:        "check",
		Description: "Parse and validate a tenant config file",
	}
	cmd.Run = func(args []string) error {
		flags := flag.NewFlagSet("check", flag.ExitOnError)
		configPath := flags.String("config", "", "Tenant config file")
		dir := flags.String("dir", "", "Tenant directory to locate the config in")
		if err := flags.Parse(args); err != nil {
			return err
		}

		path := *configPath
		if path == "" {
			if *dir == "" {
				return fmt.Errorf("either -config or -dir is required")
			}
			var err error
			path, err = tenant.Locate(*dir)
			if err != nil {
				return err
			}
		}

		cfg, err := tenant.Load(path)
		if err != nil {
			return err
		}
		fmt.Printf("%s: ok (tenant %q, %d services)\n", path, cfg.Tenant(), len(cfg.Services))
		return nil
	}
	return cmd
}
