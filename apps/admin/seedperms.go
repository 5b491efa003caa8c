package main

import (
	"context"
	"fmt"

	"github.com/darasahq/darasa/core/access"
)

// seedPermissions loads the permission catalog and prints what is available.
func (cli *commandLine) seedPermissions() error {
	ctx := context.Background()
	if err := cli.accessSvc.SeedPermissions(ctx); err != nil {
		return err
	}

	perms, err := cli.accessSvc.Permissions(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("%d permissions available:\n", len(perms))
	for _, p := range perms {
		fmt.Printf("  %s\n", access.Describe(p))
	}
	return nil
}
