// Copyright (c) Microsoft Corporation. All rights reserved.
// Licensed under the MIT License.

package cmd

import (
	"fmt"

	"github.com/azure/adtoken/pkg/adal"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func logoutCmd(opts *GlobalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove all cached tokens",
		RunE: func(cmd *cobra.Command, args []string) error {
			cachePath, err := tokenCacheFilePath()
			if err != nil {
				return err
			}

			store, err := adal.NewFileStore(cachePath)
			if err != nil {
				return err
			}

			if err := store.Delete(); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s Cached tokens removed.\n", color.GreenString("Success:"))
			return nil
		},
	}
}
