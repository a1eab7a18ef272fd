// Copyright (c) Microsoft Corporation. All rights reserved.
// Licensed under the MIT License.

package cmd

import (
	"fmt"

	"github.com/azure/adtoken/pkg/adal"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func loginCmd(opts *GlobalOptions) *cobra.Command {
	var username string
	var resource string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in interactively and cache the resulting tokens",
		RunE: func(cmd *cobra.Command, args []string) error {
			webUI := newConsoleWebUI(cmd.InOrStdin(), cmd.OutOrStdout())

			authContext, resolved, err := newAuthContext(opts, webUI)
			if err != nil {
				return err
			}

			if resource == "" {
				resource = resolved.Resource
			}
			if resource == "" {
				return fmt.Errorf("no resource configured, pass --resource or set %s", envResource)
			}

			if resolved.RedirectURI == "" {
				return fmt.Errorf("no redirect URI configured, set %s or 'adtoken config set auth.redirectUri <uri>'",
					envRedirectURI)
			}

			userID := adal.AnyUser()
			if username != "" {
				userID, err = adal.NewUserIdentifier(username, adal.UserIdentifierOptionalDisplayableID)
				if err != nil {
					return err
				}
			}

			result, err := authContext.AcquireToken(
				cmd.Context(), resource, resolved.ClientID, resolved.RedirectURI, userID, "")
			if err != nil {
				return fmt.Errorf("login failed: %w", err)
			}

			signedInAs := "unknown user"
			if result.UserInfo != nil && result.UserInfo.DisplayableID != "" {
				signedInAs = result.UserInfo.DisplayableID
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s Signed in as %s.\n",
				color.GreenString("Success:"), color.New(color.Bold).Sprint(signedInAs))
			return nil
		},
	}

	cmd.Flags().StringVar(&username, "username", "", "Preselect this account on the sign-in page")
	cmd.Flags().StringVar(&resource, "resource", "", "Resource to request the initial token for")

	return cmd
}
