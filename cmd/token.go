// Copyright (c) Microsoft Corporation. All rights reserved.
// Licensed under the MIT License.

package cmd

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/azure/adtoken/pkg/adal"
	"github.com/spf13/cobra"
)

func tokenCmd(opts *GlobalOptions) *cobra.Command {
	var resource string
	var username string
	var outputJson bool

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Acquire an access token silently from the cached credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			authContext, resolved, err := newAuthContext(opts, nil)
			if err != nil {
				return err
			}

			if resource == "" {
				resource = resolved.Resource
			}
			if resource == "" {
				return fmt.Errorf("no resource configured, pass --resource or set %s", envResource)
			}

			userID := adal.AnyUser()
			if username != "" {
				userID, err = adal.NewUserIdentifier(username, adal.UserIdentifierRequiredDisplayableID)
				if err != nil {
					return err
				}
			}

			result, err := authContext.AcquireTokenSilent(cmd.Context(), resource, resolved.ClientID, userID)
			if err != nil {
				if errors.Is(err, adal.ErrSilentAcquisitionFailed) {
					return fmt.Errorf("no cached credentials can satisfy this request, run 'adtoken login' first: %w", err)
				}

				return err
			}

			if outputJson {
				encoded, err := json.MarshalIndent(map[string]any{
					"accessToken": result.AccessToken,
					"tokenType":   result.AccessTokenType,
					"expiresOn":   result.ExpiresOn,
					"tenantId":    result.TenantID,
				}, "", "  ")
				if err != nil {
					return err
				}

				fmt.Fprintln(cmd.OutOrStdout(), string(encoded))
				return nil
			}

			fmt.Fprintln(cmd.OutOrStdout(), result.AccessToken)
			return nil
		},
	}

	cmd.Flags().StringVar(&resource, "resource", "", "Resource to request the token for")
	cmd.Flags().StringVar(&username, "username", "", "Require the token to belong to this user")
	cmd.Flags().BoolVar(&outputJson, "json", false, "Print the full token response as JSON")

	return cmd
}
