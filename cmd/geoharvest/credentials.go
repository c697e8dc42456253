package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/geoharvest/geoharvest/interface/credentials"
)

func newCredentialsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "credentials",
		Short: "Manage the providers credentials in the system keyring",
		Long: `The providers credentials are resolved from the environment, the dotenv
file and the system keyring, in that order. This command stores them in the
keyring so that they do not have to live in the environment.

Known keys: ` + strings.Join(credentials.Keys(), ", "),
	}
	cmd.AddCommand(newCredentialsSetCmd(), newCredentialsDeleteCmd(), newCredentialsListCmd())
	return cmd
}

func checkKey(key string) error {
	for _, known := range credentials.Keys() {
		if key == known {
			return nil
		}
	}
	return fmt.Errorf("unknown key %q (known keys: %s)", key, strings.Join(credentials.Keys(), ", "))
}

func newCredentialsSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set KEY VALUE",
		Short: "Store a credential in the system keyring",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkKey(args[0]); err != nil {
				return err
			}
			return credentials.Keyring{}.Set(args[0], args[1])
		},
	}
}

func newCredentialsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete KEY",
		Short: "Remove a credential from the system keyring",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkKey(args[0]); err != nil {
				return err
			}
			return credentials.Keyring{}.Delete(args[0])
		},
	}
}

func newCredentialsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Show which credentials resolve, without printing them",
		RunE: func(cmd *cobra.Command, args []string) error {
			resolver, err := credentials.Default(envFile)
			if err != nil {
				return err
			}
			for _, key := range credentials.Keys() {
				state := "unset"
				if _, err := resolver.Resolve(key); err == nil {
					state = "set"
				}
				fmt.Printf("%-22s %s\n", key, state)
			}
			return nil
		},
	}
}
