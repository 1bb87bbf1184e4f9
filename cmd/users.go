package cmd

import (
	"fmt"

	"github.com/curaious/ors/internal/perrors"
	"github.com/curaious/ors/pkg/access"
	"github.com/curaious/ors/pkg/fleet"
	"github.com/spf13/cobra"
)

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Manage user accounts (admin only)",
}

var usersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List users",
	RunE: func(cmd *cobra.Command, args []string) error {
		search, _ := cmd.Flags().GetString("search")
		role, _ := cmd.Flags().GetString("role")
		if role != access.All {
			r, err := fleet.ParseRole(role)
			if err != nil {
				return perrors.NewErrValidation(err.Error(), nil)
			}
			role = string(r)
		}

		client, _, cleanup, err := loggedInClient(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()

		users, err := client.FilteredUsers(cmd.Context(), access.UserFilter{Search: search, Role: role})
		if err != nil {
			return err
		}
		return printUsers(cmd.OutOrStdout(), users)
	},
}

var usersCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a user",
	RunE: func(cmd *cobra.Command, args []string) error {
		in, err := userInputFromFlags(cmd)
		if err != nil {
			return err
		}

		client, _, cleanup, err := loggedInClient(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()

		user, err := client.CreateUser(cmd.Context(), in)
		if err != nil {
			return err
		}
		return printUsers(cmd.OutOrStdout(), []fleet.User{user})
	},
}

var usersSetRoleCmd = &cobra.Command{
	Use:   "set-role <id> <role>",
	Short: "Change a user's role",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		role, err := fleet.ParseRole(args[1])
		if err != nil {
			return perrors.NewErrValidation(err.Error(), nil)
		}

		client, _, cleanup, err := loggedInClient(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()

		user, err := client.UpdateUserRole(cmd.Context(), args[0], role)
		if err != nil {
			return err
		}
		return printUsers(cmd.OutOrStdout(), []fleet.User{user})
	},
}

var usersDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, _, cleanup, err := loggedInClient(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()

		if err := client.DeleteUser(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
		return nil
	},
}

func addUserInputFlags(cmd *cobra.Command) {
	cmd.Flags().String("username", "", "username, at least 5 characters")
	cmd.Flags().String("user-email", "", "email of the account")
	cmd.Flags().String("user-password", "", "password of the account, at least 6 characters")
	cmd.Flags().String("role", "", "admin, inspector or viewer")
}

func userInputFromFlags(cmd *cobra.Command) (fleet.UserInput, error) {
	var in fleet.UserInput
	in.Username, _ = cmd.Flags().GetString("username")
	in.Email, _ = cmd.Flags().GetString("user-email")
	in.Password, _ = cmd.Flags().GetString("user-password")

	// an empty role is left to validation
	if raw, _ := cmd.Flags().GetString("role"); raw != "" {
		role, err := fleet.ParseRole(raw)
		if err != nil {
			return in, perrors.NewErrValidation(err.Error(), nil)
		}
		in.Role = role
	}
	return in, nil
}

func init() {
	usersListCmd.Flags().String("search", "", "username or email substring")
	usersListCmd.Flags().String("role", access.All, "admin, inspector, viewer or all")

	addUserInputFlags(usersCreateCmd)

	usersCmd.AddCommand(usersListCmd, usersCreateCmd, usersSetRoleCmd, usersDeleteCmd)
	rootCmd.AddCommand(usersCmd)
}
