package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create an account",
	RunE: func(cmd *cobra.Command, args []string) error {
		in, err := userInputFromFlags(cmd)
		if err != nil {
			return err
		}
		// registering yourself: the global credentials are the new account's
		if in.Email == "" && in.Password == "" {
			in.Email, in.Password = flagEmail, flagPassword
		}

		client, cleanup, err := newClient(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()

		session, err := client.Register(cmd.Context(), in)
		if err != nil {
			return err
		}
		if !session.Authenticated() {
			fmt.Fprintf(cmd.OutOrStdout(), "registered %s, log in to continue\n", in.Email)
			return nil
		}
		return printSession(cmd.OutOrStdout(), session)
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Log in and show the session",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, session, cleanup, err := loggedInClient(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()

		return printSession(cmd.OutOrStdout(), session)
	},
}

func init() {
	addUserInputFlags(registerCmd)

	rootCmd.AddCommand(registerCmd, whoamiCmd)
}
