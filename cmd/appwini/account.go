package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"appwini/internal/profile"
	"appwini/internal/session"
)

func loginCmd(a *app) *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the session token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := session.Login(cmd.Context(), a.backend, a.store, email, password)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "signed in as %s\n", s.User.Email)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password")
	return cmd
}

func registerCmd(a *app) *cobra.Command {
	var name, email, password string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and sign in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := session.Register(cmd.Context(), a.backend, a.store, name, email, password)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "welcome, %s\n", s.User.Name)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password")
	return cmd
}

func logoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.store.Clear()
		},
	}
}

func profileCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Show the signed-in account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := a.profile().Me(cmd.Context())
			if err != nil {
				return err
			}
			printProfile(cmd, p)
			return nil
		},
	}

	var name, email, phone string
	update := &cobra.Command{
		Use:   "update",
		Short: "Change name, email or phone",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var u profile.Update
			if cmd.Flags().Changed("name") {
				u.Name = &name
			}
			if cmd.Flags().Changed("email") {
				u.Email = &email
			}
			if cmd.Flags().Changed("phone") {
				u.Phone = &phone
			}
			p, err := a.profile().UpdateMe(cmd.Context(), u)
			if err != nil {
				return err
			}
			printProfile(cmd, p)
			return nil
		},
	}
	update.Flags().StringVar(&name, "name", "", "display name")
	update.Flags().StringVar(&email, "email", "", "email")
	update.Flags().StringVar(&phone, "phone", "", "phone number")

	var current, next, confirm string
	password := &cobra.Command{
		Use:   "password",
		Short: "Change the account password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.profile().ChangePassword(cmd.Context(), current, next, confirm); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "password updated")
			return nil
		},
	}
	password.Flags().StringVar(&current, "current", "", "current password")
	password.Flags().StringVar(&next, "new", "", "new password")
	password.Flags().StringVar(&confirm, "confirm", "", "repeat the new password")

	cmd.AddCommand(update, password, rolesCmd(a))
	return cmd
}

func printProfile(cmd *cobra.Command, p profile.Profile) {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "name\t%s\nemail\t%s\nphone\t%s\nrole\t%s\n", p.Name, p.Email, p.Phone, p.Role)
	w.Flush()
}

func rolesCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "roles",
		Short: "List role upgrade requests",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			list, err := a.profile().ListRoleRequests(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tROLE\tSTATUS\tREQUESTED")
			for _, r := range list {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.ID, r.Role, r.Status, r.CreatedAt.Format("2006-01-02"))
			}
			return w.Flush()
		},
	}

	var reason string
	request := &cobra.Command{
		Use:   "request ROLE",
		Short: "Ask to become a seller, driver or admin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := a.profile().CreateRoleRequest(cmd.Context(), args[0], reason)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "request %s is %s\n", r.ID, r.Status)
			return nil
		},
	}
	request.Flags().StringVar(&reason, "reason", "", "why you need the role")

	cancel := &cobra.Command{
		Use:   "cancel ID",
		Short: "Withdraw a pending request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.profile().CancelRoleRequest(cmd.Context(), args[0])
		},
	}

	cmd.AddCommand(request, cancel)
	return cmd
}
