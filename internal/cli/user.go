package cli

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/Hons90/CRM/internal/audit"
	"github.com/Hons90/CRM/internal/rbac"
	"github.com/Hons90/CRM/internal/users"

	"github.com/spf13/cobra"
)

func userCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage user accounts",
	}
	cmd.AddCommand(userCreateCmd())
	cmd.AddCommand(userListCmd())
	return cmd
}

func userCreateCmd() *cobra.Command {
	var req users.CreateUserRequest
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a user account",
		Long: `Create a user account. Use this to bootstrap the first admin.

Examples:
  crmctl user create --name Admin --email admin@example.com --password change-me --role admin`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			e, closeFn, err := openEnv(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			u, err := e.users.Create(ctx, operator, req)
			if err != nil {
				return err
			}
			e.record(ctx, "user created", audit.TargetUser, u.ID, fmt.Sprintf(`{"role":%q}`, u.Role))
			fmt.Fprintf(cmd.OutOrStdout(), "%s created %s %s (id %d)\n", green("✓"), u.Role, u.Email, u.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&req.Name, "name", "", "display name")
	cmd.Flags().StringVar(&req.Email, "email", "", "login email")
	cmd.Flags().StringVar(&req.Password, "password", "", "initial password")
	cmd.Flags().StringVar(&req.Role, "role", rbac.RoleEmployee, "admin or employee")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func userListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List active users",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			e, closeFn, err := openEnv(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			list, err := e.users.List(ctx)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tEMAIL\tNAME\tROLE")
			for _, u := range list {
				role := u.Role
				if rbac.IsAdmin(role) {
					role = yellow(role)
				}
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", u.ID, u.Email, u.Name, role)
			}
			return tw.Flush()
		},
	}
}
