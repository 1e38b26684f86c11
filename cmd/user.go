package cmd

import (
	"fmt"

	"github.com/example/srt-reserver/internal/auth"
	"github.com/spf13/cobra"
)

func newUserCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage console operators",
	}
	cmd.AddCommand(newUserAddCmd(g))
	return cmd
}

func newUserAddCmd(g *globalFlags) *cobra.Command {
	var username, password string

	c := &cobra.Command{
		Use:   "add",
		Short: "Add an operator who can sign in to the console",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := g.setup()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			svc, err := openServices(ctx, cfg, log, true)
			if err != nil {
				return err
			}
			defer svc.Close()

			op, err := auth.NewOperators(svc.db).Create(ctx, username, password)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created operator %q (id %d)\n", op.Username, op.ID)
			return nil
		},
	}

	c.Flags().StringVar(&username, "username", "", "username")
	c.Flags().StringVar(&password, "password", "", "password, at least 8 characters")
	_ = c.MarkFlagRequired("username")
	_ = c.MarkFlagRequired("password")
	return c
}
