package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"debtease/cmd/internal/profile"
	"debtease/cmd/security/password"
)

func (c *cli) newProfileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Show your profile, or manage creditors and debtors as an admin",
		Args:  cobra.NoArgs,
		RunE: c.action(func(ctx context.Context, _ *cobra.Command, _ []string) error {
			if _, _, err := c.requireSession(); err != nil {
				return err
			}
			p, err := c.app.Profiles().Mine(ctx)
			if err != nil {
				return err
			}
			c.printProfile(p)
			return nil
		}),
	}
	cmd.AddCommand(
		c.newCreditorsCmd(),
		c.newDebtorsCmd(),
		c.newCreateCreditorCmd(),
		c.newDeleteProfileCmd("delete-creditor", "Delete a creditor without cases",
			func(ctx context.Context, s *profile.Service, id int) error { return s.DeleteCreditor(ctx, id) }),
		c.newDeleteProfileCmd("delete-debtor", "Delete a debtor",
			func(ctx context.Context, s *profile.Service, id int) error { return s.DeleteDebtor(ctx, id) }),
		c.newEditDebtorCmd(),
	)
	return cmd
}

func (c *cli) printProfile(p profile.Profile) {
	c.printf("name:  %s\nrole:  %s\n", p.DisplayName(), p.Role)
	switch {
	case p.Admin != nil:
		c.printf("user:  %s\n", p.Admin.User.Username)
	case p.Creditor != nil:
		cr := p.Creditor
		c.printf("user:    %s\naddress: %s\nphone:   %s\nemail:   %s\naccount: %s\n",
			cr.User.Username, cr.Address, cr.PhoneNumber, cr.Email, cr.AccountNumber)
		if cr.Company != nil {
			c.printf("company: %s (%s, %s)\n", cr.Company.Name, cr.Company.Industry, cr.Company.Locality)
		}
	case p.Debtor != nil:
		c.printf("email: %s\nphone: %s\n", p.Debtor.Email, p.Debtor.PhoneNumber)
	}
}

func (c *cli) newCreditorsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "creditors",
		Short: "List creditors",
		Args:  cobra.NoArgs,
		RunE: c.action(func(ctx context.Context, _ *cobra.Command, _ []string) error {
			list, err := c.app.Profiles().Creditors(ctx)
			if err != nil {
				return err
			}
			for _, cr := range list {
				c.printf("%-6d  %-28s  %-20s  %s\n", cr.ID, cr.Name, cr.User.Username, cr.Email)
			}
			return nil
		}),
	}
}

func (c *cli) newDebtorsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "debtors",
		Short: "List debtors",
		Args:  cobra.NoArgs,
		RunE: c.action(func(ctx context.Context, _ *cobra.Command, _ []string) error {
			list, err := c.app.Profiles().Debtors(ctx)
			if err != nil {
				return err
			}
			for _, d := range list {
				c.printf("%-6d  %-28s  %s\n", d.ID, d.FullName(), d.Email)
			}
			return nil
		}),
	}
}

func (c *cli) newCreateCreditorCmd() *cobra.Command {
	var in profile.CreditorInput
	var username string
	var generate bool

	cmd := &cobra.Command{
		Use:   "create-creditor",
		Short: "Create a creditor and its login; the password is read from stdin unless generated",
		Args:  cobra.NoArgs,
		RunE: c.action(func(ctx context.Context, _ *cobra.Command, _ []string) error {
			if username == "" {
				return errors.New("--username is required")
			}
			secret, err := c.newAccountPassword(generate)
			if err != nil {
				return err
			}
			in.Account = &profile.Credentials{Username: username, Password: secret}
			cr, err := c.app.Profiles().CreateCreditor(ctx, in)
			if err != nil {
				return err
			}
			c.printf("Created creditor %d (%s).\n", cr.ID, cr.Name)
			if generate {
				c.printf("Initial password for %s: %s\n", username, secret)
			}
			return nil
		}),
	}
	f := cmd.Flags()
	f.StringVar(&in.Name, "name", "", "creditor name")
	f.StringVar(&in.Address, "address", "", "postal address")
	f.StringVar(&in.PhoneNumber, "phone", "", "phone number")
	f.StringVar(&in.Email, "email", "", "email address")
	f.StringVar(&in.AccountNumber, "account", "", "bank account number")
	f.StringVar(&username, "username", "", "login username")
	f.BoolVar(&generate, "generate-password", false, "generate the initial password and print it")
	return cmd
}

// newAccountPassword generates a password or reads one and checks it
// against the default policy.
func (c *cli) newAccountPassword(generate bool) (string, error) {
	if generate {
		return password.Generate(password.GeneratedLength)
	}
	secret, err := c.readPassword(false)
	if err != nil {
		return "", err
	}
	if err := password.DefaultPolicy().Validate(secret); err != nil {
		return "", fmt.Errorf("new password rejected: %w", err)
	}
	return secret, nil
}

func (c *cli) newEditDebtorCmd() *cobra.Command {
	var in profile.DebtorInput

	cmd := &cobra.Command{
		Use:   "edit-debtor <id>",
		Short: "Update a debtor's contact details",
		Args:  cobra.ExactArgs(1),
		RunE: c.action(func(ctx context.Context, _ *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			d, err := c.app.Profiles().EditDebtor(ctx, id, in)
			if err != nil {
				return err
			}
			c.printf("Updated debtor %d (%s).\n", d.ID, d.FullName())
			return nil
		}),
	}
	f := cmd.Flags()
	f.StringVar(&in.Name, "name", "", "first name")
	f.StringVar(&in.Surname, "surname", "", "surname")
	f.StringVar(&in.Email, "email", "", "email address")
	f.StringVar(&in.PhoneNumber, "phone", "", "phone number")
	return cmd
}

func (c *cli) newDeleteProfileCmd(use, short string, del func(context.Context, *profile.Service, int) error) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: c.action(func(ctx context.Context, _ *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if err := del(ctx, c.app.Profiles(), id); err != nil {
				return err
			}
			c.printf("Deleted %d.\n", id)
			return nil
		}),
	}
}
