package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func (c *cli) newPINCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pin",
		Short: "Manage the local PIN used for biometric login",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	cmd.AddCommand(c.newPINEnrollCommand(), c.newPINUnenrollCommand())
	return cmd
}

func (c *cli) newPINEnrollCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "enroll",
		Short: "Set the PIN",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.loadApp()
			if err != nil {
				return err
			}
			pin, err := c.prompt("New PIN: ")
			if err != nil {
				return err
			}
			confirm, err := c.prompt("Repeat PIN: ")
			if err != nil {
				return err
			}
			if pin != confirm {
				return fmt.Errorf("PINs do not match")
			}
			if err := a.PIN.Enroll(pin); err != nil {
				return err
			}
			fmt.Fprintln(c.out, "PIN enrolled")
			return nil
		},
	}
}

func (c *cli) newPINUnenrollCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "unenroll",
		Short: "Remove the PIN",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.loadApp()
			if err != nil {
				return err
			}
			if err := a.PIN.Unenroll(); err != nil {
				return err
			}
			fmt.Fprintln(c.out, "PIN removed")
			return nil
		},
	}
}
