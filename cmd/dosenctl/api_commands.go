package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

func (c *cli) newAPICommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "api",
		Short: "Call the setoran API with the current session",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	cmd.AddCommand(c.newDosenCommand(), c.newSetoranCommand(), c.newRawCommand())
	return cmd
}

func (c *cli) newDosenCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "dosen",
		Short: "Show the lecturer profile and supervised students",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.loadApp()
			if err != nil {
				return err
			}
			data, err := a.API.DosenInfo(commandContext(cmd))
			if err != nil {
				return err
			}
			return c.printJSON(data)
		},
	}
}

func (c *cli) newSetoranCommand() *cobra.Command {
	var (
		submitFile string
		cancelFile string
	)

	cmd := &cobra.Command{
		Use:   "setoran <nim>",
		Short: "List, submit or cancel setoran of a student",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.loadApp()
			if err != nil {
				return err
			}
			ctx := commandContext(cmd)
			nim := args[0]

			var data json.RawMessage
			switch {
			case submitFile != "":
				payload, err := c.readPayload(submitFile)
				if err != nil {
					return err
				}
				data, err = a.API.SubmitSetoran(ctx, nim, payload)
				if err != nil {
					return err
				}
			case cancelFile != "":
				payload, err := c.readPayload(cancelFile)
				if err != nil {
					return err
				}
				data, err = a.API.CancelSetoran(ctx, nim, payload)
				if err != nil {
					return err
				}
			default:
				data, err = a.API.StudentSetoran(ctx, nim)
				if err != nil {
					return err
				}
			}
			return c.printJSON(data)
		},
	}

	cmd.Flags().StringVar(&submitFile, "submit", "", "Submit the JSON payload in this file ('-' for stdin)")
	cmd.Flags().StringVar(&cancelFile, "cancel", "", "Cancel the setoran listed in this JSON file ('-' for stdin)")
	cmd.MarkFlagsMutuallyExclusive("submit", "cancel")
	return cmd
}

func (c *cli) newRawCommand() *cobra.Command {
	var data string

	cmd := &cobra.Command{
		Use:   "raw <method> <path>",
		Short: "Send an arbitrary authenticated request relative to the API base URL",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.loadApp()
			if err != nil {
				return err
			}
			path := args[1]
			if !strings.HasPrefix(path, "/") {
				path = "/" + path
			}
			resp, err := a.API.Do(commandContext(cmd), strings.ToUpper(args[0]), path, json.RawMessage(data))
			if err != nil {
				return err
			}
			return c.printJSON(resp)
		},
	}

	cmd.Flags().StringVarP(&data, "data", "d", "", "JSON request body")
	return cmd
}

func (c *cli) readPayload(path string) (json.RawMessage, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(c.in)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read payload: %w", err)
	}
	return json.RawMessage(data), nil
}

func (c *cli) printJSON(data json.RawMessage) error {
	if len(data) == 0 {
		return nil
	}
	var out bytes.Buffer
	if err := json.Indent(&out, data, "", "  "); err != nil {
		_, err = c.out.Write(append(data, '\n'))
		return err
	}
	out.WriteByte('\n')
	_, err := out.WriteTo(c.out)
	return err
}
