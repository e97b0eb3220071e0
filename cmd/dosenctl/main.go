package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/go-setoran-session/internal/app"
	"github.com/jrsteele09/go-setoran-session/internal/config"
	"github.com/jrsteele09/go-setoran-session/session"
	"github.com/spf13/cobra"
)

const configEnvVar = "SETORAN_CONFIG"

func main() {
	if err := newRootCommand(os.Stdin, os.Stdout).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", session.Message(err))
		os.Exit(1)
	}
}

// cli carries the state shared by all commands.
type cli struct {
	configPath string
	in         *bufio.Reader
	out        io.Writer
}

func newRootCommand(stdin io.Reader, stdout io.Writer) *cobra.Command {
	c := &cli{in: bufio.NewReader(stdin), out: stdout}

	cmd := &cobra.Command{
		Use:           "dosenctl",
		Short:         "Lecturer session client for the setoran API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetOut(stdout)
	cmd.PersistentFlags().StringVar(&c.configPath, "config", os.Getenv(configEnvVar),
		"YAML config file (env "+configEnvVar+"); environment variables override its values")

	cmd.AddCommand(
		c.newLoginCommand(),
		c.newLogoutCommand(),
		c.newStatusCommand(),
		c.newWhoamiCommand(),
		c.newAPICommand(),
		c.newWatchCommand(),
		c.newPINCommand(),
		c.newDevIDPCommand(),
	)
	return cmd
}

func (c *cli) loadConfig() (config.Config, error) {
	return config.Load(c.configPath)
}

func (c *cli) loadApp(options ...app.Option) (*app.App, error) {
	cfg, err := c.loadConfig()
	if err != nil {
		return nil, err
	}
	options = append([]app.Option{app.WithPINPrompter(c.promptPIN)}, options...)
	return app.New(cfg, options...)
}

func (c *cli) prompt(label string) (string, error) {
	fmt.Fprint(c.out, label)
	line, err := c.in.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", fmt.Errorf("read %s: %w", strings.TrimSuffix(strings.TrimSpace(label), ":"), err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (c *cli) promptPIN(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return c.prompt("PIN: ")
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func waitForStopSignal(ctx context.Context) {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
}

func displayAppname(w io.Writer, appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	fmt.Fprintln(w, myFigure.String())
}
