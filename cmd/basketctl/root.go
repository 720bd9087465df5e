package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/imrishuroy/go-basket-client/internal/client"
	"github.com/imrishuroy/go-basket-client/internal/config"
	"github.com/imrishuroy/go-basket-client/internal/logging"
)

// cli holds the flags shared by every subcommand and the facade built from them.
type cli struct {
	apiURL  string
	timeout time.Duration
	debug   bool

	svc *client.Service
	log *zap.Logger
}

func newRootCmd(cfg *config.Config) *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:   "basketctl",
		Short: "Inspect and edit marketplace baskets",
		Long: `basketctl talks to the basket API through the same facade the
storefront uses. Reads degrade to an empty basket or zero totals and print a
warning on stderr; mutations fail with a non-zero exit status.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.init()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = c.log.Sync()
		},
	}
	root.PersistentFlags().StringVar(&c.apiURL, "api-url", cfg.Client.BaseURL, "Basket API base URL")
	root.PersistentFlags().DurationVar(&c.timeout, "timeout", cfg.GetClientTimeout(), "Per-request timeout")
	root.PersistentFlags().BoolVar(&c.debug, "debug", false, "Log decode anomalies and requests to stderr")

	root.AddCommand(
		c.getCmd(),
		c.addCmd(),
		c.setCmd(),
		c.removeCmd(),
		c.clearCmd(),
		c.stepCmd("inc", "Add one unit to a line", c.increase),
		c.stepCmd("dec", "Remove one unit from a line", c.decrease),
		c.promoCmd(),
		c.totalsCmd(),
		c.validateCmd(),
	)
	return root
}

func (c *cli) init() error {
	c.log = zap.NewNop()
	if c.debug {
		l, err := logging.New("debug")
		if err != nil {
			return fmt.Errorf("failed to build logger: %w", err)
		}
		c.log = l
	}
	if c.apiURL == "" {
		return fmt.Errorf("--api-url is required")
	}
	c.svc = client.NewService(client.NewHTTPTransport(c.apiURL, c.timeout), c.log)
	return nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// warn reports a degraded read without failing the command.
func warn(cmd *cobra.Command, err error) {
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", err)
	}
}

func parseID(name, s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", name, s)
	}
	return id, nil
}

func parseIDs(args []string) (int64, int64, error) {
	basketID, err := parseID("basket id", args[0])
	if err != nil {
		return 0, 0, err
	}
	productID, err := parseID("product id", args[1])
	if err != nil {
		return 0, 0, err
	}
	return basketID, productID, nil
}
