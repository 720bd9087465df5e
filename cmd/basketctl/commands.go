package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func (c *cli) getCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <user-id>",
		Short: "Show the basket of a buyer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := parseID("user id", args[0])
			if err != nil {
				return err
			}
			b, err := c.svc.GetBasketByUser(cmd.Context(), userID)
			warn(cmd, err)
			return printJSON(cmd.OutOrStdout(), b)
		},
	}
}

func (c *cli) addCmd() *cobra.Command {
	return c.lineCmd("add <basket-id> <product-id> [quantity]", "Put a product in the basket", 2, 3,
		func(ctx context.Context, basketID, productID int64, args []string) error {
			quantity := 1
			if len(args) == 3 {
				q, err := strconv.Atoi(args[2])
				if err != nil {
					return fmt.Errorf("invalid quantity %q", args[2])
				}
				quantity = q
			}
			return c.svc.AddProduct(ctx, basketID, productID, quantity)
		})
}

func (c *cli) setCmd() *cobra.Command {
	return c.lineCmd("set <basket-id> <product-id> <quantity>", "Set the quantity of a line, 0 removes it", 3, 3,
		func(ctx context.Context, basketID, productID int64, args []string) error {
			q, err := strconv.Atoi(args[2])
			if err != nil {
				return fmt.Errorf("invalid quantity %q", args[2])
			}
			return c.svc.UpdateQuantity(ctx, basketID, productID, q)
		})
}

func (c *cli) removeCmd() *cobra.Command {
	return c.lineCmd("remove <basket-id> <product-id>", "Remove a line from the basket", 2, 2,
		func(ctx context.Context, basketID, productID int64, _ []string) error {
			return c.svc.RemoveProduct(ctx, basketID, productID)
		})
}

func (c *cli) increase(ctx context.Context, basketID, productID int64, _ []string) error {
	return c.svc.IncreaseQuantity(ctx, basketID, productID)
}

func (c *cli) decrease(ctx context.Context, basketID, productID int64, _ []string) error {
	return c.svc.DecreaseQuantity(ctx, basketID, productID)
}

func (c *cli) stepCmd(name, short string, fn lineFunc) *cobra.Command {
	return c.lineCmd(name+" <basket-id> <product-id>", short, 2, 2, fn)
}

type lineFunc func(ctx context.Context, basketID, productID int64, args []string) error

// lineCmd builds a mutation addressed by basket and product id.
func (c *cli) lineCmd(use, short string, minArgs, maxArgs int, fn lineFunc) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.RangeArgs(minArgs, maxArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			basketID, productID, err := parseIDs(args)
			if err != nil {
				return err
			}
			if err := fn(cmd.Context(), basketID, productID, args); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "ok")
			return nil
		},
	}
}

func (c *cli) clearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear <basket-id>",
		Short: "Remove every line from the basket",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			basketID, err := parseID("basket id", args[0])
			if err != nil {
				return err
			}
			if err := c.svc.ClearBasket(cmd.Context(), basketID); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "ok")
			return nil
		},
	}
}

func (c *cli) promoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "promo <basket-id> <code>",
		Short: "Apply a promo code and print its discount rate",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			basketID, err := parseID("basket id", args[0])
			if err != nil {
				return err
			}
			rate, err := c.svc.ApplyPromoCode(cmd.Context(), basketID, args[1])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]any{"discountRate": rate})
		},
	}
}

func (c *cli) totalsCmd() *cobra.Command {
	var promo string
	cmd := &cobra.Command{
		Use:   "totals <basket-id>",
		Short: "Show subtotal, discount and total",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			basketID, err := parseID("basket id", args[0])
			if err != nil {
				return err
			}
			t, err := c.svc.CalculateTotals(cmd.Context(), basketID, promo)
			warn(cmd, err)
			return printJSON(cmd.OutOrStdout(), t)
		},
	}
	cmd.Flags().StringVar(&promo, "promo", "", "Promo code to price the basket with")
	return cmd
}

func (c *cli) validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <basket-id>",
		Short: "Check whether the basket can be checked out",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			basketID, err := parseID("basket id", args[0])
			if err != nil {
				return err
			}
			ok, err := c.svc.ValidateBeforeCheckout(cmd.Context(), basketID)
			warn(cmd, err)
			return printJSON(cmd.OutOrStdout(), map[string]bool{"valid": ok})
		},
	}
}
