package main

import (
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/abdelhadiDevWeb/labocart/internal/cartstore"
	"github.com/abdelhadiDevWeb/labocart/internal/cartview"
	"github.com/abdelhadiDevWeb/labocart/internal/domain"
	"github.com/spf13/cobra"
)

func (a *app) cartCmd() *cobra.Command {
	cartCmd := &cobra.Command{
		Use:   "cart",
		Short: "Inspect and change the cart",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "Show the cart lines and totals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()

			a.printCart(cmd.OutOrStdout(), e.cart.Snapshot())
			return nil
		},
	}

	addCmd := &cobra.Command{
		Use:   "add <id> [quantity]",
		Short: "Add a catalog product to the cart",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			quantity := 1
			if len(args) == 2 {
				if quantity, err = strconv.Atoi(args[1]); err != nil {
					return fmt.Errorf("invalid quantity %q", args[1])
				}
			}

			e, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()

			p, err := e.catalog.Get(cmd.Context(), id)
			if err != nil {
				return err
			}
			if err := e.cart.AddItem(cmd.Context(), p.Item(), quantity); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "added %d × %s\n", quantity, p.Name)
			return nil
		},
	}

	removeCmd := &cobra.Command{
		Use:   "remove <id>",
		Short: "Remove a line from the cart",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			e, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()

			return e.cart.RemoveItem(cmd.Context(), id)
		},
	}

	setCmd := &cobra.Command{
		Use:   "set <id> <quantity>",
		Short: "Overwrite a line's quantity; 0 removes it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			quantity, err := strconv.Atoi(args[1])
			if err != nil || quantity < 0 {
				return fmt.Errorf("invalid quantity %q", args[1])
			}
			e, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()

			return e.cart.SetQuantity(cmd.Context(), id, quantity)
		},
	}

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Empty the cart",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()

			return e.cart.Clear(cmd.Context())
		},
	}

	cartCmd.AddCommand(listCmd, addCmd, removeCmd, setCmd, clearCmd)
	return cartCmd
}

func (a *app) invoiceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "invoice",
		Short: "Show the invoice the checkout would display",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()

			panel := cartview.Mount(e.cart, cartview.WithTaxRate(a.cfg.TaxRate), cartview.WithLogger(a.log))
			defer panel.Unmount()
			panel.Open(cmd.Context())
			state, err := panel.Checkout()
			if err != nil {
				return err
			}
			a.printInvoice(cmd.OutOrStdout(), *state.Invoice)
			return nil
		},
	}
}

func (a *app) purchaseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "purchase",
		Short: "Confirm the purchase and empty the cart",
		Long:  "Nothing is charged or ordered: the purchase only empties the cart.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()

			panel := cartview.Mount(e.cart, cartview.WithTaxRate(a.cfg.TaxRate), cartview.WithLogger(a.log))
			defer panel.Unmount()
			panel.Open(cmd.Context())
			if _, err := panel.Checkout(); err != nil {
				return err
			}
			inv, err := panel.ConfirmPurchase(cmd.Context())
			if err != nil {
				return err
			}
			a.printInvoice(cmd.OutOrStdout(), inv)
			fmt.Fprintln(cmd.OutOrStdout(), "purchase confirmed, cart emptied")
			return nil
		},
	}
}

func (a *app) watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Print the cart every time any client changes it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := a.open(ctx)
			if err != nil {
				return err
			}
			defer e.Close()

			out := cmd.OutOrStdout()
			updates := make(chan cartstore.Snapshot, 16)
			unsubscribe := e.cart.Subscribe(func(snap cartstore.Snapshot) {
				select {
				case updates <- snap:
				default:
				}
			})
			defer unsubscribe()

			if err := e.cart.Start(ctx); err != nil {
				return err
			}
			a.printCart(out, e.cart.Snapshot())

			for {
				select {
				case <-ctx.Done():
					return nil
				case snap := <-updates:
					fmt.Fprintln(out, "---")
					a.printCart(out, snap)
				}
			}
		},
	}
}

func (a *app) printCart(out io.Writer, snap cartstore.Snapshot) {
	if snap.Empty() {
		fmt.Fprintln(out, "cart is empty")
		return
	}
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tPRICE\tQTY")
	for _, item := range snap.Items {
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\n", item.ID, item.Name, item.Price, item.Quantity)
	}
	fmt.Fprintf(w, "\t%d articles\t%s\t\n", snap.TotalItems, domain.FormatPrice(snap.TotalPrice, a.cfg.CurrencySymbol))
	w.Flush()
}

func (a *app) printInvoice(out io.Writer, inv domain.Invoice) {
	sym := a.cfg.CurrencySymbol
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tUNIT\tQTY\tAMOUNT")
	for _, l := range inv.Lines {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", l.Name, domain.FormatPrice(l.UnitPrice, sym), l.Quantity, domain.FormatPrice(l.Amount, sym))
	}
	fmt.Fprintf(w, "Sous-total\t\t\t%s\n", domain.FormatPrice(inv.Subtotal, sym))
	fmt.Fprintf(w, "TVA (%s%%)\t\t\t%s\n", inv.TaxRate.Shift(2).String(), domain.FormatPrice(inv.Tax, sym))
	fmt.Fprintf(w, "Total\t\t\t%s\n", domain.FormatPrice(inv.Total, sym))
	w.Flush()
}
