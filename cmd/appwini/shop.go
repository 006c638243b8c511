package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"appwini/internal/address"
	"appwini/internal/apiclient"
	"appwini/internal/cart"
	"appwini/internal/catalog"
	"appwini/internal/order"
)

func table(out io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
}

func catalogCmd(a *app) *cobra.Command {
	var kind string
	var cacaoMin, cacaoMax float64
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "List products",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f := catalog.Filter{Type: kind}
			if cmd.Flags().Changed("cacao-min") {
				f.CacaoMin = &cacaoMin
			}
			if cmd.Flags().Changed("cacao-max") {
				f.CacaoMax = &cacaoMax
			}
			list, err := a.catalog().Products(cmd.Context(), f)
			if err != nil {
				return err
			}
			w := table(cmd.OutOrStdout())
			fmt.Fprintln(w, "ID\tNAME\tTYPE\tCACAO\tPRICE\tSTOCK")
			for _, p := range list {
				fmt.Fprintf(w, "%s\t%s\t%s\t%g%%\t$%s\t%d\n", p.ID, p.Name, p.Type, p.CacaoPercent, p.Price.StringFixed(2), p.Stock)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&kind, "type", "", "dark, milk, white or nibs")
	cmd.Flags().Float64Var(&cacaoMin, "cacao-min", 0, "minimum cacao percent")
	cmd.Flags().Float64Var(&cacaoMax, "cacao-max", 0, "maximum cacao percent")

	categories := &cobra.Command{
		Use:   "categories",
		Short: "List product categories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			list, err := a.catalog().Categories(cmd.Context())
			if err != nil {
				return err
			}
			w := table(cmd.OutOrStdout())
			for _, c := range list {
				fmt.Fprintf(w, "%s\t%d products\n", c.Slug, c.ProductCount)
			}
			return w.Flush()
		},
	}
	show := &cobra.Command{
		Use:   "show ID",
		Short: "Show one product",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.catalog().Product(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%s, %g%% cacao) $%s\n%s\n", p.Name, p.Type, p.CacaoPercent, p.Price.StringFixed(2), p.Description)
			return nil
		},
	}
	cmd.AddCommand(categories, show)
	return cmd
}

func printCart(out io.Writer, items []cart.Item) error {
	if len(items) == 0 {
		fmt.Fprintln(out, "your cart is empty")
		return nil
	}
	w := table(out)
	fmt.Fprintln(w, "LINE\tPRODUCT\tQTY\tUNIT\tSUBTOTAL")
	for _, it := range items {
		fmt.Fprintf(w, "%s\t%s\t%d\t$%s\t$%s\n", it.ID, it.Name, it.Quantity, it.UnitPrice.StringFixed(2), it.Subtotal().StringFixed(2))
	}
	s := cart.Summarize(items)
	fmt.Fprintf(w, "\t%d items\t\t\t$%s\n", s.TotalItems, s.Total.StringFixed(2))
	return w.Flush()
}

func cartCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cart",
		Short: "Show the cart",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			items, err := a.carts().List(cmd.Context())
			if err != nil {
				return err
			}
			return printCart(cmd.OutOrStdout(), items)
		},
	}

	var qty int
	add := &cobra.Command{
		Use:   "add PRODUCT_ID",
		Short: "Add a product",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.carts().Add(cmd.Context(), args[0], qty)
		},
	}
	add.Flags().IntVarP(&qty, "qty", "q", 1, "quantity")

	set := &cobra.Command{
		Use:   "set LINE_ID QTY",
		Short: "Change a line's quantity",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := strconv.Atoi(args[1])
			if err != nil {
				return apiclient.Invalid("quantity", "quantity must be a whole number")
			}
			return a.carts().UpdateQuantity(cmd.Context(), args[0], n)
		},
	}
	remove := &cobra.Command{
		Use:   "remove LINE_ID",
		Short: "Remove a line",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.carts().Remove(cmd.Context(), args[0])
		},
	}
	clearCart := &cobra.Command{
		Use:   "clear",
		Short: "Empty the cart",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.carts().Clear(cmd.Context())
		},
	}
	cmd.AddCommand(add, set, remove, clearCart)
	return cmd
}

func addressCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "address",
		Short: "List delivery addresses",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			list, err := a.addresses().List(cmd.Context())
			if err != nil {
				return err
			}
			w := table(cmd.OutOrStdout())
			for _, ad := range list {
				mark := ""
				if ad.IsDefault {
					mark = "*"
				}
				fmt.Fprintf(w, "%s%s\t%s\n", ad.ID, mark, ad.Label())
			}
			return w.Flush()
		},
	}

	var in address.Input
	inputFlags := func(c *cobra.Command) {
		c.Flags().StringVar(&in.MainAddress, "main", "", "main street and number")
		c.Flags().StringVar(&in.SecondStreet, "cross", "", "cross street")
		c.Flags().StringVar(&in.Apartment, "apt", "", "apartment or floor")
		c.Flags().StringVar(&in.City, "city", "", "city")
		c.Flags().StringVar(&in.Instructions, "instructions", "", "notes for the driver")
		c.Flags().BoolVar(&in.IsDefault, "default", false, "make it the default address")
	}

	add := &cobra.Command{
		Use:   "add",
		Short: "Save a new address",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ad, err := a.addresses().Create(cmd.Context(), in)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "saved %s: %s\n", ad.ID, ad.Label())
			return nil
		},
	}
	inputFlags(add)

	edit := &cobra.Command{
		Use:   "edit ID",
		Short: "Replace an address",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ad, err := a.addresses().Update(cmd.Context(), args[0], in)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "updated %s: %s\n", ad.ID, ad.Label())
			return nil
		},
	}
	inputFlags(edit)

	def := &cobra.Command{
		Use:   "default ID",
		Short: "Make an address the default",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.addresses().SetDefault(cmd.Context(), args[0])
		},
	}
	rm := &cobra.Command{
		Use:   "rm ID",
		Short: "Delete an address",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.addresses().Delete(cmd.Context(), args[0])
		},
	}
	cmd.AddCommand(add, edit, def, rm)
	return cmd
}

// checkoutData loads the cart and the address book together.
func checkoutData(ctx context.Context, a *app) ([]cart.Item, []address.Address, error) {
	var items []cart.Item
	var book []address.Address
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		items, err = a.carts().List(ctx)
		return err
	})
	g.Go(func() (err error) {
		book, err = a.addresses().List(ctx)
		return err
	})
	return items, book, g.Wait()
}

func checkoutCmd(a *app) *cobra.Command {
	var addressID, payment, instructions string
	cmd := &cobra.Command{
		Use:   "checkout",
		Short: "Place an order with the current cart",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			pm, err := order.ParsePayment(payment)
			if err != nil {
				return err
			}
			items, book, err := checkoutData(ctx, a)
			if err != nil {
				return err
			}
			if addressID == "" {
				if ad, ok := address.PickDefault(book); ok {
					addressID = ad.ID.String()
				}
			}

			eng, err := a.orders()
			if err != nil {
				return err
			}
			o, err := eng.Submit(ctx, order.Request{
				Items:        items,
				AddressID:    addressID,
				Payment:      pm,
				Instructions: instructions,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "order %s placed (%s), total $%s\n", o.ID, o.Status, o.Total.StringFixed(2))
			fmt.Fprintf(cmd.OutOrStdout(), "follow it with: appwini track %s\n", o.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&addressID, "address", "", "address id (default address when empty)")
	cmd.Flags().StringVar(&payment, "payment", string(order.Cash), "cash or transfer")
	cmd.Flags().StringVar(&instructions, "instructions", "", "delivery instructions")
	return cmd
}

func ordersCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "orders",
		Short: "List your orders",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			eng, err := a.orders()
			if err != nil {
				return err
			}
			list, err := eng.List(cmd.Context())
			if err != nil {
				return err
			}
			w := table(cmd.OutOrStdout())
			fmt.Fprintln(w, "ID\tSTATUS\tTOTAL\tCREATED")
			for _, o := range list {
				fmt.Fprintf(w, "%s\t%s\t$%s\t%s\n", o.ID, o.Status, o.Total.StringFixed(2), o.CreatedAt)
			}
			return w.Flush()
		},
	}
	show := &cobra.Command{
		Use:   "show ID",
		Short: "Show one order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := a.orders()
			if err != nil {
				return err
			}
			o, err := eng.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			w := table(cmd.OutOrStdout())
			fmt.Fprintf(w, "order\t%s\nstatus\t%s\npayment\t%s\n", o.ID, o.Status, o.PaymentMethod)
			for _, l := range o.Items {
				fmt.Fprintf(w, "  %dx\t%s\t$%s\n", l.Quantity, l.Name, l.UnitPrice.StringFixed(2))
			}
			fmt.Fprintf(w, "total\t$%s\n", o.Total.StringFixed(2))
			return w.Flush()
		},
	}
	cmd.AddCommand(show)
	return cmd
}
