package main

import (
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/abdelhadiDevWeb/labocart/internal/catalog"
	"github.com/abdelhadiDevWeb/labocart/internal/domain"
	"github.com/spf13/cobra"
)

func (a *app) productsCmd() *cobra.Command {
	var q catalog.Query
	cmd := &cobra.Command{
		Use:   "products",
		Short: "List catalog products",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := catalog.Open(a.cfg.CatalogDriver, a.cfg.CatalogDSN)
			if err != nil {
				return err
			}
			defer c.Close()

			products, err := c.Search(cmd.Context(), q)
			if err != nil {
				return err
			}
			if len(products) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no products found")
				return nil
			}
			printProducts(cmd.OutOrStdout(), products)
			return nil
		},
	}
	cmd.Flags().StringVarP(&q.Text, "query", "q", "", "Search name and description")
	cmd.Flags().StringVarP(&q.Category, "category", "c", "", "Only this category")
	return cmd
}

func (a *app) categoriesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "categories",
		Short: "List product categories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := catalog.Open(a.cfg.CatalogDriver, a.cfg.CatalogDSN)
			if err != nil {
				return err
			}
			defer c.Close()

			cats, err := c.Categories(cmd.Context())
			if err != nil {
				return err
			}
			for _, cat := range cats {
				fmt.Fprintln(cmd.OutOrStdout(), cat)
			}
			return nil
		},
	}
}

func (a *app) compareCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "compare <id1> <id2>",
		Short: "Show two products side by side",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id1, err := parseID(args[0])
			if err != nil {
				return err
			}
			id2, err := parseID(args[1])
			if err != nil {
				return err
			}

			c, err := catalog.Open(a.cfg.CatalogDriver, a.cfg.CatalogDSN)
			if err != nil {
				return err
			}
			defer c.Close()

			cmp, err := catalog.Compare(cmd.Context(), c, id1, id2)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(w, "\t%s\t%s\n", cmp.Left.Name, cmp.Right.Name)
			fmt.Fprintf(w, "Prix\t%s\t%s\n", cmp.Left.Price, cmp.Right.Price)
			fmt.Fprintf(w, "Catégorie\t%s\t%s\n", cmp.Left.Category, cmp.Right.Category)
			fmt.Fprintf(w, "Description\t%s\t%s\n", cmp.Left.Description, cmp.Right.Description)
			return w.Flush()
		},
	}
}

func printProducts(out io.Writer, products []domain.Product) {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tPRICE\tCATEGORY")
	for _, p := range products {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", p.ID, p.Name, p.Price, p.Category)
	}
	w.Flush()
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid product id %q", s)
	}
	return id, nil
}
