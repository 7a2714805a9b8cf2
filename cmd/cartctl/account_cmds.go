package main

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/abdelhadiDevWeb/labocart/internal/apiclient"
	"github.com/abdelhadiDevWeb/labocart/internal/auth"
	"github.com/spf13/cobra"
)

func (a *app) whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the role and email held in the stored token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()

			out := cmd.OutOrStdout()
			claims, err := e.session.Claims(cmd.Context())
			switch {
			case errors.Is(err, auth.ErrNoToken):
				fmt.Fprintln(out, "not logged in")
				return nil
			case err != nil:
				return err
			}

			fmt.Fprintf(out, "role: %s\n", claims.Role)
			if claims.Email != "" {
				fmt.Fprintf(out, "email: %s\n", claims.Email)
			}
			if d, ok := auth.DashboardFor(claims.Role); ok {
				fmt.Fprintf(out, "dashboard: %s\n", d.Home)
			}
			return nil
		},
	}
}

func (a *app) loginCmd() *cobra.Command {
	var creds apiclient.Credentials
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in against the marketplace backend and keep the token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()

			if _, err := a.client(e).Login(cmd.Context(), creds); err != nil {
				return describe(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "logged in as %s\n", e.session.Role(cmd.Context()))
			return nil
		},
	}
	cmd.Flags().StringVar(&creds.Email, "email", "", "Account email")
	cmd.Flags().StringVar(&creds.Password, "password", "", "Account password")
	return cmd
}

func (a *app) registerCmd() *cobra.Command {
	var form apiclient.ClientRegistration
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create a client account and keep the token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()

			resp, err := a.client(e).RegisterClient(cmd.Context(), form)
			if err != nil {
				return describe(err)
			}
			msg := resp.Message
			if msg == "" {
				msg = "account created"
			}
			fmt.Fprintln(cmd.OutOrStdout(), msg)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&form.FirstName, "first-name", "", "First name")
	f.StringVar(&form.LastName, "last-name", "", "Last name")
	f.StringVar(&form.Email, "email", "", "Email")
	f.StringVar(&form.Password, "password", "", "Password")
	f.StringVar(&form.ConfirmPassword, "confirm-password", "", "Password again")
	f.StringVar(&form.Phone, "phone", "", "Phone number")
	f.StringVar(&form.Address, "address", "", "Postal address")
	return cmd
}

func (a *app) logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the token and empty the cart",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()

			if err := e.session.Logout(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "logged out")
			return nil
		},
	}
}

// describe flattens validation and backend errors into one readable line.
func describe(err error) error {
	var verr *apiclient.ValidationError
	if errors.As(err, &verr) {
		return fmt.Errorf("invalid form: %s", strings.Join(verr.Messages(), "; "))
	}
	var rejected *apiclient.RejectedError
	if errors.As(err, &rejected) {
		return fmt.Errorf("rejected (%d): %s", rejected.Status, strings.Join(rejected.Errors, "; "))
	}
	return err
}

func (a *app) client(e *env) *apiclient.Client {
	return apiclient.New(a.cfg.APIURL, e.session, apiclient.WithLogger(a.log))
}

func (a *app) profileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Show the logged-in client's profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()

			resp, err := a.client(e).Profile(cmd.Context())
			if err != nil {
				return describe(err)
			}
			if resp.Data == nil {
				return errors.New("backend returned no profile")
			}
			printProfile(cmd.OutOrStdout(), *resp.Data)
			return nil
		},
	}
	cmd.AddCommand(a.profileUpdateCmd())
	return cmd
}

func (a *app) profileUpdateCmd() *cobra.Command {
	var form apiclient.ProfileUpdate
	cmd := &cobra.Command{
		Use:   "update",
		Short: "Change name, phone or address",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()

			resp, err := a.client(e).UpdateProfile(cmd.Context(), form)
			if err != nil {
				return describe(err)
			}
			if resp.Data != nil {
				printProfile(cmd.OutOrStdout(), *resp.Data)
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), "profile updated")
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&form.FirstName, "first-name", "", "First name")
	f.StringVar(&form.LastName, "last-name", "", "Last name")
	f.StringVar(&form.Phone, "phone", "", "Phone number")
	f.StringVar(&form.Address, "address", "", "Postal address")
	return cmd
}

func printProfile(out io.Writer, p apiclient.ClientData) {
	fmt.Fprintf(out, "name: %s %s\n", p.FirstName, p.LastName)
	fmt.Fprintf(out, "email: %s\n", p.Email)
	if p.Phone != "" {
		fmt.Fprintf(out, "phone: %s\n", p.Phone)
	}
	if p.Address != "" {
		fmt.Fprintf(out, "address: %s\n", p.Address)
	}
}

func (a *app) passwordCmd() *cobra.Command {
	var form apiclient.PasswordUpdate
	cmd := &cobra.Command{
		Use:   "password",
		Short: "Change the account password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()

			if _, err := a.client(e).UpdatePassword(cmd.Context(), form); err != nil {
				return describe(err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "password changed")
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&form.CurrentPassword, "current", "", "Current password")
	f.StringVar(&form.NewPassword, "new", "", "New password")
	f.StringVar(&form.ConfirmPassword, "confirm", "", "New password again")
	return cmd
}

func (a *app) devicesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List devices signed in to the account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()

			resp, err := a.client(e).Devices(cmd.Context())
			if err != nil {
				return describe(err)
			}
			if resp.Data == nil || len(resp.Data.Devices) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no devices")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tTYPE\tBROWSER\tLAST ACTIVE\t")
			for _, d := range resp.Data.Devices {
				current := ""
				if d.Current {
					current = "(this device)"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", d.Name, d.Type, d.Browser, d.LastActive, current)
			}
			return w.Flush()
		},
	}
}

func (a *app) uploadDocumentsCmd() *cobra.Command {
	var taxNumber, identity, register string
	cmd := &cobra.Command{
		Use:   "upload-documents",
		Short: "Send the three supplier PDFs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var docs apiclient.SupplierDocuments
			var err error
			if docs.TaxNumber, err = readDocument(taxNumber); err != nil {
				return err
			}
			if docs.Identity, err = readDocument(identity); err != nil {
				return err
			}
			if docs.CommercialRegister, err = readDocument(register); err != nil {
				return err
			}

			e, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()

			resp, err := a.client(e).UploadSupplierDocuments(cmd.Context(), docs)
			if err != nil {
				return describe(err)
			}
			msg := resp.Message
			if msg == "" {
				msg = "documents uploaded"
			}
			fmt.Fprintln(cmd.OutOrStdout(), msg)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&taxNumber, "tax-number", "", "Tax number certificate (PDF)")
	f.StringVar(&identity, "identity", "", "Identity document (PDF)")
	f.StringVar(&register, "commercial-register", "", "Commercial register extract (PDF)")
	return cmd
}

// readDocument loads a file for upload. An empty path yields nil so that
// validation reports every missing document at once.
func readDocument(path string) (*apiclient.Document, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}
	contentType := mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	return &apiclient.Document{
		Name:        filepath.Base(path),
		ContentType: contentType,
		Data:        data,
	}, nil
}
