// checkout is the storefront customer client: it logs in, pays for a cart by bank QR transfer
// and tracks the payment until the order is committed or abandoned.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ZewK3/Home-sub002/internal/api"
	"github.com/ZewK3/Home-sub002/internal/checkout"
	"github.com/ZewK3/Home-sub002/internal/checkout/cache"
	"github.com/ZewK3/Home-sub002/internal/client"
	"github.com/ZewK3/Home-sub002/internal/config"
	"github.com/ZewK3/Home-sub002/internal/platform/logging"
	"github.com/ZewK3/Home-sub002/internal/security"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// app is what every subcommand shares once flags and config are resolved.
type app struct {
	cfg   *config.ClientConfig
	api   *client.Client
	store *cache.File
	log   zerolog.Logger
}

func newRootCommand() *cobra.Command {
	a := &app{}
	cmd := &cobra.Command{
		Use:           "checkout",
		Short:         "Storefront checkout client",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadClient(cmd.Flags())
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.log = logging.New(cmd.ErrOrStderr(), cfg.LogLevel, "")
			a.api, err = client.New(cfg.APIBaseURL, nil)
			if err != nil {
				return err
			}
			a.store = cache.Open(cfg.CachePath)
			return nil
		},
	}

	flags := cmd.PersistentFlags()
	flags.String("api-url", "", "Storefront API base URL (env API_BASE_URL)")
	flags.String("qr-base-url", "", "Bank QR image URL prefix (env QR_BASE_URL)")
	flags.String("cache", "", "Client cache file (env CHECKOUT_CACHE_PATH)")
	flags.Bool("reserve", false, "Reserve the order server-side before showing the QR code (env CHECKOUT_RESERVE)")
	flags.String("log-level", "", "Log level (env LOG_LEVEL)")

	cmd.AddCommand(
		newRegisterCommand(a),
		newLoginCommand(a),
		newLoginEmployeeCommand(a),
		newLogoutCommand(a),
		newPayCommand(a),
		newResumeCommand(a),
		newOrdersCommand(a),
		newWhoamiCommand(a),
		newIngestTokenCommand(),
	)
	return cmd
}

func (a *app) saveSession(out io.Writer, s *api.SessionResponse) error {
	if err := a.store.SetAuth(cache.Auth{
		Token:       s.Token,
		PrincipalID: s.PrincipalID,
		Kind:        s.Kind,
		Name:        s.Name,
		ExpiresAt:   s.ExpiresAt,
	}); err != nil {
		return err
	}
	fmt.Fprintf(out, "Logged in as %s (%s) until %s\n", displayName(s), s.Kind, s.ExpiresAt.Local().Format(time.Kitchen))
	return nil
}

func (a *app) token() (string, error) {
	tok := a.store.Token()
	if tok == "" {
		return "", errors.New("not logged in (or the session expired); run checkout login")
	}
	return tok, nil
}

func (a *app) tracker(out io.Writer) (*checkout.Tracker, error) {
	return checkout.NewTracker(checkout.Config{
		Budget:               a.cfg.Budget(),
		PollInterval:         a.cfg.Poll(),
		FailureWarnThreshold: a.cfg.PollFailureWarnThreshold,
		Reserve:              a.cfg.Reserve,
		QRBaseURL:            a.cfg.QRBaseURL,
	}, checkout.Deps{
		Checker: a.api,
		Orders:  a.api,
		Tokens:  a.store,
		Store:   a.store,
		Notifier: checkout.NotifierFunc(func(n checkout.Notification) {
			fmt.Fprintf(out, "[%s] %s\n", n.Severity, n.Message)
		}),
		Log: a.log,
	})
}

// follow prints progress until tx ends. An interrupt cancels the transaction while it is still
// awaiting payment; a commit already under way is allowed to finish.
func follow(ctx context.Context, out io.Writer, tracker *checkout.Tracker, tx *checkout.Transaction) checkout.Outcome {
	fmt.Fprintf(out, "Order %s: transfer %d with description %s\n", tx.OrderID, tx.Amount, checkout.CorrelationID(tx.ID))
	fmt.Fprintf(out, "QR: %s\n", tx.QR.URL)

	progress := time.NewTicker(30 * time.Second)
	defer progress.Stop()
	for {
		select {
		case <-tx.Done():
			return tx.Outcome()
		case <-progress.C:
			fmt.Fprintf(out, "Waiting for payment of %s, %s left\n", tx.OrderID, tx.TimeLeft().Truncate(time.Second))
		case <-ctx.Done():
			err := tracker.Cancel(tx.ID)
			if errors.Is(err, checkout.ErrCommitInProgress) {
				fmt.Fprintln(out, "Payment received, finishing the order before exiting...")
			}
			return tx.Outcome()
		}
	}
}

func report(out io.Writer, o checkout.Outcome) error {
	if o.Committed() {
		fmt.Fprintf(out, "Order %s saved: +%d exp, %d total, rank %s\n", o.ServerOrderID, o.GainedExp, o.NewExp, o.NewRank)
		return nil
	}
	return fmt.Errorf("order %s not completed (%s): %w", o.OrderID, o.State, o.Err)
}

func newRegisterCommand(a *app) *cobra.Command {
	var name, email, password string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create a customer account and log in",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.api.RegisterCustomer(cmd.Context(), api.RegisterCustomerRequest{Name: name, Email: email, Password: password})
			if err != nil {
				return err
			}
			return a.saveSession(cmd.OutOrStdout(), s)
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Display name")
	cmd.Flags().StringVar(&email, "email", "", "E-mail address or phone number")
	cmd.Flags().StringVar(&password, "password", "", "Password")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newLoginCommand(a *app) *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in as a customer",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.api.LoginCustomer(cmd.Context(), email, password)
			if err != nil {
				return err
			}
			return a.saveSession(cmd.OutOrStdout(), s)
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "E-mail address or phone number")
	cmd.Flags().StringVar(&password, "password", "", "Password")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newLoginEmployeeCommand(a *app) *cobra.Command {
	var id, password string
	cmd := &cobra.Command{
		Use:   "login-employee",
		Short: "Log in as an employee",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.api.LoginEmployee(cmd.Context(), id, password)
			if err != nil {
				return err
			}
			return a.saveSession(cmd.OutOrStdout(), s)
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "Employee id")
	cmd.Flags().StringVar(&password, "password", "", "Password")
	_ = cmd.MarkFlagRequired("id")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newLogoutCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Revoke the session on the server and forget it locally",
		RunE: func(cmd *cobra.Command, args []string) error {
			if tok := a.store.Token(); tok != "" {
				if err := a.api.Logout(cmd.Context(), tok); err != nil && !client.IsStatus(err, http.StatusUnauthorized) {
					a.log.Warn().Err(err).Msg("server logout failed; clearing the local session anyway")
				}
			}
			return a.store.ClearAuth()
		},
	}
}

func newPayCommand(a *app) *cobra.Command {
	var (
		items    []string
		delivery api.Delivery
	)
	cmd := &cobra.Command{
		Use:   "pay",
		Short: "Pay for a cart by QR transfer and save the order once the payment arrives",
		Example: `  checkout pay --item "Tra sua:30000:2:Tran chau=5000" --item "Banh mi:15000:1"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			if _, err := a.token(); err != nil {
				return err
			}
			cart, err := parseCart(items)
			if err != nil {
				return err
			}
			var d *api.Delivery
			if delivery != (api.Delivery{}) {
				d = &delivery
			}
			now := time.Now()
			order, err := checkout.NewPendingOrder(cart, d, now)
			if err != nil {
				return err
			}
			tracker, err := a.tracker(out)
			if err != nil {
				return err
			}
			tx, err := tracker.Start(context.WithoutCancel(ctx), order, checkout.NewTransactionID(now))
			if err != nil {
				return err
			}
			return report(out, follow(ctx, out, tracker, tx))
		},
	}
	cmd.Flags().StringArrayVar(&items, "item", nil, `Cart line "name:price:quantity[:option=price,...]" (repeatable)`)
	cmd.Flags().StringVar(&delivery.Name, "recipient", "", "Delivery recipient")
	cmd.Flags().StringVar(&delivery.Phone, "phone", "", "Delivery phone")
	cmd.Flags().StringVar(&delivery.Address, "address", "", "Delivery address")
	cmd.Flags().StringVar(&delivery.Note, "note", "", "Delivery note")
	_ = cmd.MarkFlagRequired("item")
	return cmd
}

func newResumeCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "resume",
		Short: "Resume tracking payments left open by an earlier run",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			tracker, err := a.tracker(out)
			if err != nil {
				return err
			}
			txs, err := tracker.Restore(context.WithoutCancel(ctx))
			if err != nil {
				return err
			}
			if len(txs) == 0 {
				fmt.Fprintln(out, "No open payments.")
				return nil
			}
			var errs []error
			for _, tx := range txs {
				if err := report(out, follow(ctx, out, tracker, tx)); err != nil {
					errs = append(errs, err)
				}
			}
			return errors.Join(errs...)
		},
	}
}

func newOrdersCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "orders",
		Short: "List your orders",
		RunE: func(cmd *cobra.Command, args []string) error {
			tok, err := a.token()
			if err != nil {
				return err
			}
			orders, err := a.api.ListOrders(cmd.Context(), tok)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ORDER\tSTATUS\tTOTAL\tITEMS\tCREATED")
			for _, o := range orders {
				fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\n", o.OrderID, o.Status, o.Total, len(o.Cart), o.CreatedAt.Local().Format(time.DateTime))
			}
			return w.Flush()
		},
	}
}

func newWhoamiCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the principal behind the cached session, with exp and rank for customers",
		RunE: func(cmd *cobra.Command, args []string) error {
			tok, err := a.token()
			if err != nil {
				return err
			}
			me, err := a.api.Me(cmd.Context(), tok)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if me.Kind != "customer" {
				fmt.Fprintf(out, "%s %s (%s)\n", me.Kind, me.PrincipalID, me.Role)
				return nil
			}
			u, err := a.api.GetUser(cmd.Context(), tok)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%s <%s>: %d exp, rank %s\n", u.Name, u.Email, u.Exp, u.Rank)
			return nil
		},
	}
}

func newIngestTokenCommand() *cobra.Command {
	var (
		subject string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "ingest-token",
		Short: "Mint a payment ingest token for the bank-mail bot (uses PAYMENT_INGEST_SECRET)",
		// The server config carries the ingest secret; the client config is not needed.
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			tok, err := security.NewIngestTokens(cfg.PaymentIngestSecret, cfg.PaymentIngestIssuer).Issue(subject, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "bank-mail-bot", "Token subject")
	cmd.Flags().DurationVar(&ttl, "ttl", 30*24*time.Hour, "Token lifetime")
	return cmd
}

func displayName(s *api.SessionResponse) string {
	if s.Name != "" {
		return s.Name
	}
	return s.PrincipalID
}
