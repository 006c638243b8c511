package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"appwini/internal/auth"
	"appwini/internal/config"
	"appwini/internal/order"
	"appwini/internal/sandbox"
)

func sandboxCmd(a *app) *cobra.Command {
	var (
		addr      string
		secret    string
		simulate  time.Duration
		opts      sandbox.Options
		orderKeys string
	)
	cmd := &cobra.Command{
		Use:   "sandbox",
		Short: "Serve an in-memory commerce API for local development",
		Long: `Serves the cart, order, tracking, address, geo and profile endpoints
under /api from memory. With --jwt-secret (or JWT_SECRET), bearer tokens must
be tokens issued by the catalog API; otherwise any token is accepted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if orderKeys != "" {
				s, err := order.ParseSchema(orderKeys)
				if err != nil {
					return err
				}
				opts.OrderAddressKey, opts.OrderPaymentKey, opts.OrderRequiresItems = s.AddressKey, s.PaymentKey, s.WithItems
			}
			backend := config.Load()
			if secret == "" {
				secret = backend.JWTSecret
			}
			if secret != "" {
				jwtMgr := auth.NewJWTManager(auth.JWTConfig{Issuer: backend.JWTIssuer, Secret: secret})
				opts.VerifyToken = func(tok string) error {
					_, err := jwtMgr.Parse(tok)
					return err
				}
			}
			opts.Logger = a.log
			sb := sandbox.New(opts)

			r := chi.NewRouter()
			r.Mount("/api", sb.Handler())
			srv := &http.Server{
				Addr:         addr,
				Handler:      r,
				ReadTimeout:  10 * time.Second,
				WriteTimeout: 15 * time.Second,
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			if simulate > 0 {
				go sb.Simulate(ctx, simulate)
			}
			go func() {
				<-ctx.Done()
				shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
				defer done()
				if err := srv.Shutdown(shutdownCtx); err != nil {
					a.log.Error("sandbox shutdown", zap.Error(err))
				}
			}()

			fmt.Fprintf(cmd.OutOrStdout(), "sandbox serving on %s/api\n", addr)
			a.log.Info("sandbox listening", zap.String("addr", addr), zap.Bool("jwt", secret != ""))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":8000", "listen address")
	cmd.Flags().StringVar(&secret, "jwt-secret", "", "verify bearer tokens with this HS256 secret (default $JWT_SECRET)")
	cmd.Flags().DurationVar(&simulate, "simulate", 3*time.Second, "move assigned drivers this often (0 disables)")
	cmd.Flags().StringVar(&orderKeys, "order-schema", "", "accept only this order body shape, e.g. address_id,payment_method,items")
	cmd.Flags().BoolVar(&opts.AutoClearCart, "auto-clear-cart", false, "empty the cart when an order is placed")
	cmd.Flags().BoolVar(&opts.FailAssign, "fail-assign", false, "answer 503 to every driver request")
	return cmd
}
