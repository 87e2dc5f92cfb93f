package main

import (
	"fmt"
	"time"

	"github.com/rongwang/rentledger-server/internal/config"
	"github.com/rongwang/rentledger-server/internal/ledger"
	"github.com/rongwang/rentledger-server/internal/models"
	"github.com/rongwang/rentledger-server/internal/repository"
	"github.com/rongwang/rentledger-server/internal/utils"
	"github.com/rongwang/rentledger-server/internal/worker"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "leasectl",
		Short:         "Rentledger maintenance tool",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	ledgerCmd := &cobra.Command{
		Use:   "ledger",
		Short: "Inspect ledger generation",
	}
	ledgerCmd.AddCommand(previewCmd())

	rootCmd.AddCommand(migrateCmd(), notifyCmd(), ledgerCmd)
	return rootCmd
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the database schema if it does not exist",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig()
			db, err := config.SetupDatabase(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			fmt.Fprintf(cmd.OutOrStdout(), "Schema is up to date (%s).\n", cfg.Database.Driver)
			return nil
		},
	}
}

func notifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "notify",
		Short: "Run every notification sweep once",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig()
			logger := utils.NewLogger(cfg.LogLevel)

			loc, err := utils.LoadLocation(cfg.Lease.Timezone)
			if err != nil {
				return err
			}

			db, err := config.SetupDatabase(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			deduper, err := worker.NewDeduper(cfg.Redis.URL)
			if err != nil {
				return fmt.Errorf("failed to connect to redis: %w", err)
			}
			defer deduper.Close()

			notifier := worker.NewNotifier(repository.NewSQLStore(db).Notices(), worker.NewLogSender(logger), deduper, logger, worker.NotifierConfig{
				Hour:                cfg.Notify.Hour,
				Location:            loc,
				GraceBusinessDays:   cfg.Notify.GraceBusinessDays,
				UpcomingPaymentDays: cfg.Notify.UpcomingDayOffsets,
				UpcomingMoveInDays:  cfg.Notify.MoveInDayOffsets,
				DedupeTTL:           time.Duration(cfg.Notify.DedupeTTLHours) * time.Hour,
			})
			return notifier.RunOnce(cmd.Context())
		},
	}
}

func previewCmd() *cobra.Command {
	var (
		start, end, today, timezone string
		amount                      string
		paymentDay                  int
	)

	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Print the ledger a single monthly charge would produce",
		RunE: func(cmd *cobra.Command, args []string) error {
			loc, err := utils.LoadLocation(timezone)
			if err != nil {
				return err
			}
			value, err := decimal.NewFromString(amount)
			if err != nil {
				return fmt.Errorf("invalid amount %q: %w", amount, err)
			}
			if today == "" {
				today = utils.Today(time.Now(), loc)
			}

			charges, err := ledger.ValidateCharges([]models.RentChargeInput{{
				Amount:      value,
				Description: "Rent",
				Frequency:   models.FrequencyMonthly,
				PaymentDay:  paymentDay,
			}})
			if err != nil {
				return err
			}

			res, err := ledger.Generate(ledger.Params{
				LeaseStart: start,
				LeaseEnd:   end,
				Today:      today,
				Charges:    charges,
				Location:   loc,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, entry := range res.Ledgers {
				fmt.Fprintf(out, "%s  %10s  %s\n", entry.PaymentDay, entry.Amount.StringFixed(2), entry.Description)
			}
			fmt.Fprintf(out, "total       %10s\n", ledger.Total(res.Ledgers).StringFixed(2))
			return nil
		},
	}

	cmd.Flags().StringVar(&start, "start", "", "lease start (YYYY-MM-DD)")
	cmd.Flags().StringVar(&end, "end", "", "lease end, a month end (YYYY-MM-DD)")
	cmd.Flags().StringVar(&today, "today", "", "evaluate as of this date (default: today)")
	cmd.Flags().StringVar(&timezone, "timezone", "America/New_York", "zone used for today and month lengths")
	cmd.Flags().StringVar(&amount, "amount", "", "monthly amount")
	cmd.Flags().IntVar(&paymentDay, "payment-day", 1, "day of month the charge is due")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")
	_ = cmd.MarkFlagRequired("amount")

	return cmd
}
