package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"outsourcing-market/internal/auth"
	"outsourcing-market/internal/config"
	"outsourcing-market/internal/database"
	"outsourcing-market/internal/models"
	"outsourcing-market/internal/repository"
	"outsourcing-market/internal/services"
	"outsourcing-market/internal/settlement"
)

var (
	ok   = color.New(color.FgGreen).SprintFunc()
	warn = color.New(color.FgYellow).SprintFunc()
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Database and admin tooling for the outsourcing market",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			auth.InitJWT(cfg.App.JWTSecret)
			return database.Connect(cfg.Database.Driver, cfg.GetDSN())
		},
		SilenceUsage: true,
	}

	rootCmd.AddCommand(upCmd())
	rootCmd.AddCommand(promoteAdminCmd())
	rootCmd.AddCommand(createCouponCmd())
	rootCmd.AddCommand(tokenCmd())
	rootCmd.AddCommand(reconcileCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, color.New(color.FgRed).Sprint("error: "), err)
		os.Exit(1)
	}
}

func upCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Create or update every table",
		RunE: func(cmd *cobra.Command, args []string) error {
			groups := database.ModelGroups()
			if err := database.AutoMigrate(); err != nil {
				return err
			}
			for name, group := range groups {
				fmt.Printf("  %s %s (%d models)\n", ok("✓"), name, len(group))
			}
			return nil
		},
	}
}

func promoteAdminCmd() *cobra.Command {
	var userID uint
	var role string

	cmd := &cobra.Command{
		Use:   "promote-admin",
		Short: "Grant a user admin rights",
		RunE: func(cmd *cobra.Command, args []string) error {
			admin, err := services.NewAdminService(database.GetDB()).
				PromoteUserToAdmin(userID, strings.ToUpper(role), 0)
			if err != nil {
				return err
			}
			fmt.Printf("%s user %d is now %s\n", ok("✓"), admin.UserID, admin.Role)
			return nil
		},
	}
	cmd.Flags().UintVar(&userID, "user-id", 0, "user to promote")
	cmd.Flags().StringVar(&role, "role", models.AdminRoleModerator, "SUPER_ADMIN or MODERATOR")
	_ = cmd.MarkFlagRequired("user-id")
	return cmd
}

func createCouponCmd() *cobra.Command {
	var c models.Coupon
	var discountType string
	var maxDiscount, maxUsage int64
	var validDays int

	cmd := &cobra.Command{
		Use:   "create-coupon",
		Short: "Create a discount coupon",
		RunE: func(cmd *cobra.Command, args []string) error {
			c.Code = strings.ToUpper(strings.TrimSpace(c.Code))
			c.DiscountType = models.DiscountType(discountType)
			if c.DiscountType != models.DiscountTypeFixed && c.DiscountType != models.DiscountTypePercentage {
				return fmt.Errorf("discount type must be fixed or percentage")
			}
			if maxDiscount > 0 {
				c.MaxDiscountAmount = &maxDiscount
			}
			if maxUsage > 0 {
				c.MaxUsageCount = &maxUsage
			}
			if validDays > 0 {
				until := time.Now().AddDate(0, 0, validDays)
				c.ValidUntil = &until
			}
			c.IsActive = true

			repo := repository.NewRepository(database.GetDB())
			if err := repo.CreateCoupon(context.Background(), &c); err != nil {
				if errors.Is(err, repository.ErrDuplicate) {
					fmt.Printf("%s coupon %s already exists\n", warn("!"), c.Code)
					return nil
				}
				return err
			}
			fmt.Printf("%s coupon %s created (id %d)\n", ok("✓"), c.Code, c.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&c.Code, "code", "", "coupon code")
	cmd.Flags().StringVar(&c.CouponType, "type", models.CouponTypeAll, "purchase type: all, work_request, work_request_proposals, service_order")
	cmd.Flags().StringVar(&discountType, "discount-type", string(models.DiscountTypeFixed), "fixed or percentage")
	cmd.Flags().Int64Var(&c.DiscountValue, "value", 0, "amount off, or percent off for percentage coupons")
	cmd.Flags().Int64Var(&maxDiscount, "max-discount", 0, "cap for percentage coupons")
	cmd.Flags().Int64Var(&c.MinPurchaseAmount, "min-purchase", 0, "minimum purchase amount")
	cmd.Flags().Int64Var(&maxUsage, "max-usage", 0, "total uses allowed, 0 for unlimited")
	cmd.Flags().Int64Var(&c.MaxUsagePerUser, "per-user", 1, "uses allowed per user")
	cmd.Flags().IntVar(&validDays, "valid-days", 0, "days until expiry, 0 for no expiry")
	_ = cmd.MarkFlagRequired("code")
	_ = cmd.MarkFlagRequired("value")
	return cmd
}

func tokenCmd() *cobra.Command {
	var userID uint
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an API token for a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			repo := repository.NewRepository(database.GetDB())
			user, err := repo.GetUserByID(context.Background(), userID)
			if err != nil {
				return fmt.Errorf("user %d: %w", userID, err)
			}
			token, err := auth.GenerateToken(user.ID, user.Handle, ttl)
			if err != nil {
				return err
			}
			fmt.Println(token)
			return nil
		},
	}
	cmd.Flags().UintVar(&userID, "user-id", 0, "user the token acts as")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("user-id")
	return cmd
}

func reconcileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Recompute stored settlements and report mismatches",
		RunE: func(cmd *cobra.Command, args []string) error {
			repo := repository.NewRepository(database.GetDB())
			ctx := context.Background()

			var afterID uint
			var checked, mismatched int
			for {
				page, err := repo.ListSettlements(ctx, afterID, 500)
				if err != nil {
					return err
				}
				if len(page) == 0 {
					break
				}
				for _, s := range page {
					afterID = s.ID
					checked++
					want, match, err := settlement.Verify(settlement.Split{
						GrossAmount:      s.GrossAmount,
						CommissionRate:   s.CommissionRate,
						CommissionAmount: s.CommissionAmount,
						PayoutAmount:     s.PayoutAmount,
					})
					if err == nil && match {
						continue
					}
					mismatched++
					if err != nil {
						fmt.Printf("  %s settlement %d: %v\n", warn("!"), s.ID, err)
						continue
					}
					fmt.Printf("  %s settlement %d (%s %s): commission %d != %d\n",
						warn("!"), s.ID, s.ReferenceType, s.ReferenceID, s.CommissionAmount, want.CommissionAmount)
				}
			}

			if mismatched > 0 {
				return fmt.Errorf("%d of %d settlements do not match", mismatched, checked)
			}
			fmt.Printf("%s %d settlements verified\n", ok("✓"), checked)
			return nil
		},
	}
}
