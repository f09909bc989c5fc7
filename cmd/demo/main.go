package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/carpore/carpore-backend/config"
	"github.com/carpore/carpore-backend/internal/app/model"
	"github.com/carpore/carpore-backend/internal/app/repository"
	"github.com/carpore/carpore-backend/internal/app/service"
	"github.com/carpore/carpore-backend/internal/db"
	"github.com/carpore/carpore-backend/pkg/logger"
	"github.com/google/uuid"
)

// demo runs one guest checkout against the configured database with the demo
// gateway, answering the payment prompt on the terminal.
//
//	demo -email asha@example.com wood-infused-cedar:2 camphor-pure-camphor
func main() {
	firstName := flag.String("first-name", "Demo", "customer first name")
	lastName := flag.String("last-name", "Shopper", "customer last name")
	email := flag.String("email", "demo@carpore.in", "customer email")
	phone := flag.String("phone", "9876543210", "customer phone")
	street := flag.String("street", "12 MG Road", "shipping street")
	city := flag.String("city", "Bengaluru", "shipping city")
	state := flag.String("state", "Karnataka", "shipping state")
	pincode := flag.String("pincode", "560001", "shipping pincode")
	flag.Parse()

	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: demo [flags] <item_id[:quantity]>...")
		flag.PrintDefaults()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", err)
	}
	logger.Initialize(logger.Config{Level: "warn", Format: "console", EnableColor: true})

	if err := db.Initialize(&cfg.Database); err != nil {
		logger.Fatal("Failed to initialize database", err)
	}
	defer db.Close()
	if err := db.Migrate(); err != nil {
		logger.Fatal("Failed to run migrations", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	catalog := service.NewCatalogService(repository.NewCatalogRepository(db.GetDB()), nil)
	carts := service.NewCartService(repository.NewMemoryCartRepository(0), catalog, cfg.Checkout.MaxLineQuantity)
	notifications := service.NewNotificationService(
		repository.NewNotificationRepository(db.GetDB()),
		repository.NewPreferencesRepository(db.GetDB()),
		nil,
	)
	orders := service.NewOrderService(repository.NewOrderRepository(db.GetDB()), notifications)

	session := "guest:" + uuid.NewString()
	for _, arg := range flag.Args() {
		itemID, qty := parseLine(arg)
		cart, err := carts.AddItem(ctx, session, itemID, qty)
		if err != nil {
			fmt.Fprintf(os.Stderr, "cannot add %s: %v\n", itemID, err)
			os.Exit(1)
		}
		fmt.Printf("cart: %d item(s), %s\n", cart.Count(), cart.Total().String())
	}

	pending := service.NewPendingPayments()
	confirmer := service.PromptConfirmer{In: os.Stdin, Out: os.Stdout}
	gateway := service.NewDemoGateway(confirmer, pending, cfg.Payment.DemoDelay,
		cfg.Payment.Razorpay.StoreName, cfg.Payment.Razorpay.ThemeColor)

	checkout := service.NewCheckoutService(
		carts,
		service.NewOrderBuilder(cfg.Checkout, cfg.Payment.Razorpay.Currency),
		orders,
		gateway,
		notifications,
		service.CheckoutOptions{PaymentTimeout: cfg.Checkout.PaymentTimeout},
		service.ObserverFunc(func(a service.CheckoutAttempt) {
			fmt.Printf("  -> %s\n", a.State)
		}),
	)

	attemptID := uuid.NewString()
	result, err := checkout.Checkout(ctx, service.CheckoutRequest{
		AttemptID: attemptID,
		Session:   session,
		Customer: model.CustomerInfo{
			FirstName: *firstName,
			LastName:  *lastName,
			Email:     *email,
			Phone:     *phone,
		},
		Address: model.PostalAddress{
			Street:  *street,
			City:    *city,
			State:   *state,
			Pincode: *pincode,
		},
		IdempotencyKey: attemptID,
	})
	if err != nil {
		report(err)
		os.Exit(1)
	}

	order := result.Order
	fmt.Printf("\nOrder %s confirmed\n", order.OrderNumber)
	fmt.Printf("  subtotal %s  shipping %s  tax %s  total %s\n",
		order.Subtotal.String(), order.Shipping.String(), order.Tax.String(), order.Total.String())
	fmt.Printf("  payment %s\n", order.PaymentID)
}

func parseLine(arg string) (string, int) {
	itemID, raw, found := strings.Cut(arg, ":")
	if !found {
		return itemID, 1
	}
	qty, err := strconv.Atoi(raw)
	if err != nil {
		return itemID, 1
	}
	return itemID, qty
}

func report(err error) {
	var (
		verr *service.ValidationError
		rerr *service.ReconciliationError
	)
	switch {
	case errors.As(err, &verr):
		fmt.Println("\nPlease fix the following:")
		for field, msg := range verr.Fields {
			fmt.Printf("  %s %s\n", field, msg)
		}
	case errors.Is(err, service.ErrPaymentCancelled):
		fmt.Println("\nPayment cancelled by user")
	case errors.As(err, &rerr):
		fmt.Printf("\nPayment %s was captured but order %s could not be confirmed. Please contact support.\n",
			rerr.PaymentID, rerr.OrderNumber)
	default:
		fmt.Printf("\nCheckout failed: %v\n", err)
	}
}
