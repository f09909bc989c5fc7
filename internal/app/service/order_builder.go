package service

import (
	"regexp"
	"strings"
	"time"

	"github.com/carpore/carpore-backend/config"
	"github.com/carpore/carpore-backend/internal/app/model"
	apperrors "github.com/carpore/carpore-backend/internal/errors"
	"github.com/carpore/carpore-backend/pkg/util"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var pincodePattern = regexp.MustCompile(`^\d{6}$`)

// NewValidator returns a validator that reports json field names and knows
// the "pincode" rule
func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(apperrors.JSONTagName)
	_ = v.RegisterValidation("pincode", func(fl validator.FieldLevel) bool {
		return pincodePattern.MatchString(fl.Field().String())
	})
	return v
}

// Totals is the priced breakdown of a cart
type Totals struct {
	Subtotal model.Money `json:"subtotal"`
	Tax      model.Money `json:"tax"`
	Shipping model.Money `json:"shipping"`
	Total    model.Money `json:"total"`
}

// OrderBuilder validates checkout details, prices carts and assembles
// pending orders. It never touches storage.
type OrderBuilder struct {
	validate              *validator.Validate
	freeShippingThreshold decimal.Decimal
	shippingFee           decimal.Decimal
	taxRate               decimal.Decimal
	prefix                string
	currency              string
	defaultCountry        string
	now                   func() time.Time
}

func NewOrderBuilder(cfg config.CheckoutConfig, currency string) *OrderBuilder {
	if currency == "" {
		currency = "INR"
	}
	return &OrderBuilder{
		validate:              NewValidator(),
		freeShippingThreshold: cfg.FreeShippingThreshold,
		shippingFee:           cfg.ShippingFee,
		taxRate:               cfg.TaxRate,
		prefix:                cfg.OrderNumberPrefix,
		currency:              currency,
		defaultCountry:        cfg.DefaultCountry,
		now:                   time.Now,
	}
}

func normalizeCustomer(c model.CustomerInfo) model.CustomerInfo {
	c.FirstName = strings.TrimSpace(c.FirstName)
	c.LastName = strings.TrimSpace(c.LastName)
	c.Email = strings.ToLower(strings.TrimSpace(c.Email))
	c.Phone = strings.TrimSpace(c.Phone)
	return c
}

func (b *OrderBuilder) normalizeAddress(a model.PostalAddress) model.PostalAddress {
	a.Street = strings.TrimSpace(a.Street)
	a.Apartment = strings.TrimSpace(a.Apartment)
	a.City = strings.TrimSpace(a.City)
	a.State = strings.TrimSpace(a.State)
	a.Pincode = strings.TrimSpace(a.Pincode)
	a.Country = strings.TrimSpace(a.Country)
	if a.Country == "" {
		a.Country = b.defaultCountry
	}
	return a
}

// Validate checks contact and shipping details and returns a *ValidationError
// naming every failing field
func (b *OrderBuilder) Validate(customer model.CustomerInfo, address model.PostalAddress) error {
	fields := map[string]string{}
	for _, target := range []interface{}{normalizeCustomer(customer), b.normalizeAddress(address)} {
		if err := b.validate.Struct(target); err != nil {
			for name, msg := range apperrors.FieldErrors(err) {
				fields[name] = msg
			}
		}
	}
	if len(fields) > 0 {
		return NewValidationError(fields)
	}
	return nil
}

// ValidateAddress applies the shipping address rules on their own
func (b *OrderBuilder) ValidateAddress(address model.PostalAddress) error {
	if err := b.validate.Struct(b.normalizeAddress(address)); err != nil {
		if fields := apperrors.FieldErrors(err); len(fields) > 0 {
			return NewValidationError(fields)
		}
		return err
	}
	return nil
}

// Price computes subtotal, shipping, tax and total. Shipping is waived when
// the subtotal is strictly above the threshold.
func (b *OrderBuilder) Price(lines []model.CartLine) Totals {
	subtotal := model.ZeroMoney()
	for _, line := range lines {
		subtotal = subtotal.Add(line.LineTotal())
	}

	shipping := model.NewMoney(b.shippingFee)
	if subtotal.GreaterThan(b.freeShippingThreshold) {
		shipping = model.ZeroMoney()
	}
	tax := model.NewMoney(subtotal.Mul(b.taxRate))

	return Totals{
		Subtotal: subtotal,
		Tax:      tax,
		Shipping: shipping,
		Total:    subtotal.Add(shipping).Add(tax),
	}
}

// Build assembles a pending, unpaid order from the cart. userID 0 is a guest.
func (b *OrderBuilder) Build(cart *model.Cart, customer model.CustomerInfo, address model.PostalAddress, userID uint, idempotencyKey string) (*model.Order, error) {
	if cart == nil || cart.IsEmpty() {
		return nil, NewValidationError(map[string]string{"cart": "must contain at least one item"})
	}
	if err := b.Validate(customer, address); err != nil {
		return nil, err
	}

	lines := cart.Lines()
	totals := b.Price(lines)

	items := make([]model.OrderItem, 0, len(lines))
	for _, line := range lines {
		items = append(items, model.OrderItem{
			ProductID:    line.ItemID,
			ProductName:  line.Name,
			ProductImage: line.Image,
			Quantity:     line.Quantity,
			Price:        line.Price,
			Total:        line.LineTotal(),
		})
	}

	order := &model.Order{
		OrderNumber:     util.GenerateOrderNumber(b.prefix, b.now()),
		UserID:          userID,
		Customer:        normalizeCustomer(customer),
		ShippingAddress: b.normalizeAddress(address),
		Subtotal:        totals.Subtotal,
		Tax:             totals.Tax,
		Shipping:        totals.Shipping,
		Total:           totals.Total,
		Currency:        b.currency,
		Status:          model.OrderStatusPending,
		PaymentStatus:   model.PaymentStatusPending,
		Items:           items,
	}
	if idempotencyKey != "" {
		key := idempotencyKey
		order.IdempotencyKey = &key
	}
	return order, nil
}
