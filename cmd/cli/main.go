package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/orna-ly/orna.ly-sub000/internal/cart"
	"github.com/orna-ly/orna.ly-sub000/internal/order/api"
	"github.com/orna-ly/orna.ly-sub000/internal/order/domain"
	"github.com/orna-ly/orna.ly-sub000/internal/order/store"
	"github.com/orna-ly/orna.ly-sub000/internal/payment"
)

type options struct {
	OrderURL   string
	PaymentURL string
	Locale     payment.Locale
	Customer   domain.OrderRequest
	Card       payment.CardForm
}

type model struct {
	opts     options
	products []domain.Product
	cart     cart.Cart
	selected int
	status   string
	receipt  string
	busy     bool
}

func initialModel(opts options, products []domain.Product) model {
	return model{opts: opts, products: products, status: "Ready"}
}

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "up":
			if m.selected > 0 {
				m.selected--
			}
		case "down":
			if m.selected < len(m.products)-1 {
				m.selected++
			}
		case "a", "enter":
			if len(m.products) == 0 {
				return m, nil
			}
			var sig cart.Signal
			m.cart, sig = cart.AddItem(m.cart, m.products[m.selected])
			m.status = statusFor(sig, "Added to cart")
		case "+", "-":
			if len(m.products) == 0 {
				return m, nil
			}
			id := m.products[m.selected].ID
			delta := 1
			if msg.String() == "-" {
				delta = -1
			}
			var sig cart.Signal
			m.cart, sig = cart.UpdateQuantity(m.cart, id, m.cart.Quantity(id)+delta)
			m.status = statusFor(sig, "Quantity updated")
		case "x":
			if len(m.products) > 0 {
				m.cart = cart.RemoveItem(m.cart, m.products[m.selected].ID)
				m.status = cart.SignalRemoved.Message()
			}
		case "c":
			if m.busy || len(m.cart.Lines) == 0 {
				return m, nil
			}
			m.busy = true
			m.status = "Placing order..."
			return m, checkoutCmd(m.opts, m.cart)
		}
	case checkoutResult:
		m.busy = false
		m.status = msg.status
		m.receipt = msg.receipt
		if msg.ok {
			m.cart = cart.Cart{}
		}
	}
	return m, nil
}

func statusFor(sig cart.Signal, ok string) string {
	if sig == cart.SignalNone {
		return ok
	}
	return sig.Message()
}

func (m model) View() string {
	b := &strings.Builder{}
	fmt.Fprintln(b, "storefront CLI")
	fmt.Fprintln(b, "")
	fmt.Fprintln(b, "Products:")
	for i, p := range m.products {
		marker := " "
		if i == m.selected {
			marker = ">"
		}
		fmt.Fprintf(b, " %s %-24s %10s  stock=%d  in cart=%d\n", marker, p.Name, p.Price.StringFixed(2), p.StockQuantity, m.cart.Quantity(p.ID))
	}
	fmt.Fprintln(b, "")
	fmt.Fprintf(b, "Cart total: %s\n", m.cart.Total().StringFixed(2))
	fmt.Fprintf(b, "Status: %s\n", m.status)
	if m.receipt != "" {
		fmt.Fprintf(b, "Receipt: %s\n", m.receipt)
	}
	fmt.Fprintln(b, "\nControls: up/down select, a add, +/- quantity, x remove, c checkout, q quit")
	return b.String()
}

type checkoutResult struct {
	ok      bool
	status  string
	receipt string
}

// checkoutCmd places the order and then charges the card, like the storefront
// checkout page does.
func checkoutCmd(opts options, c cart.Cart) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return checkout(ctx, opts, c)
	}
}

func checkout(ctx context.Context, opts options, c cart.Cart) checkoutResult {
	check := payment.ValidateCardForm(opts.Card, opts.Locale, time.Now())
	if !check.IsValid {
		msgs := make([]string, 0, len(check.Errors))
		for field, msg := range check.Errors {
			msgs = append(msgs, fmt.Sprintf("%s: %s", field, msg))
		}
		return checkoutResult{status: "Card rejected: " + strings.Join(msgs, "; ")}
	}

	req := opts.Customer
	req.Items = c.LineItems()
	req.TotalAmount = c.Total().Add(req.EffectiveWrappingCost())

	orders := api.NewClient(opts.OrderURL, 10*time.Second)
	placed, err := orders.PlaceOrder(ctx, req, uuid.NewString())
	if err != nil {
		var apiErr *api.Error
		if errors.As(err, &apiErr) && apiErr.Message != "" {
			return checkoutResult{status: "Order rejected: " + apiErr.Message}
		}
		return checkoutResult{status: fmt.Sprintf("Order failed: %v", err)}
	}

	card := check.Card
	payments := payment.NewClient(opts.PaymentURL, 10*time.Second, opts.Locale)
	res, err := payments.Charge(ctx, payment.ChargeRequest{
		CardholderName: card.CardholderName,
		CardNumber:     card.CardNumber,
		Expiry:         fmt.Sprintf("%02d/%04d", int(card.ExpiryMonth), card.ExpiryYear),
		CVV:            card.CVV,
		Amount:         placed.Order.TotalAmount,
		Currency:       payment.DefaultCurrency,
		OrderID:        string(placed.Order.ID),
	})
	if err != nil || !res.Success {
		return checkoutResult{
			status:  "Payment failed: " + res.ErrorMessage,
			receipt: placed.Order.OrderNumber,
		}
	}
	return checkoutResult{
		ok:      true,
		status:  "Order placed and paid",
		receipt: fmt.Sprintf("%s total=%s txn=%s", placed.Order.OrderNumber, placed.Order.TotalAmount.StringFixed(2), res.TransactionID),
	}
}

func demoCatalog() []domain.Product {
	return []domain.Product{
		{ID: "ring-001", Name: "Gold Ring", Status: domain.ProductStatusActive, Price: decimal.RequireFromString("100.00"), StockQuantity: 5},
		{ID: "necklace-001", Name: "Pearl Necklace", Status: domain.ProductStatusActive, Price: decimal.RequireFromString("250.00"), StockQuantity: 2},
		{ID: "bracelet-001", Name: "Silver Bracelet", Status: domain.ProductStatusActive, Price: decimal.RequireFromString("75.50"), StockQuantity: 1},
	}
}

func main() {
	runCmd := flag.String("run", "", "run non-interactively: checkout")
	catalogFile := flag.String("catalog", "", "JSON product catalog; defaults to a demo catalog")
	orderURL := flag.String("order-url", getenv("ORDER_BASE_URL", "http://localhost:8080"), "order service base url")
	paymentURL := flag.String("payment-url", getenv("PAYMENT_BASE_URL", "http://localhost:8081"), "payment service base url")
	locale := flag.String("locale", getenv("LANG", "en"), "message locale (en or ar)")
	name := flag.String("name", "Jane Doe", "customer name")
	phone := flag.String("phone", "+15550100", "customer phone")
	address := flag.String("address", "1 Main St", "shipping address")
	city := flag.String("city", "Springfield", "shipping city")
	cardNumber := flag.String("card", "4242 4242 4242 4242", "card number")
	expiry := flag.String("expiry", time.Now().AddDate(2, 0, 0).Format("01/06"), "card expiry MM/YY")
	cvv := flag.String("cvv", "123", "card CVV")
	flag.Parse()

	products := demoCatalog()
	if *catalogFile != "" {
		loaded, err := store.LoadCatalogFile(*catalogFile)
		if err != nil {
			fmt.Println("error:", err)
			os.Exit(1)
		}
		products = loaded
	}

	opts := options{
		OrderURL:   *orderURL,
		PaymentURL: *paymentURL,
		Locale:     payment.ParseLocale(*locale),
		Customer: domain.OrderRequest{
			CustomerName:    *name,
			CustomerPhone:   *phone,
			ShippingAddress: domain.ShippingAddress{Address: *address, City: *city},
			PaymentMethod:   "card",
		},
		Card: payment.CardForm{CardholderName: *name, CardNumber: *cardNumber, Expiry: *expiry, CVV: *cvv},
	}

	if *runCmd != "" {
		if *runCmd != "checkout" || len(products) == 0 {
			fmt.Println("unknown scenario or empty catalog")
			os.Exit(2)
		}
		c, sig := cart.AddItem(cart.Cart{}, products[0])
		if sig != cart.SignalNone {
			fmt.Println(sig.Message())
			os.Exit(1)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		res := checkout(ctx, opts, c)
		fmt.Println(res.status)
		if res.receipt != "" {
			fmt.Println(res.receipt)
		}
		if !res.ok {
			os.Exit(1)
		}
		return
	}

	p := tea.NewProgram(initialModel(opts, products))
	if _, err := p.Run(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func getenv(k, def string) string {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	return v
}
