package order

import (
	"time"

	"github.com/MarcGrol/shopsaga/services/cart/cartevents"
	"github.com/MarcGrol/shopsaga/services/order/orderevents"
)

type OrderAggregate struct {
	OrderID         string
	UserID          string
	CouponCode      string
	DiscountTotal   float64
	OrderTotal      float64
	FirstName       string
	LastName        string
	Phone           string
	Email           string
	PickupDateTime  time.Time
	CardNumber      string `datastore:",noindex" json:"-"`
	ExpiryMonthYear string `datastore:",noindex" json:"-"`
	CVV             string `datastore:",noindex" json:"-"`
	TotalItemCount  int
	OrderTimestamp  time.Time
	// PaymentStatus is the only field that changes after creation
	PaymentStatus bool
	DedupKey      string
	Lines         []OrderLine
}

type OrderLine struct {
	ProductID   int
	ProductName string
	UnitPrice   float64
	Count       int
}

// CheckoutReceipt remembers which order was created for a checkout submission.
type CheckoutReceipt struct {
	DedupKey         string
	OrderID          string
	PaymentRequested bool
}

func orderFromCheckout(event cartevents.CheckoutSubmitted, now time.Time) OrderAggregate {
	order := OrderAggregate{
		UserID:          event.UserID,
		CouponCode:      event.CouponCode,
		DiscountTotal:   event.DiscountTotal,
		OrderTotal:      event.OrderTotal,
		FirstName:       event.FirstName,
		LastName:        event.LastName,
		Phone:           event.Phone,
		Email:           event.Email,
		PickupDateTime:  event.PickupDateTime,
		CardNumber:      event.CardNumber,
		ExpiryMonthYear: event.ExpiryMonthYear,
		CVV:             event.CVV,
		TotalItemCount:  event.CartTotalItems,
		OrderTimestamp:  now,
		PaymentStatus:   false,
		DedupKey:        event.DedupKey,
		Lines:           []OrderLine{},
	}

	// Counts are added to the total the cart reported, not replacing it
	for _, l := range event.Lines {
		order.Lines = append(order.Lines, OrderLine{
			ProductID:   l.ProductID,
			ProductName: l.ProductName,
			UnitPrice:   l.UnitPrice,
			Count:       l.Count,
		})
		order.TotalItemCount += l.Count
	}

	return order
}

func (o OrderAggregate) paymentRequest() orderevents.PaymentRequested {
	return orderevents.PaymentRequested{
		OrderID:         o.OrderID,
		PayerName:       o.FirstName + " " + o.LastName,
		OrderTotal:      o.OrderTotal,
		CardNumber:      o.CardNumber,
		ExpiryMonthYear: o.ExpiryMonthYear,
		CVV:             o.CVV,
	}
}
