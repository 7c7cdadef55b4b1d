package cart

import (
	"slices"
	"strconv"
	"time"

	"github.com/MarcGrol/shopsaga/services/cart/cartevents"
)

type Cart struct {
	UserID     string
	CouponCode string
	Lines      []CartLine
	// CheckoutSequence counts the checkouts of this user and feeds the dedup key of CheckoutSubmitted
	CheckoutSequence int
	LastModified     time.Time
}

type CartLine struct {
	ProductID int
	Count     int
	Product   Product
}

type Product struct {
	Name         string
	Price        float64
	Description  string
	CategoryName string
	ImageURL     string
}

func (c Cart) IsEmpty() bool {
	return len(c.Lines) == 0
}

func (c Cart) TotalItems() int {
	total := 0
	for _, l := range c.Lines {
		total += l.Count
	}
	return total
}

func (c Cart) Total() float64 {
	total := 0.0
	for _, l := range c.Lines {
		total += l.Product.Price * float64(l.Count)
	}
	return total
}

// merge adds the count of lines that are already in the cart and appends the others.
// A line that drops to zero or below is removed.
func (c Cart) merge(lines []CartLine) Cart {
	c.Lines = slices.Clone(c.Lines)
	for _, line := range lines {
		found := false
		for idx := range c.Lines {
			if c.Lines[idx].ProductID == line.ProductID {
				c.Lines[idx].Count += line.Count
				if line.Product.Name != "" {
					c.Lines[idx].Product = line.Product
				}
				found = true
				break
			}
		}
		if !found {
			c.Lines = append(c.Lines, line)
		}
	}

	kept := []CartLine{}
	for _, l := range c.Lines {
		if l.Count > 0 {
			kept = append(kept, l)
		}
	}
	c.Lines = kept

	return c
}

func (c Cart) removeLine(productID int) Cart {
	kept := []CartLine{}
	for _, l := range c.Lines {
		if l.ProductID != productID {
			kept = append(kept, l)
		}
	}
	c.Lines = kept
	return c
}

type CartLineRequest struct {
	ProductID    int     `json:"productId"`
	Count        int     `json:"count"`
	ProductName  string  `json:"productName"`
	Price        float64 `json:"price"`
	Description  string  `json:"description,omitempty"`
	CategoryName string  `json:"categoryName,omitempty"`
	ImageURL     string  `json:"imageUrl,omitempty"`
}

type UpsertCartRequest struct {
	UserID     string            `json:"userId"`
	CouponCode string            `json:"couponCode,omitempty"`
	Lines      []CartLineRequest `json:"lines"`
}

type RemoveFromCartRequest struct {
	UserID    string `json:"userId"`
	ProductID int    `json:"productId"`
}

type CouponRequest struct {
	UserID     string `json:"userId"`
	CouponCode string `json:"couponCode,omitempty"`
}

type ClearCartRequest struct {
	UserID string `json:"userId"`
}

// CheckoutRequest is the header the shopper submits on checkout. Lines are taken from the stored cart.
type CheckoutRequest struct {
	UserID          string    `json:"userId" form:"userId"`
	CouponCode      string    `json:"couponCode,omitempty" form:"couponCode"`
	DiscountTotal   float64   `json:"discountTotal" form:"discountTotal"`
	OrderTotal      float64   `json:"orderTotal" form:"orderTotal"`
	FirstName       string    `json:"firstName" form:"firstName"`
	LastName        string    `json:"lastName" form:"lastName"`
	Phone           string    `json:"phone" form:"phone"`
	Email           string    `json:"email" form:"email"`
	PickupDateTime  time.Time `json:"pickupDateTime" form:"pickupDateTime"`
	CardNumber      string    `json:"cardNumber" form:"cardNumber"`
	CVV             string    `json:"cvv" form:"cvv"`
	ExpiryMonthYear string    `json:"expiryMonthYear" form:"expiryMonthYear"`
	CartTotalItems  int       `json:"cartTotalItems" form:"cartTotalItems"`
}

type CheckoutResponse struct {
	UserID   string `json:"userId"`
	DedupKey string `json:"dedupKey"`
}

func linesFromRequest(req []CartLineRequest) []CartLine {
	lines := []CartLine{}
	for _, l := range req {
		lines = append(lines, CartLine{
			ProductID: l.ProductID,
			Count:     l.Count,
			Product: Product{
				Name:         l.ProductName,
				Price:        l.Price,
				Description:  l.Description,
				CategoryName: l.CategoryName,
				ImageURL:     l.ImageURL,
			},
		})
	}
	return lines
}

func dedupKeyOf(userID string, sequence int) string {
	return userID + "/" + strconv.Itoa(sequence)
}

func checkoutSubmittedFrom(req CheckoutRequest, cart Cart, dedupKey string) cartevents.CheckoutSubmitted {
	lines := []cartevents.CartLineSnapshot{}
	for _, l := range cart.Lines {
		lines = append(lines, cartevents.CartLineSnapshot{
			ProductID:   l.ProductID,
			Count:       l.Count,
			UnitPrice:   l.Product.Price,
			ProductName: l.Product.Name,
		})
	}

	return cartevents.CheckoutSubmitted{
		UserID:          req.UserID,
		CouponCode:      req.CouponCode,
		DiscountTotal:   req.DiscountTotal,
		OrderTotal:      req.OrderTotal,
		FirstName:       req.FirstName,
		LastName:        req.LastName,
		Phone:           req.Phone,
		Email:           req.Email,
		PickupDateTime:  req.PickupDateTime,
		CardNumber:      req.CardNumber,
		CVV:             req.CVV,
		ExpiryMonthYear: req.ExpiryMonthYear,
		CartTotalItems:  req.CartTotalItems,
		Lines:           lines,
		DedupKey:        dedupKey,
	}
}
