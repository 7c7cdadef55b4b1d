package cart

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/MarcGrol/shopsaga/lib/myerrors"
	"github.com/MarcGrol/shopsaga/lib/mylog"
)

var ErrCouponChanged = errors.New("coupon has changed")

const amountTolerance = 0.005

func (s *service) getCart(c context.Context, userID string) (Cart, error) {
	s.logger.Log(c, userID, mylog.SeverityInfo, "Fetch cart of user %s", userID)

	if userID == "" {
		return Cart{}, myerrors.NewInvalidInputError(fmt.Errorf("missing userId"))
	}

	cart, found, err := s.cartStore.Get(c, userID)
	if err != nil {
		return Cart{}, myerrors.NewInternalError(err)
	}
	if !found {
		return Cart{}, myerrors.NewNotFoundError(fmt.Errorf("cart of user %s not found", userID))
	}

	return cart, nil
}

func (s *service) upsertCart(c context.Context, req UpsertCartRequest) (Cart, error) {
	s.logger.Log(c, req.UserID, mylog.SeverityInfo, "Update cart of user %s with %d lines", req.UserID, len(req.Lines))

	if req.UserID == "" {
		return Cart{}, myerrors.NewInvalidInputError(fmt.Errorf("missing userId"))
	}

	return s.modifyCart(c, req.UserID, func(cart Cart) (Cart, error) {
		if req.CouponCode != "" {
			cart.CouponCode = req.CouponCode
		}
		return cart.merge(linesFromRequest(req.Lines)), nil
	})
}

func (s *service) removeFromCart(c context.Context, req RemoveFromCartRequest) (Cart, error) {
	s.logger.Log(c, req.UserID, mylog.SeverityInfo, "Remove product %d from cart of user %s", req.ProductID, req.UserID)

	if req.UserID == "" {
		return Cart{}, myerrors.NewInvalidInputError(fmt.Errorf("missing userId"))
	}

	return s.modifyExistingCart(c, req.UserID, func(cart Cart) (Cart, error) {
		return cart.removeLine(req.ProductID), nil
	})
}

func (s *service) applyCoupon(c context.Context, req CouponRequest) (Cart, error) {
	s.logger.Log(c, req.UserID, mylog.SeverityInfo, "Apply coupon %s to cart of user %s", req.CouponCode, req.UserID)

	if req.UserID == "" || req.CouponCode == "" {
		return Cart{}, myerrors.NewInvalidInputError(fmt.Errorf("missing userId or couponCode"))
	}

	coupon, err := s.couponReader.GetCoupon(c, req.CouponCode)
	if err != nil {
		return Cart{}, err
	}
	if coupon.IsEmpty() {
		return Cart{}, myerrors.NewInvalidInputError(fmt.Errorf("unknown coupon %s", req.CouponCode))
	}

	return s.modifyExistingCart(c, req.UserID, func(cart Cart) (Cart, error) {
		cart.CouponCode = coupon.CouponCode
		return cart, nil
	})
}

func (s *service) removeCoupon(c context.Context, req CouponRequest) (Cart, error) {
	s.logger.Log(c, req.UserID, mylog.SeverityInfo, "Remove coupon from cart of user %s", req.UserID)

	if req.UserID == "" {
		return Cart{}, myerrors.NewInvalidInputError(fmt.Errorf("missing userId"))
	}

	return s.modifyExistingCart(c, req.UserID, func(cart Cart) (Cart, error) {
		cart.CouponCode = ""
		return cart, nil
	})
}

func (s *service) clearCart(c context.Context, req ClearCartRequest) (Cart, error) {
	s.logger.Log(c, req.UserID, mylog.SeverityInfo, "Clear cart of user %s", req.UserID)

	if req.UserID == "" {
		return Cart{}, myerrors.NewInvalidInputError(fmt.Errorf("missing userId"))
	}

	return s.modifyExistingCart(c, req.UserID, func(cart Cart) (Cart, error) {
		cart.Lines = []CartLine{}
		cart.CouponCode = ""
		return cart, nil
	})
}

// checkout publishes a snapshot of the cart and removes the submitted lines from it. The cart is kept when the
// publish fails.
func (s *service) checkout(c context.Context, req CheckoutRequest) (CheckoutResponse, error) {
	s.logger.Log(c, req.UserID, mylog.SeverityInfo, "Checkout cart of user %s", req.UserID)

	if req.UserID == "" {
		return CheckoutResponse{}, myerrors.NewInvalidInputError(fmt.Errorf("missing userId"))
	}

	if req.CouponCode != "" {
		coupon, err := s.couponReader.GetCoupon(c, req.CouponCode)
		if err != nil {
			return CheckoutResponse{}, err
		}
		if coupon.IsEmpty() || math.Abs(coupon.DiscountAmount-req.DiscountTotal) > amountTolerance {
			return CheckoutResponse{}, myerrors.NewConflictError(fmt.Errorf("%w: %s (expected discount %.2f)", ErrCouponChanged, req.CouponCode, req.DiscountTotal))
		}
	}

	cart, err := s.reserveCheckout(c, req.UserID)
	if err != nil {
		return CheckoutResponse{}, err
	}
	resp := CheckoutResponse{
		UserID:   req.UserID,
		DedupKey: dedupKeyOf(req.UserID, cart.CheckoutSequence),
	}

	err = s.publisher.Publish(c, s.checkoutTopic, checkoutSubmittedFrom(req, cart, resp.DedupKey))
	if err != nil {
		return CheckoutResponse{}, myerrors.NewUnavailableError(fmt.Errorf("error publishing checkout of user %s: %w", req.UserID, err))
	}

	// The checkout is submitted at this point: a failure to empty the cart does not undo it.
	err = s.removeSubmitted(c, req.UserID, cart.Lines)
	if err != nil {
		s.logger.Log(c, req.UserID, mylog.SeverityError, "Checkout %s of user %s submitted but cart not emptied: %s", resp.DedupKey, req.UserID, err)
	} else {
		s.logger.Log(c, req.UserID, mylog.SeverityInfo, "Checkout %s of user %s submitted", resp.DedupKey, req.UserID)
	}

	return resp, nil
}

// reserveCheckout commits the next checkout sequence before anything is published, so every submission
// gets its own dedup key, also when a later step fails.
func (s *service) reserveCheckout(c context.Context, userID string) (Cart, error) {
	var cart Cart
	err := s.cartStore.RunInTransaction(c, func(c context.Context) error {
		existing, found, err := s.cartStore.Get(c, userID)
		if err != nil {
			return myerrors.NewInternalError(err)
		}
		if !found || existing.IsEmpty() {
			return myerrors.NewInvalidInputError(fmt.Errorf("cart of user %s is empty", userID))
		}

		existing.CheckoutSequence++

		err = s.cartStore.Put(c, userID, existing)
		if err != nil {
			return myerrors.NewInternalError(err)
		}
		cart = existing
		return nil
	})
	if err != nil {
		return Cart{}, err
	}
	return cart, nil
}

// removeSubmitted subtracts the submitted lines, so lines added after the reservation survive.
func (s *service) removeSubmitted(c context.Context, userID string, submitted []CartLine) error {
	return s.cartStore.RunInTransaction(c, func(c context.Context) error {
		cart, found, err := s.cartStore.Get(c, userID)
		if err != nil {
			return myerrors.NewInternalError(err)
		}
		if !found {
			return nil
		}

		subtract := []CartLine{}
		for _, l := range submitted {
			subtract = append(subtract, CartLine{ProductID: l.ProductID, Count: -l.Count})
		}
		cart = cart.merge(subtract)
		cart.CouponCode = ""
		cart.LastModified = s.nower.Now()

		err = s.cartStore.Put(c, userID, cart)
		if err != nil {
			return myerrors.NewInternalError(err)
		}
		return nil
	})
}

func (s *service) modifyCart(c context.Context, userID string, modify func(cart Cart) (Cart, error)) (Cart, error) {
	return s.modify(c, userID, false, modify)
}

func (s *service) modifyExistingCart(c context.Context, userID string, modify func(cart Cart) (Cart, error)) (Cart, error) {
	return s.modify(c, userID, true, modify)
}

func (s *service) modify(c context.Context, userID string, mustExist bool, modify func(cart Cart) (Cart, error)) (Cart, error) {
	var cart Cart
	err := s.cartStore.RunInTransaction(c, func(c context.Context) error {
		existing, found, err := s.cartStore.Get(c, userID)
		if err != nil {
			return myerrors.NewInternalError(err)
		}
		if !found {
			if mustExist {
				return myerrors.NewNotFoundError(fmt.Errorf("cart of user %s not found", userID))
			}
			existing = Cart{UserID: userID, Lines: []CartLine{}}
		}

		cart, err = modify(existing)
		if err != nil {
			return err
		}
		cart.LastModified = s.nower.Now()

		err = s.cartStore.Put(c, userID, cart)
		if err != nil {
			return myerrors.NewInternalError(err)
		}
		return nil
	})
	if err != nil {
		return Cart{}, err
	}

	return cart, nil
}
