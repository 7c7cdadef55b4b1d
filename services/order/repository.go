package order

import (
	"context"
	"errors"
	"fmt"

	"github.com/MarcGrol/shopsaga/lib/myerrors"
	"github.com/MarcGrol/shopsaga/lib/mylog"
	"github.com/MarcGrol/shopsaga/lib/mystore"
	"github.com/MarcGrol/shopsaga/lib/myuuid"
)

var ErrOrderNotFound = errors.New("order not found")

type addedOrder struct {
	Order            OrderAggregate
	Duplicate        bool
	PaymentRequested bool
}

type repository struct {
	orderStore   mystore.Store[OrderAggregate]
	receiptStore mystore.Store[CheckoutReceipt]
	uuider       myuuid.UUIDer
	logger       mylog.Logger
}

func newRepository(orderStore mystore.Store[OrderAggregate], receiptStore mystore.Store[CheckoutReceipt], uuider myuuid.UUIDer, logger mylog.Logger) *repository {
	return &repository{
		orderStore:   orderStore,
		receiptStore: receiptStore,
		uuider:       uuider,
		logger:       logger,
	}
}

// addOrder assigns an orderId and persists the order. Failure is reported as false, not as an error.
// An order with a dedup key that was seen before is not stored again: the order created then is returned.
func (r *repository) addOrder(c context.Context, order OrderAggregate) (addedOrder, bool) {
	var result addedOrder
	var err error
	if order.DedupKey == "" {
		result, err = r.insertOrder(c, order)
	} else {
		result, err = r.insertOrderOnce(c, order)
	}
	if err != nil {
		r.logger.Log(c, order.UserID, mylog.SeverityError, "Error persisting order of user %s: %s", order.UserID, err)
		return addedOrder{}, false
	}

	return result, true
}

func (r *repository) insertOrder(c context.Context, order OrderAggregate) (addedOrder, error) {
	order.OrderID = r.uuider.Create()

	err := r.orderStore.RunInTransaction(c, func(c context.Context) error {
		return r.orderStore.Put(c, order.OrderID, order)
	})
	if err != nil {
		return addedOrder{}, err
	}

	return addedOrder{Order: order}, nil
}

func (r *repository) insertOrderOnce(c context.Context, order OrderAggregate) (addedOrder, error) {
	var result addedOrder

	err := r.receiptStore.RunInTransaction(c, func(c context.Context) error {
		receipt, found, err := r.receiptStore.Get(c, order.DedupKey)
		if err != nil {
			return err
		}
		if found {
			existing, exists, err := r.orderStore.Get(c, receipt.OrderID)
			if err != nil {
				return err
			}
			if !exists {
				return fmt.Errorf("receipt %s refers to missing order %s", receipt.DedupKey, receipt.OrderID)
			}
			result = addedOrder{Order: existing, Duplicate: true, PaymentRequested: receipt.PaymentRequested}
			return nil
		}

		order.OrderID = r.uuider.Create()
		err = r.orderStore.Put(c, order.OrderID, order)
		if err != nil {
			return err
		}
		err = r.receiptStore.Put(c, order.DedupKey, CheckoutReceipt{
			DedupKey: order.DedupKey,
			OrderID:  order.OrderID,
		})
		if err != nil {
			return err
		}
		result = addedOrder{Order: order}
		return nil
	})
	if err != nil {
		return addedOrder{}, err
	}

	return result, nil
}

func (r *repository) markPaymentRequested(c context.Context, dedupKey string) error {
	if dedupKey == "" {
		return nil
	}

	return r.receiptStore.RunInTransaction(c, func(c context.Context) error {
		receipt, found, err := r.receiptStore.Get(c, dedupKey)
		if err != nil {
			return myerrors.NewInternalError(err)
		}
		if !found {
			return myerrors.NewInternalError(fmt.Errorf("receipt %s not found", dedupKey))
		}
		receipt.PaymentRequested = true
		return r.receiptStore.Put(c, dedupKey, receipt)
	})
}

// updatePaymentStatus changes nothing but the payment status of an existing order.
func (r *repository) updatePaymentStatus(c context.Context, orderID string, succeeded bool) error {
	return r.orderStore.RunInTransaction(c, func(c context.Context) error {
		order, found, err := r.orderStore.Get(c, orderID)
		if err != nil {
			return myerrors.NewInternalError(err)
		}
		if !found {
			return myerrors.NewNotFoundError(fmt.Errorf("%w: %s", ErrOrderNotFound, orderID))
		}

		order.PaymentStatus = succeeded
		err = r.orderStore.Put(c, orderID, order)
		if err != nil {
			return myerrors.NewInternalError(err)
		}
		return nil
	})
}

func (r *repository) getOrder(c context.Context, orderID string) (OrderAggregate, error) {
	order, found, err := r.orderStore.Get(c, orderID)
	if err != nil {
		return OrderAggregate{}, myerrors.NewInternalError(err)
	}
	if !found {
		return OrderAggregate{}, myerrors.NewNotFoundError(fmt.Errorf("%w: %s", ErrOrderNotFound, orderID))
	}
	return order, nil
}

func (r *repository) ordersOfUser(c context.Context, userID string) ([]OrderAggregate, error) {
	orders, err := r.orderStore.Query(c, []mystore.Filter{
		{Field: "UserID", Compare: "=", Value: userID},
	}, "OrderTimestamp")
	if err != nil {
		return nil, myerrors.NewInternalError(err)
	}
	return orders, nil
}
