package order

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/MarcGrol/shopsaga/lib/mycontext"
	"github.com/MarcGrol/shopsaga/lib/myhttp"
)

func (s *service) RegisterEndpoints(c context.Context, router *mux.Router) error {
	router.HandleFunc("/api/order", s.listOrdersEndpoint()).Methods("GET")
	router.HandleFunc("/api/order/{orderId}", s.getOrderEndpoint()).Methods("GET")

	// Called by the task queue
	router.HandleFunc("/api/order/{orderId}/paymentoverdue", s.paymentOverdueEndpoint()).Methods("PUT")

	return nil
}

func (s *service) listOrdersEndpoint() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		writer := myhttp.NewWriter(s.logger)

		orders, err := s.listOrders(c, r.URL.Query().Get("userId"))
		if err != nil {
			writer.WriteError(c, w, "Error fetching orders", err)
			return
		}

		writer.Write(c, w, http.StatusOK, orders)
	}
}

func (s *service) getOrderEndpoint() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		writer := myhttp.NewWriter(s.logger)

		order, err := s.getOrder(c, mux.Vars(r)["orderId"])
		if err != nil {
			writer.WriteError(c, w, "Error fetching order", err)
			return
		}

		writer.Write(c, w, http.StatusOK, order)
	}
}

func (s *service) paymentOverdueEndpoint() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		writer := myhttp.NewWriter(s.logger)

		order, err := s.paymentOverdue(c, mux.Vars(r)["orderId"])
		if err != nil {
			writer.WriteError(c, w, "Error checking payment of order", err)
			return
		}

		writer.Write(c, w, http.StatusOK, order)
	}
}
