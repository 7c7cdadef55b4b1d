package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"

	formcodec "github.com/go-playground/form/v4"
	"github.com/gorilla/mux"

	"github.com/MarcGrol/shopsaga/lib/mybus"
	"github.com/MarcGrol/shopsaga/lib/mycontext"
	"github.com/MarcGrol/shopsaga/lib/myerrors"
	"github.com/MarcGrol/shopsaga/lib/myhttp"
	"github.com/MarcGrol/shopsaga/lib/mylog"
	"github.com/MarcGrol/shopsaga/lib/mystore"
	"github.com/MarcGrol/shopsaga/lib/mytime"
)

type webService struct {
	logger  mylog.Logger
	service *service
}

// Use dependency injection to isolate the infrastructure and easy testing
func NewWebService(cartStore mystore.Store[Cart], couponReader CouponReader, publisher mybus.Publisher, checkoutTopic string, nower mytime.Nower) *webService {
	logger := mylog.New("cart")
	return &webService{
		logger:  logger,
		service: newService(cartStore, couponReader, publisher, checkoutTopic, nower, logger),
	}
}

func (s *webService) RegisterEndpoints(c context.Context, router *mux.Router) error {
	router.HandleFunc("/api/cart/{userId}", s.getCart()).Methods("GET")
	router.HandleFunc("/api/cart", s.upsertCart()).Methods("POST")
	router.HandleFunc("/api/cart/removeFromCart", s.removeFromCart()).Methods("POST")
	router.HandleFunc("/api/cart/applyCouponCode", s.applyCoupon()).Methods("POST")
	router.HandleFunc("/api/cart/removeCouponCode", s.removeCoupon()).Methods("POST")
	router.HandleFunc("/api/cart/clearCart", s.clearCart()).Methods("POST")
	router.HandleFunc("/api/cart/checkout", s.checkout()).Methods("POST")

	return nil
}

func (s *webService) getCart() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		writer := myhttp.NewWriter(s.logger)

		cart, err := s.service.getCart(c, mux.Vars(r)["userId"])
		if err != nil {
			writer.WriteError(c, w, "Error fetching cart", err)
			return
		}

		writer.Write(c, w, http.StatusOK, cart)
	}
}

func (s *webService) upsertCart() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		writer := myhttp.NewWriter(s.logger)

		req := UpsertCartRequest{}
		err := decodeJSON(r, &req)
		if err != nil {
			writer.WriteError(c, w, "Invalid request", err)
			return
		}

		cart, err := s.service.upsertCart(c, req)
		if err != nil {
			writer.WriteError(c, w, "Error updating cart", err)
			return
		}

		writer.Write(c, w, http.StatusOK, cart)
	}
}

func (s *webService) removeFromCart() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		writer := myhttp.NewWriter(s.logger)

		req := RemoveFromCartRequest{}
		err := decodeJSON(r, &req)
		if err != nil {
			writer.WriteError(c, w, "Invalid request", err)
			return
		}

		cart, err := s.service.removeFromCart(c, req)
		if err != nil {
			writer.WriteError(c, w, "Error removing product from cart", err)
			return
		}

		writer.Write(c, w, http.StatusOK, cart)
	}
}

func (s *webService) applyCoupon() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		writer := myhttp.NewWriter(s.logger)

		req := CouponRequest{}
		err := decodeJSON(r, &req)
		if err != nil {
			writer.WriteError(c, w, "Invalid request", err)
			return
		}

		cart, err := s.service.applyCoupon(c, req)
		if err != nil {
			writer.WriteError(c, w, "Error applying coupon", err)
			return
		}

		writer.Write(c, w, http.StatusOK, cart)
	}
}

func (s *webService) removeCoupon() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		writer := myhttp.NewWriter(s.logger)

		req := CouponRequest{}
		err := decodeJSON(r, &req)
		if err != nil {
			writer.WriteError(c, w, "Invalid request", err)
			return
		}

		cart, err := s.service.removeCoupon(c, req)
		if err != nil {
			writer.WriteError(c, w, "Error removing coupon", err)
			return
		}

		writer.Write(c, w, http.StatusOK, cart)
	}
}

func (s *webService) clearCart() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		writer := myhttp.NewWriter(s.logger)

		req := ClearCartRequest{}
		err := decodeJSON(r, &req)
		if err != nil {
			writer.WriteError(c, w, "Invalid request", err)
			return
		}

		cart, err := s.service.clearCart(c, req)
		if err != nil {
			writer.WriteError(c, w, "Error clearing cart", err)
			return
		}

		writer.Write(c, w, http.StatusOK, cart)
	}
}

func (s *webService) checkout() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		writer := myhttp.NewWriter(s.logger)

		req, err := parseCheckoutRequest(r)
		if err != nil {
			writer.WriteError(c, w, "Invalid checkout", err)
			return
		}

		resp, err := s.service.checkout(c, req)
		if err != nil {
			if errors.Is(err, ErrCouponChanged) {
				writer.WriteError(c, w, "Coupon has changed, please confirm", err)
				return
			}
			writer.WriteError(c, w, "Error during checkout", err)
			return
		}

		writer.Write(c, w, http.StatusAccepted, resp)
	}
}

func decodeJSON(r *http.Request, dest any) error {
	err := json.NewDecoder(r.Body).Decode(dest)
	if err != nil {
		return myerrors.NewInvalidInputError(fmt.Errorf("error parsing request body: %w", err))
	}
	return nil
}

func parseCheckoutRequest(r *http.Request) (CheckoutRequest, error) {
	req := CheckoutRequest{}

	mediaType := "application/json"
	if contentType := r.Header.Get("Content-Type"); contentType != "" {
		parsed, _, err := mime.ParseMediaType(contentType)
		if err != nil {
			return req, myerrors.NewUnsupportedMediaTypeError(fmt.Errorf("invalid content-type %s: %w", contentType, err))
		}
		mediaType = parsed
	}

	switch mediaType {
	case "application/json":
		return req, decodeJSON(r, &req)
	case "application/x-www-form-urlencoded":
		err := r.ParseForm()
		if err != nil {
			return req, myerrors.NewInvalidInputError(fmt.Errorf("error parsing form: %w", err))
		}
		err = formcodec.NewDecoder().Decode(&req, r.PostForm)
		if err != nil {
			return req, myerrors.NewInvalidInputError(fmt.Errorf("error decoding form: %w", err))
		}
		return req, nil
	default:
		return req, myerrors.NewUnsupportedMediaTypeError(fmt.Errorf("unsupported content-type %s", mediaType))
	}
}
