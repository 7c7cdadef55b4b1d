package cart

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/MarcGrol/shopsaga/lib/mybus"
	"github.com/MarcGrol/shopsaga/lib/myevents"
	"github.com/MarcGrol/shopsaga/lib/myhttp"
	"github.com/MarcGrol/shopsaga/lib/mystore"
	"github.com/MarcGrol/shopsaga/lib/mytime"
	"github.com/MarcGrol/shopsaga/services/cart/cartevents"
)

var widgetCart = Cart{
	UserID: "u1",
	Lines: []CartLine{
		{ProductID: 7, Count: 2, Product: Product{Name: "Widget", Price: 10.0}},
	},
}

func TestCartService(t *testing.T) {

	t.Run("Get unknown cart", func(t *testing.T) {
		ctrl := gomock.NewController(t)

		// setup
		_, router, _, _, _ := setup(t, ctrl)

		// when
		response := doRequest(t, router, http.MethodGet, "/api/cart/u1", "", "")

		// then
		assert.Equal(t, http.StatusNotFound, response.Code)
		resp := parseResponse(t, response)
		assert.False(t, resp.IsSuccess)
	})

	t.Run("Add lines to cart", func(t *testing.T) {
		ctrl := gomock.NewController(t)

		// setup
		c, router, storer, nower, _ := setup(t, ctrl)

		// given
		nower.EXPECT().Now().Return(mytime.ExampleTime).Times(2)

		// when
		doRequest(t, router, http.MethodPost, "/api/cart", "application/json",
			`{"userId":"u1","lines":[{"productId":7,"count":1,"productName":"Widget","price":10.0}]}`)
		response := doRequest(t, router, http.MethodPost, "/api/cart", "application/json",
			`{"userId":"u1","lines":[{"productId":7,"count":1},{"productId":8,"count":3,"productName":"Gadget","price":2.5}]}`)

		// then
		assert.Equal(t, http.StatusOK, response.Code)
		cart, found, err := storer.Get(c, "u1")
		require.NoError(t, err)
		require.True(t, found)
		assert.Len(t, cart.Lines, 2)
		assert.Equal(t, 2, cart.Lines[0].Count)
		assert.Equal(t, "Widget", cart.Lines[0].Product.Name)
		assert.Equal(t, 5, cart.TotalItems())
		assert.Equal(t, 27.5, cart.Total())
	})

	t.Run("Remove line from cart", func(t *testing.T) {
		ctrl := gomock.NewController(t)

		// setup
		c, router, storer, nower, _ := setup(t, ctrl)

		// given
		require.NoError(t, storer.Put(c, "u1", widgetCart))
		nower.EXPECT().Now().Return(mytime.ExampleTime)

		// when
		response := doRequest(t, router, http.MethodPost, "/api/cart/removeFromCart", "application/json", `{"userId":"u1","productId":7}`)

		// then
		assert.Equal(t, http.StatusOK, response.Code)
		cart, _, err := storer.Get(c, "u1")
		require.NoError(t, err)
		assert.True(t, cart.IsEmpty())
	})

	t.Run("Apply known coupon", func(t *testing.T) {
		ctrl := gomock.NewController(t)

		// setup
		c, router, storer, nower, couponReader := setup(t, ctrl)

		// given
		require.NoError(t, storer.Put(c, "u1", widgetCart))
		couponReader.EXPECT().GetCoupon(gomock.Any(), "10OFF").Return(Coupon{CouponCode: "10OFF", DiscountAmount: 10}, nil)
		nower.EXPECT().Now().Return(mytime.ExampleTime)

		// when
		response := doRequest(t, router, http.MethodPost, "/api/cart/applyCouponCode", "application/json", `{"userId":"u1","couponCode":"10OFF"}`)

		// then
		assert.Equal(t, http.StatusOK, response.Code)
		cart, _, err := storer.Get(c, "u1")
		require.NoError(t, err)
		assert.Equal(t, "10OFF", cart.CouponCode)
	})

	t.Run("Apply unknown coupon", func(t *testing.T) {
		ctrl := gomock.NewController(t)

		// setup
		c, router, storer, _, couponReader := setup(t, ctrl)

		// given
		require.NoError(t, storer.Put(c, "u1", widgetCart))
		couponReader.EXPECT().GetCoupon(gomock.Any(), "NOPE").Return(Coupon{}, nil)

		// when
		response := doRequest(t, router, http.MethodPost, "/api/cart/applyCouponCode", "application/json", `{"userId":"u1","couponCode":"NOPE"}`)

		// then
		assert.Equal(t, http.StatusBadRequest, response.Code)
	})

	t.Run("Remove coupon and clear cart", func(t *testing.T) {
		ctrl := gomock.NewController(t)

		// setup
		c, router, storer, nower, _ := setup(t, ctrl)

		// given
		withCoupon := widgetCart
		withCoupon.CouponCode = "10OFF"
		require.NoError(t, storer.Put(c, "u1", withCoupon))
		nower.EXPECT().Now().Return(mytime.ExampleTime).Times(2)

		// when
		response1 := doRequest(t, router, http.MethodPost, "/api/cart/removeCouponCode", "application/json", `{"userId":"u1"}`)
		response2 := doRequest(t, router, http.MethodPost, "/api/cart/clearCart", "application/json", `{"userId":"u1"}`)

		// then
		assert.Equal(t, http.StatusOK, response1.Code)
		assert.Equal(t, http.StatusOK, response2.Code)
		cart, _, err := storer.Get(c, "u1")
		require.NoError(t, err)
		assert.Empty(t, cart.CouponCode)
		assert.True(t, cart.IsEmpty())
	})
}

func TestCheckout(t *testing.T) {

	t.Run("Checkout publishes a snapshot and empties the cart", func(t *testing.T) {
		ctrl := gomock.NewController(t)

		// setup
		c, router, storer, nower, _, publisher := setupWithPublisher(t, ctrl)

		// given
		require.NoError(t, storer.Put(c, "u1", widgetCart))
		nower.EXPECT().Now().Return(mytime.ExampleTime)
		publisher.EXPECT().Publish(gomock.Any(), cartevents.TopicName, cartevents.CheckoutSubmitted{
			UserID:     "u1",
			OrderTotal: 20.0,
			FirstName:  "Marc",
			LastName:   "Grol",
			CardNumber: "4111111111111111",
			Lines: []cartevents.CartLineSnapshot{
				{ProductID: 7, Count: 2, UnitPrice: 10.0, ProductName: "Widget"},
			},
			DedupKey: "u1/1",
		}).Return(nil)

		// when
		response := doRequest(t, router, http.MethodPost, "/api/cart/checkout", "application/json",
			`{"userId":"u1","orderTotal":20.0,"firstName":"Marc","lastName":"Grol","cardNumber":"4111111111111111"}`)

		// then
		assert.Equal(t, http.StatusAccepted, response.Code)
		resp := parseResponse(t, response)
		assert.True(t, resp.IsSuccess)
		cart, _, err := storer.Get(c, "u1")
		require.NoError(t, err)
		assert.True(t, cart.IsEmpty())
		assert.Equal(t, 1, cart.CheckoutSequence)
	})

	t.Run("Checkout via form", func(t *testing.T) {
		ctrl := gomock.NewController(t)

		// setup
		c, router, storer, nower, _, publisher := setupWithPublisher(t, ctrl)

		// given
		given := widgetCart
		given.CheckoutSequence = 4
		require.NoError(t, storer.Put(c, "u1", given))
		nower.EXPECT().Now().Return(mytime.ExampleTime)
		var published cartevents.CheckoutSubmitted
		publisher.EXPECT().Publish(gomock.Any(), cartevents.TopicName, gomock.Any()).DoAndReturn(
			func(c context.Context, topic string, event myevents.Event) error {
				published = event.(cartevents.CheckoutSubmitted)
				return nil
			})

		// when
		form := url.Values{}
		form.Set("userId", "u1")
		form.Set("orderTotal", "20")
		form.Set("email", "marc@home.nl")
		form.Set("pickupDateTime", "2023-02-27T23:58:59Z")
		response := doRequest(t, router, http.MethodPost, "/api/cart/checkout", "application/x-www-form-urlencoded", form.Encode())

		// then
		assert.Equal(t, http.StatusAccepted, response.Code)
		assert.Equal(t, "u1/5", published.DedupKey)
		assert.Equal(t, "marc@home.nl", published.Email)
		assert.Equal(t, 20.0, published.OrderTotal)
		assert.True(t, mytime.ExampleTime.Equal(published.PickupDateTime))
	})

	t.Run("Checkout of empty cart", func(t *testing.T) {
		ctrl := gomock.NewController(t)

		// setup
		_, router, _, _, _, _ := setupWithPublisher(t, ctrl)

		// when
		response := doRequest(t, router, http.MethodPost, "/api/cart/checkout", "application/json", `{"userId":"u1"}`)

		// then
		assert.Equal(t, http.StatusBadRequest, response.Code)
	})

	t.Run("Checkout without user", func(t *testing.T) {
		ctrl := gomock.NewController(t)

		// setup
		_, router, _, _, _, _ := setupWithPublisher(t, ctrl)

		// when
		response := doRequest(t, router, http.MethodPost, "/api/cart/checkout", "application/json", `{"orderTotal":20}`)

		// then
		assert.Equal(t, http.StatusBadRequest, response.Code)
	})

	t.Run("Checkout with unsupported content-type", func(t *testing.T) {
		ctrl := gomock.NewController(t)

		// setup
		_, router, _, _, _, _ := setupWithPublisher(t, ctrl)

		// when
		response := doRequest(t, router, http.MethodPost, "/api/cart/checkout", "text/plain", `u1`)

		// then
		assert.Equal(t, http.StatusUnsupportedMediaType, response.Code)
	})

	t.Run("Checkout with changed coupon", func(t *testing.T) {
		ctrl := gomock.NewController(t)

		// setup
		c, router, storer, _, couponReader, _ := setupWithPublisher(t, ctrl)

		// given
		require.NoError(t, storer.Put(c, "u1", widgetCart))
		couponReader.EXPECT().GetCoupon(gomock.Any(), "10OFF").Return(Coupon{CouponCode: "10OFF", DiscountAmount: 5}, nil)

		// when
		response := doRequest(t, router, http.MethodPost, "/api/cart/checkout", "application/json",
			`{"userId":"u1","couponCode":"10OFF","discountTotal":10,"orderTotal":10}`)

		// then
		assert.Equal(t, http.StatusConflict, response.Code)
		resp := parseResponse(t, response)
		assert.Equal(t, "Coupon has changed, please confirm", resp.DisplayMessage)
		cart, _, err := storer.Get(c, "u1")
		require.NoError(t, err)
		assert.False(t, cart.IsEmpty())
	})

	t.Run("Checkout with unchanged coupon", func(t *testing.T) {
		ctrl := gomock.NewController(t)

		// setup
		c, router, storer, nower, couponReader, publisher := setupWithPublisher(t, ctrl)

		// given
		require.NoError(t, storer.Put(c, "u1", widgetCart))
		couponReader.EXPECT().GetCoupon(gomock.Any(), "10OFF").Return(Coupon{CouponCode: "10OFF", DiscountAmount: 10}, nil)
		nower.EXPECT().Now().Return(mytime.ExampleTime)
		publisher.EXPECT().Publish(gomock.Any(), cartevents.TopicName, gomock.Any()).Return(nil)

		// when
		response := doRequest(t, router, http.MethodPost, "/api/cart/checkout", "application/json",
			`{"userId":"u1","couponCode":"10OFF","discountTotal":10,"orderTotal":10}`)

		// then
		assert.Equal(t, http.StatusAccepted, response.Code)
	})

	t.Run("Checkout keeps cart when publish fails", func(t *testing.T) {
		ctrl := gomock.NewController(t)

		// setup
		c, router, storer, _, _, publisher := setupWithPublisher(t, ctrl)

		// given
		require.NoError(t, storer.Put(c, "u1", widgetCart))
		publisher.EXPECT().Publish(gomock.Any(), cartevents.TopicName, gomock.Any()).Return(fmt.Errorf("broker down"))

		// when
		response := doRequest(t, router, http.MethodPost, "/api/cart/checkout", "application/json", `{"userId":"u1","orderTotal":20}`)

		// then
		assert.Equal(t, http.StatusServiceUnavailable, response.Code)
		cart, _, err := storer.Get(c, "u1")
		require.NoError(t, err)
		assert.Equal(t, widgetCart.Lines, cart.Lines)
		assert.Equal(t, 1, cart.CheckoutSequence)
	})

	t.Run("Checkout after failed cart update gets a fresh dedup key", func(t *testing.T) {
		ctrl := gomock.NewController(t)

		// setup
		c := context.TODO()
		inner, cleanup, err := mystore.New[Cart](c)
		require.NoError(t, err)
		t.Cleanup(cleanup)
		storer := &putFailingStore{Store: inner, failOn: 2}
		nower := mytime.NewMockNower(ctrl)
		publisher := mybus.NewMockPublisher(ctrl)
		router := mux.NewRouter()
		require.NoError(t, NewWebService(storer, NewMockCouponReader(ctrl), publisher, cartevents.TopicName, nower).RegisterEndpoints(c, router))

		// given
		require.NoError(t, inner.Put(c, "u1", widgetCart))
		nower.EXPECT().Now().Return(mytime.ExampleTime).AnyTimes()
		published := []cartevents.CheckoutSubmitted{}
		publisher.EXPECT().Publish(gomock.Any(), cartevents.TopicName, gomock.Any()).DoAndReturn(
			func(c context.Context, topic string, event myevents.Event) error {
				published = append(published, event.(cartevents.CheckoutSubmitted))
				return nil
			}).Times(2)

		// when
		first := doRequest(t, router, http.MethodPost, "/api/cart/checkout", "application/json", `{"userId":"u1","orderTotal":20}`)
		doRequest(t, router, http.MethodPost, "/api/cart", "application/json",
			`{"userId":"u1","lines":[{"productId":8,"count":1,"productName":"Gadget","price":2.5}]}`)
		second := doRequest(t, router, http.MethodPost, "/api/cart/checkout", "application/json", `{"userId":"u1","orderTotal":22.5}`)

		// then
		assert.Equal(t, http.StatusAccepted, first.Code)
		assert.Equal(t, http.StatusAccepted, second.Code)
		require.Len(t, published, 2)
		assert.Equal(t, "u1/1", published[0].DedupKey)
		assert.Len(t, published[0].Lines, 1)
		assert.Equal(t, "u1/2", published[1].DedupKey)
		assert.Len(t, published[1].Lines, 2)
		cart, _, err := inner.Get(c, "u1")
		require.NoError(t, err)
		assert.True(t, cart.IsEmpty())
		assert.Equal(t, 2, cart.CheckoutSequence)
	})

	t.Run("Checkout keeps lines added while publishing", func(t *testing.T) {
		ctrl := gomock.NewController(t)

		// setup
		c, router, storer, nower, _, publisher := setupWithPublisher(t, ctrl)

		// given
		require.NoError(t, storer.Put(c, "u1", widgetCart))
		nower.EXPECT().Now().Return(mytime.ExampleTime)
		publisher.EXPECT().Publish(gomock.Any(), cartevents.TopicName, gomock.Any()).DoAndReturn(
			func(c context.Context, topic string, event myevents.Event) error {
				cart, _, err := storer.Get(c, "u1")
				require.NoError(t, err)
				cart.Lines = append(cart.Lines, CartLine{ProductID: 8, Count: 1, Product: Product{Name: "Gadget", Price: 2.5}})
				return storer.Put(c, "u1", cart)
			})

		// when
		response := doRequest(t, router, http.MethodPost, "/api/cart/checkout", "application/json", `{"userId":"u1","orderTotal":20}`)

		// then
		assert.Equal(t, http.StatusAccepted, response.Code)
		cart, _, err := storer.Get(c, "u1")
		require.NoError(t, err)
		require.Len(t, cart.Lines, 1)
		assert.Equal(t, 8, cart.Lines[0].ProductID)
	})
}

// putFailingStore fails the Put with sequence number failOn.
type putFailingStore struct {
	mystore.Store[Cart]
	puts   int
	failOn int
}

func (s *putFailingStore) Put(c context.Context, uid string, value Cart) error {
	s.puts++
	if s.puts == s.failOn {
		return fmt.Errorf("datastore unavailable")
	}
	return s.Store.Put(c, uid, value)
}

func doRequest(t *testing.T, router *mux.Router, method string, path string, contentType string, body string) *httptest.ResponseRecorder {
	request, err := http.NewRequest(method, path, strings.NewReader(body))
	require.NoError(t, err)
	if contentType != "" {
		request.Header.Set("Content-Type", contentType)
	}
	response := httptest.NewRecorder()
	router.ServeHTTP(response, request)
	return response
}

func parseResponse(t *testing.T, response *httptest.ResponseRecorder) myhttp.Response {
	resp := myhttp.Response{}
	err := json.Unmarshal(response.Body.Bytes(), &resp)
	require.NoError(t, err)
	return resp
}

func setup(t *testing.T, ctrl *gomock.Controller) (context.Context, *mux.Router, mystore.Store[Cart], *mytime.MockNower, *MockCouponReader) {
	c, router, storer, nower, couponReader, _ := setupWithPublisher(t, ctrl)
	return c, router, storer, nower, couponReader
}

func setupWithPublisher(t *testing.T, ctrl *gomock.Controller) (context.Context, *mux.Router, mystore.Store[Cart], *mytime.MockNower, *MockCouponReader, *mybus.MockPublisher) {
	c := context.TODO()
	storer, cleanup, err := mystore.New[Cart](c)
	require.NoError(t, err)
	t.Cleanup(cleanup)
	nower := mytime.NewMockNower(ctrl)
	couponReader := NewMockCouponReader(ctrl)
	publisher := mybus.NewMockPublisher(ctrl)

	sut := NewWebService(storer, couponReader, publisher, cartevents.TopicName, nower)
	router := mux.NewRouter()
	err = sut.RegisterEndpoints(c, router)
	require.NoError(t, err)

	return c, router, storer, nower, couponReader, publisher
}
