package cart

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/MarcGrol/shopsaga/lib/myerrors"
	"github.com/MarcGrol/shopsaga/lib/myhttpclient"
)

type Coupon struct {
	CouponCode     string  `json:"couponCode"`
	DiscountAmount float64 `json:"discountAmount"`
	MinAmount      float64 `json:"minAmount"`
}

func (c Coupon) IsEmpty() bool {
	return c.CouponCode == ""
}

//go:generate mockgen -source=coupon.go -package cart -destination coupon_mock.go CouponReader
type CouponReader interface {
	// GetCoupon returns an empty coupon when the code is unknown
	GetCoupon(c context.Context, couponCode string) (Coupon, error)
}

type couponClient struct {
	baseURL string
	sender  myhttpclient.HTTPSender
}

func NewCouponReader(baseURL string, sender myhttpclient.HTTPSender) CouponReader {
	return &couponClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		sender:  sender,
	}
}

type couponResponse struct {
	IsSuccess bool   `json:"isSuccess"`
	Result    Coupon `json:"result"`
}

func (cc *couponClient) GetCoupon(c context.Context, couponCode string) (Coupon, error) {
	status, body, err := cc.sender.Send(c, http.MethodGet, fmt.Sprintf("%s/api/coupon/%s", cc.baseURL, url.PathEscape(couponCode)), nil)
	if err != nil {
		return Coupon{}, myerrors.NewUnavailableError(fmt.Errorf("error fetching coupon %s: %w", couponCode, err))
	}

	if status == http.StatusNotFound {
		return Coupon{}, nil
	}
	if status != http.StatusOK {
		return Coupon{}, myerrors.NewUnavailableError(fmt.Errorf("error fetching coupon %s: http-status %d", couponCode, status))
	}

	resp := couponResponse{}
	err = json.Unmarshal(body, &resp)
	if err != nil {
		return Coupon{}, myerrors.NewUnavailableError(fmt.Errorf("error parsing coupon %s: %w", couponCode, err))
	}
	if !resp.IsSuccess {
		return Coupon{}, nil
	}

	return resp.Result, nil
}
