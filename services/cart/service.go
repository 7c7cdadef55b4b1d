package cart

import (
	"github.com/MarcGrol/shopsaga/lib/mybus"
	"github.com/MarcGrol/shopsaga/lib/mylog"
	"github.com/MarcGrol/shopsaga/lib/mystore"
	"github.com/MarcGrol/shopsaga/lib/mytime"
)

type service struct {
	cartStore     mystore.Store[Cart]
	couponReader  CouponReader
	publisher     mybus.Publisher
	checkoutTopic string
	nower         mytime.Nower
	logger        mylog.Logger
}

// Use dependency injection to isolate the infrastructure and easy testing
func newService(cartStore mystore.Store[Cart], couponReader CouponReader, publisher mybus.Publisher, checkoutTopic string, nower mytime.Nower, logger mylog.Logger) *service {
	return &service{
		cartStore:     cartStore,
		couponReader:  couponReader,
		publisher:     publisher,
		checkoutTopic: checkoutTopic,
		nower:         nower,
		logger:        logger,
	}
}
