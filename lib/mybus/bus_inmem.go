package mybus

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MarcGrol/shopsaga/lib/myerrors"
	"github.com/MarcGrol/shopsaga/lib/myevents"
	"github.com/MarcGrol/shopsaga/lib/mytime"
	"github.com/MarcGrol/shopsaga/lib/myuuid"
)

var ErrReceiverClosed = errors.New("receiver closed")

const defaultPollInterval = 10 * time.Millisecond

// InMemoryBroker is a single-process broker with the delivery semantics of the real one:
// deliveries are locked for a lock window, completed messages disappear and
// abandoned or expired ones come back once the lock window has passed.
type InMemoryBroker struct {
	sync.Mutex
	nower         mytime.Nower
	enveloper     enveloper
	lockWindow    time.Duration
	pollInterval  time.Duration
	lastMessageID int64
	topics        map[string][]*inMemorySubscription
	subscriptions map[string]*inMemorySubscription
}

type inMemorySubscription struct {
	name     string
	messages []*inMemoryMessage
	wakeup   chan struct{}
}

type inMemoryMessage struct {
	id            string
	data          []byte
	deliveryCount int
	lockToken     int
	visibleAt     time.Time
	lockedUntil   time.Time
}

func NewInMemoryBroker(lockWindow time.Duration, nower mytime.Nower, uuider myuuid.UUIDer) *InMemoryBroker {
	pollInterval := defaultPollInterval
	if lockWindow > 0 && lockWindow < pollInterval {
		pollInterval = lockWindow
	}

	return &InMemoryBroker{
		nower:         nower,
		enveloper:     newEnveloper(nower, uuider),
		lockWindow:    lockWindow,
		pollInterval:  pollInterval,
		topics:        map[string][]*inMemorySubscription{},
		subscriptions: map[string]*inMemorySubscription{},
	}
}

// CreateSubscription binds a subscription to a topic; messages published before are not delivered to it.
func (b *InMemoryBroker) CreateSubscription(topic string, subscription string) {
	b.Lock()
	defer b.Unlock()

	if _, exists := b.subscriptions[subscription]; exists {
		return
	}

	sub := &inMemorySubscription{
		name:   subscription,
		wakeup: make(chan struct{}, 1),
	}
	b.subscriptions[subscription] = sub
	b.topics[topic] = append(b.topics[topic], sub)
}

func (b *InMemoryBroker) Publish(c context.Context, topic string, event myevents.Event) error {
	if c.Err() != nil {
		return myerrors.NewUnavailableError(fmt.Errorf("error publishing to %s: %w", topic, c.Err()))
	}

	_, data, _, err := b.enveloper.encode(topic, event)
	if err != nil {
		return err
	}

	b.Lock()
	defer b.Unlock()

	b.lastMessageID++
	id := strconv.FormatInt(b.lastMessageID, 10)
	for _, sub := range b.topics[topic] {
		sub.messages = append(sub.messages, &inMemoryMessage{
			id:   id,
			data: data,
		})
		sub.notify()
	}

	return nil
}

// Pending returns the number of messages on the subscription that have not been completed yet.
func (b *InMemoryBroker) Pending(subscription string) int {
	b.Lock()
	defer b.Unlock()

	sub, exists := b.subscriptions[subscription]
	if !exists {
		return 0
	}
	return len(sub.messages)
}

func (b *InMemoryBroker) Dialer(subscription string, settings ReceiveSettings) Dialer {
	return func(c context.Context) (Receiver, error) {
		b.Lock()
		sub, exists := b.subscriptions[subscription]
		b.Unlock()
		if !exists {
			return nil, myerrors.NewNotFoundError(fmt.Errorf("subscription %s does not exist", subscription))
		}

		return &inMemoryReceiver{
			broker:        b,
			subscription:  sub,
			maxConcurrent: max(settings.MaxConcurrentDeliveries, 1),
		}, nil
	}
}

func (b *InMemoryBroker) lease(sub *inMemorySubscription) (*inMemoryDelivery, bool) {
	b.Lock()
	defer b.Unlock()

	now := b.nower.Now()
	for _, msg := range sub.messages {
		if now.Before(msg.visibleAt) || now.Before(msg.lockedUntil) {
			continue
		}
		msg.deliveryCount++
		msg.lockToken++
		msg.lockedUntil = now.Add(b.lockWindow)

		return &inMemoryDelivery{
			broker:       b,
			subscription: sub,
			message:      msg,
			lockToken:    msg.lockToken,
			attempt:      msg.deliveryCount,
			data:         append([]byte{}, msg.data...),
		}, true
	}
	return nil, false
}

func (b *InMemoryBroker) complete(d *inMemoryDelivery) {
	b.Lock()
	defer b.Unlock()

	for idx, msg := range d.subscription.messages {
		if msg == d.message {
			// Lock was lost and message was delivered again: this delivery no longer owns it
			if msg.lockToken != d.lockToken {
				return
			}
			d.subscription.messages = append(d.subscription.messages[:idx], d.subscription.messages[idx+1:]...)
			return
		}
	}
}

func (b *InMemoryBroker) abandon(d *inMemoryDelivery) {
	b.Lock()
	defer b.Unlock()

	if d.message.lockToken != d.lockToken {
		return
	}
	d.message.lockedUntil = time.Time{}
	d.message.visibleAt = b.nower.Now().Add(b.lockWindow)
}

func (s *inMemorySubscription) notify() {
	select {
	case s.wakeup <- struct{}{}:
	default:
	}
}

type inMemoryReceiver struct {
	broker        *InMemoryBroker
	subscription  *inMemorySubscription
	maxConcurrent int
	closed        atomic.Bool
}

func (r *inMemoryReceiver) Receive(c context.Context, f func(c context.Context, d Delivery)) error {
	if r.closed.Load() {
		return ErrReceiverClosed
	}

	slots := make(chan struct{}, r.maxConcurrent)
	wg := sync.WaitGroup{}
	defer wg.Wait()

	ticker := time.NewTicker(r.broker.pollInterval)
	defer ticker.Stop()

	for {
		r.dispatch(c, slots, &wg, f)

		select {
		case <-c.Done():
			return nil
		case <-r.subscription.wakeup:
		case <-ticker.C:
		}
	}
}

func (r *inMemoryReceiver) dispatch(c context.Context, slots chan struct{}, wg *sync.WaitGroup, f func(c context.Context, d Delivery)) {
	for c.Err() == nil {
		select {
		case slots <- struct{}{}:
		default:
			// all slots busy
			return
		}

		d, found := r.broker.lease(r.subscription)
		if !found {
			<-slots
			return
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-slots }()
			f(c, d)
		}()
	}
}

func (r *inMemoryReceiver) Close() error {
	r.closed.Store(true)
	return nil
}

type inMemoryDelivery struct {
	broker       *InMemoryBroker
	subscription *inMemorySubscription
	message      *inMemoryMessage
	lockToken    int
	attempt      int
	data         []byte
}

func (d *inMemoryDelivery) ID() string {
	return d.message.id
}

func (d *inMemoryDelivery) Data() []byte {
	return d.data
}

func (d *inMemoryDelivery) DeliveryAttempt() int {
	return d.attempt
}

func (d *inMemoryDelivery) Complete() {
	d.broker.complete(d)
}

func (d *inMemoryDelivery) Abandon() {
	d.broker.abandon(d)
}
