package mysubscriber

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MarcGrol/shopsaga/lib/mybus"
	"github.com/MarcGrol/shopsaga/lib/mycontext"
	"github.com/MarcGrol/shopsaga/lib/myerrors"
	"github.com/MarcGrol/shopsaga/lib/myevents"
	"github.com/MarcGrol/shopsaga/lib/mylog"
)

var (
	ErrAlreadyStarted = errors.New("processor already started")
	ErrNotRunning     = errors.New("processor not running")
)

const defaultErrorBackoff = time.Second

// HandlerFunc handles a single envelope. An invalid-input error marks the message as poison:
// it is completed and never retried. Any other error gets the message redelivered.
type HandlerFunc func(c context.Context, envelope myevents.EventEnvelope) error

type Options struct {
	// MaxDeliveryAttempts bounds redelivery. Zero means unbounded.
	MaxDeliveryAttempts int
	DeadLetterTopic     string
	// ErrorBackoff is the pause before binding again after the broker dropped the connection.
	ErrorBackoff time.Duration
}

// Processor binds a handler to one subscription.
type Processor struct {
	sync.Mutex
	name         string
	dial         mybus.Dialer
	handler      HandlerFunc
	deadLetterer mybus.Publisher
	options      Options
	logger       mylog.Logger
	state        atomic.Int32
	receiver     mybus.Receiver
	cancel       context.CancelFunc
	done         chan struct{}
}

func New(name string, dial mybus.Dialer, handler HandlerFunc, deadLetterer mybus.Publisher, options Options) *Processor {
	if options.ErrorBackoff <= 0 {
		options.ErrorBackoff = defaultErrorBackoff
	}
	return &Processor{
		name:         name,
		dial:         dial,
		handler:      handler,
		deadLetterer: deadLetterer,
		options:      options,
		logger:       mylog.New("subscriber"),
	}
}

func (p *Processor) Name() string {
	return p.name
}

func (p *Processor) State() State {
	return State(p.state.Load())
}

func (p *Processor) Start(c context.Context) error {
	p.Lock()
	defer p.Unlock()

	if !p.state.CompareAndSwap(int32(StateStopped), int32(StateStarting)) {
		return fmt.Errorf("error starting %s: %w", p.name, ErrAlreadyStarted)
	}

	receiver, err := p.dial(c)
	if err != nil {
		p.state.Store(int32(StateStopped))
		return fmt.Errorf("error binding processor %s: %w", p.name, err)
	}

	// Receiving outlives the request that started it
	ctx, cancel := context.WithCancel(context.WithoutCancel(c))
	p.receiver = receiver
	p.cancel = cancel
	p.done = make(chan struct{})

	go p.run(ctx, receiver, p.done)

	p.state.Store(int32(StateRunning))
	p.logger.Log(c, p.name, mylog.SeverityInfo, "Processor %s is running", p.name)

	return nil
}

// Stop waits for in-flight handlers to finish (bounded by c) before releasing the connection.
func (p *Processor) Stop(c context.Context) error {
	p.Lock()
	defer p.Unlock()

	if !p.state.CompareAndSwap(int32(StateRunning), int32(StateStopping)) {
		return fmt.Errorf("error stopping %s: %w", p.name, ErrNotRunning)
	}

	p.cancel()

	var drainErr error
	select {
	case <-p.done:
	case <-c.Done():
		drainErr = fmt.Errorf("processor %s did not drain in time: %w", p.name, c.Err())
	}

	closeErr := p.receiver.Close()
	if closeErr != nil {
		closeErr = fmt.Errorf("error releasing connection of %s: %w", p.name, closeErr)
	}

	p.receiver = nil
	p.cancel = nil
	p.done = nil
	p.state.Store(int32(StateStopped))
	p.logger.Log(c, p.name, mylog.SeverityInfo, "Processor %s is stopped", p.name)

	return errors.Join(drainErr, closeErr)
}

// run owns its in-flight group: a Stop that gave up may leave it draining while a next run has started.
func (p *Processor) run(c context.Context, receiver mybus.Receiver, done chan struct{}) {
	inflight := &sync.WaitGroup{}
	defer func() {
		inflight.Wait()
		close(done)
	}()

	deliver := func(c context.Context, d mybus.Delivery) {
		inflight.Add(1)
		defer inflight.Done()
		p.onDelivery(c, d)
	}

	for {
		err := receiver.Receive(c, deliver)
		if c.Err() != nil {
			return
		}
		if err != nil {
			transportErrorsTotal.WithLabelValues(p.name).Inc()
			p.logger.Log(c, p.name, mylog.SeverityError, "Transport error on %s (binding again in %s): %s", p.name, p.options.ErrorBackoff, err)
		}

		timer := time.NewTimer(p.options.ErrorBackoff)
		select {
		case <-c.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

func (p *Processor) onDelivery(c context.Context, d mybus.Delivery) {
	// A handler that has begun may finish while the processor stops
	c = context.WithoutCancel(c)

	if p.options.MaxDeliveryAttempts > 0 && d.DeliveryAttempt() > p.options.MaxDeliveryAttempts {
		p.deadLetter(c, d)
		return
	}

	envelope, err := myevents.ParseEventEnvelope(d.Data())
	if err != nil {
		p.logger.Log(c, p.name, mylog.SeverityWarn, "Completing unreadable message %s on %s: %s", d.ID(), p.name, err)
		messagesTotal.WithLabelValues(p.name, outcomePoison).Inc()
		d.Complete()
		return
	}

	c = mycontext.WithCorrelationID(c, envelope.CorrelationID)

	err = p.handle(c, envelope)
	if err != nil {
		if myerrors.IsInvalidInput(err) {
			p.logger.Log(c, envelope.AggregateUID, mylog.SeverityWarn, "Completing poison message %s on %s: %s", envelope, p.name, err)
			messagesTotal.WithLabelValues(p.name, outcomePoison).Inc()
			d.Complete()
			return
		}

		p.logger.Log(c, envelope.AggregateUID, mylog.SeverityError, "Error handling %s on %s (attempt %d, will be redelivered): %s",
			envelope, p.name, d.DeliveryAttempt(), err)
		messagesTotal.WithLabelValues(p.name, outcomeAbandoned).Inc()
		d.Abandon()
		return
	}

	messagesTotal.WithLabelValues(p.name, outcomeCompleted).Inc()
	d.Complete()
}

func (p *Processor) handle(c context.Context, envelope myevents.EventEnvelope) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic handling %s: %v", envelope, r)
		}
	}()

	return p.handler(c, envelope)
}

func (p *Processor) deadLetter(c context.Context, d mybus.Delivery) {
	if p.deadLetterer == nil || p.options.DeadLetterTopic == "" {
		p.logger.Log(c, p.name, mylog.SeverityError, "Dropping message %s on %s after %d attempts: no dead-letter topic",
			d.ID(), p.name, d.DeliveryAttempt())
		messagesTotal.WithLabelValues(p.name, outcomeDeadLettered).Inc()
		d.Complete()
		return
	}

	err := p.deadLetterer.Publish(c, p.options.DeadLetterTopic, myevents.DeadLettered{
		Subscription:    p.name,
		MessageID:       d.ID(),
		DeliveryAttempt: d.DeliveryAttempt(),
		Data:            string(d.Data()),
	})
	if err != nil {
		p.logger.Log(c, p.name, mylog.SeverityError, "Error dead-lettering message %s on %s: %s", d.ID(), p.name, err)
		d.Abandon()
		return
	}

	p.logger.Log(c, p.name, mylog.SeverityWarn, "Dead-lettered message %s on %s after %d attempts", d.ID(), p.name, d.DeliveryAttempt())
	messagesTotal.WithLabelValues(p.name, outcomeDeadLettered).Inc()
	d.Complete()
}
