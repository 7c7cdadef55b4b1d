package mylifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/hashicorp/go-multierror"

	"github.com/MarcGrol/shopsaga/lib/mylog"
)

var ErrAlreadyStopped = errors.New("consumers already stopped")

//go:generate mockgen -source=lifecycle.go -package mylifecycle -destination processor_mock.go Processor
type Processor interface {
	Name() string
	Start(c context.Context) error
	Stop(c context.Context) error
}

// Handle represents the running consumers of a service. Only the holder of the handle can stop them.
type Handle struct {
	sync.Mutex
	processors []Processor
	stopped    bool
	logger     mylog.Logger
}

// Start starts all processors. When one fails to start, those already started are stopped again.
func Start(c context.Context, processors ...Processor) (*Handle, error) {
	logger := mylog.New("lifecycle")

	started := make([]Processor, 0, len(processors))
	for _, p := range processors {
		err := p.Start(c)
		if err != nil {
			rollback := &Handle{processors: started, logger: logger}
			stopErr := rollback.Stop(c)
			if stopErr != nil {
				logger.Log(c, p.Name(), mylog.SeverityError, "Error rolling back consumers: %s", stopErr)
			}
			return nil, fmt.Errorf("error starting consumer %s: %w", p.Name(), err)
		}
		started = append(started, p)
	}

	logger.Log(c, "", mylog.SeverityInfo, "Started %d consumers", len(started))

	return &Handle{
		processors: started,
		logger:     logger,
	}, nil
}

// Stop attempts to stop every processor, also when stopping some of them fails.
func (h *Handle) Stop(c context.Context) error {
	h.Lock()
	defer h.Unlock()

	if h.stopped {
		return ErrAlreadyStopped
	}
	h.stopped = true

	var result *multierror.Error
	for _, p := range h.processors {
		err := p.Stop(c)
		if err != nil {
			h.logger.Log(c, p.Name(), mylog.SeverityError, "Error stopping consumer %s: %s", p.Name(), err)
			result = multierror.Append(result, err)
		}
	}

	h.logger.Log(c, "", mylog.SeverityInfo, "Stopped %d consumers", len(h.processors))

	return result.ErrorOrNil()
}
