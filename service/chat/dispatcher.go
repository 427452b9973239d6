package chat

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang/glog"
)

// Handler processes one inbound frame type for a connection.
type Handler interface {
	Type() string
	Handle(ctx context.Context, c *Conn, f *InboundFrame) error
}

var ErrNoHandler = errors.New("no handler for frame type")

// Dispatcher routes inbound frames by type. Register is not synchronized;
// install extra handlers before the hub starts serving.
type Dispatcher struct {
	handlers map[string]Handler
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[string]Handler)}
}

// Register installs h, replacing any handler of the same type.
func (d *Dispatcher) Register(h Handler) { d.handlers[h.Type()] = h }

func (d *Dispatcher) Dispatch(ctx context.Context, c *Conn, f *InboundFrame) error {
	h := d.GetHandler(f.Type)
	if h == nil {
		return fmt.Errorf("%w: type=%v", ErrNoHandler, f.Type)
	}
	return h.Handle(ctx, c, f)
}

func (d *Dispatcher) GetHandler(typ string) Handler {
	h, ok := d.handlers[typ]
	if !ok {
		glog.Infof("no handler for type=%v", typ)
		return nil
	}
	return h
}
