package procworker

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/torosent/inferfire/internal/model"
)

// Client is the host-side handle to one worker. It performs the hello/ready
// handshake at construction and then serves one Predict at a time. A
// background receive loop decouples reads from Predict so a cancelled
// context unblocks the caller even while the worker is mid-computation.
type Client struct {
	mu  sync.Mutex // serializes request frames
	enc *json.Encoder

	resps chan responseFrame
	done  chan struct{} // closed by the receive loop on stream end
	rerr  error         // set before done closes

	shutdown  func() error
	closeOnce sync.Once
	closeErr  error
}

// NewClient performs the handshake over the given streams. shutdown tears
// down the underlying transport (killing the child process for exec-backed
// workers); it may be nil.
func NewClient(ctx context.Context, spec model.Spec, r io.Reader, w io.Writer, shutdown func() error) (*Client, error) {
	enc := json.NewEncoder(w)
	dec := json.NewDecoder(r)
	if err := enc.Encode(helloFrame{Spec: spec}); err != nil {
		return nil, fmt.Errorf("send hello: %w", err)
	}

	readyCh := make(chan error, 1)
	go func() {
		var ready readyFrame
		if err := dec.Decode(&ready); err != nil {
			readyCh <- fmt.Errorf("read ready: %w", err)
			return
		}
		if !ready.OK {
			readyCh <- fmt.Errorf("worker init failed: %s", ready.Error)
			return
		}
		readyCh <- nil
	}()
	select {
	case err := <-readyCh:
		if err != nil {
			return nil, err
		}
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if shutdown == nil {
		shutdown = func() error { return nil }
	}
	c := &Client{
		enc:      enc,
		resps:    make(chan responseFrame, 1),
		done:     make(chan struct{}),
		shutdown: shutdown,
	}
	go c.recvLoop(dec)
	return c, nil
}

func (c *Client) recvLoop(dec *json.Decoder) {
	for {
		var resp responseFrame
		if err := dec.Decode(&resp); err != nil {
			c.rerr = err
			close(c.done)
			return
		}
		// One request is outstanding at a time, so the buffered send
		// cannot block: at worst one stale response sits in the buffer
		// after a cancelled Predict.
		c.resps <- resp
	}
}

// Predict sends one query to the worker and blocks for its result. A model
// failure inside the worker comes back as *model.RemoteError; anything else
// means the boundary itself broke.
func (c *Client) Predict(ctx context.Context, id int64, in model.Input) (model.Output, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.enc.Encode(requestFrame{ID: id, Input: in}); err != nil {
		return nil, fmt.Errorf("send query %d: %w", id, err)
	}
	select {
	case resp := <-c.resps:
		if resp.ID != id {
			return nil, fmt.Errorf("worker answered query %d, want %d", resp.ID, id)
		}
		if resp.Error != "" {
			return nil, &model.RemoteError{Msg: resp.Error}
		}
		return model.Output(resp.Result), nil
	case <-c.done:
		return nil, fmt.Errorf("worker stream closed: %w", c.rerr)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close tears the worker down. Idempotent; discards any in-flight response.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.shutdown()
	})
	return c.closeErr
}
