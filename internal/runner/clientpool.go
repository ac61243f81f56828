package runner

import "context"

// clientPool is a load-balancing free list of worker clients: a dispatch
// takes whichever client is idle and returns it when done, so concurrency is
// bounded by the pool size without any local scheduling logic.
type clientPool struct {
	clients []WorkerClient
	free    chan WorkerClient
}

func newClientPool(clients []WorkerClient) *clientPool {
	free := make(chan WorkerClient, len(clients))
	for _, c := range clients {
		free <- c
	}
	return &clientPool{clients: clients, free: free}
}

func (p *clientPool) get(ctx context.Context) (WorkerClient, error) {
	select {
	case c := <-p.free:
		return c, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p *clientPool) put(c WorkerClient) {
	select {
	case p.free <- c:
	default:
		// Never reached: the channel capacity equals the client count.
	}
}

func (p *clientPool) close() {
	for _, c := range p.clients {
		if c != nil {
			_ = c.Close()
		}
	}
}
