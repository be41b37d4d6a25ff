package query

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// collector периодически выбрасывает неактивные записи кэша.
type collector struct {
	client   *Client
	logger   *zap.Logger
	interval time.Duration
	wg       sync.WaitGroup
	stop     chan struct{}
	once     sync.Once
}

func newCollector(c *Client, interval time.Duration) *collector {
	return &collector{
		client:   c,
		logger:   c.logger,
		interval: interval,
		stop:     make(chan struct{}),
	}
}

func (p *collector) Start(ctx context.Context) {
	p.logger.Debug("Starting cache collector", zap.Duration("interval", p.interval))

	p.wg.Add(1)
	go p.run(ctx)
}

func (p *collector) Stop() {
	p.once.Do(func() {
		close(p.stop)
		p.wg.Wait()
		p.logger.Debug("Cache collector stopped")
	})
}

func (p *collector) run(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := p.client.collect(time.Now()); n > 0 {
				p.logger.Debug("Evicted inactive queries", zap.Int("count", n))
			}
		}
	}
}

// collect удаляет записи без наблюдателей, простаивающие дольше GCTime.
func (c *Client) collect(now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	evicted := 0
	for hash, e := range c.entries {
		if len(e.observers) > 0 || e.state.FetchStatus == FetchFetching {
			continue
		}
		if e.inactiveSince.IsZero() || now.Sub(e.inactiveSince) < c.opts.GCTime {
			continue
		}
		delete(c.entries, hash)
		evicted++
	}
	return evicted
}
