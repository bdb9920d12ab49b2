package main

import (
	"context"
	"sync"

	"eduattend/internal/api"
	"eduattend/internal/config"
	"eduattend/internal/logging"
	"eduattend/internal/session"
)

// transportFactory builds the chat transport for each new session. With the
// WebSocket transport, the connection of the previous session is closed when
// the next one starts. Streams are additionally cancelled when parent ends.
func transportFactory(parent context.Context, client *api.Client, kind string) (session.TransportFactory, func()) {
	var (
		mu   sync.Mutex
		prev *api.WSChat
	)
	closePrev := func() {
		mu.Lock()
		defer mu.Unlock()
		if prev != nil {
			if err := prev.Close(); err != nil {
				logging.TransportDebug("closing websocket %s: %v", prev.URL(), err)
			}
			prev = nil
		}
	}

	factory := func(key string) session.Transport {
		if kind != config.TransportWebSocket {
			return boundTransport{parent: parent, inner: client.Chat(key)}
		}
		closePrev()
		ws := client.WebSocketChat(key)
		mu.Lock()
		prev = ws
		mu.Unlock()
		return boundTransport{parent: parent, inner: ws}
	}
	return factory, closePrev
}

// boundTransport ties every stream to a parent context as well as the
// session's own.
type boundTransport struct {
	parent context.Context
	inner  session.Transport
}

func (b boundTransport) Stream(ctx context.Context, text string) (<-chan string, <-chan error) {
	if b.parent == nil {
		return b.inner.Stream(ctx, text)
	}
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(b.parent, cancel)

	tokens, errs := b.inner.Stream(ctx, text)

	out := make(chan string)
	outErr := make(chan error, 1)
	go func() {
		defer cancel()
		defer stop()
		defer close(outErr)
		defer close(out)
		for tok := range tokens {
			select {
			case out <- tok:
			case <-ctx.Done():
				// Keep draining so the inner transport can exit.
				for range tokens {
				}
			}
		}
		if err, ok := <-errs; ok && err != nil {
			outErr <- err
		} else if b.parent.Err() != nil {
			outErr <- b.parent.Err()
		}
	}()
	return out, outErr
}
