package controller

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.dedis.ch/ballotbox"
	"go.dedis.ch/ballotbox/cli/node"
	"go.dedis.ch/ballotbox/proxy"
	"go.dedis.ch/ballotbox/proxy/http"
	"golang.org/x/xerrors"
)

var defaultRetry = 10
var retryDelay = 100 * time.Millisecond
var proxyFac func(string) proxy.Proxy = func(addr string) proxy.Proxy {
	return http.NewHTTP(addr)
}

// startProxy creates the proxy and waits for it to listen.
func startProxy(addr string) (proxy.Proxy, error) {
	p := proxyFac(addr)

	go p.Listen()

	for i := 0; i < defaultRetry && p.GetAddr() == nil; i++ {
		time.Sleep(retryDelay)
	}

	if p.GetAddr() == nil {
		p.Stop()
		return nil, xerrors.Errorf("failed to start proxy server on %s", addr)
	}

	return p, nil
}

type promAction struct{}

// Execute implements node.ActionTemplate. It registers the Prometheus handler.
func (a promAction) Execute(ctx node.Context) error {
	var p proxy.Proxy

	err := ctx.Injector.Resolve(&p)
	if err != nil {
		return xerrors.Errorf("failed to resolve the proxy: %v", err)
	}

	path := ctx.Flags.String("path")

	for _, c := range ballotbox.PromCollectors {
		err = prometheus.DefaultRegisterer.Register(c)
		if err != nil {
			fmt.Fprintf(ctx.Out, "ERROR: failed to register: %v\n", err)
		}
	}

	p.RegisterHandler(path, promhttp.Handler().ServeHTTP)
	fmt.Fprintf(ctx.Out, "registered prometheus service on %q", path)

	return nil
}
