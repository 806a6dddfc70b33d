package metrics

import (
	"fmt"

	"github.com/valyala/fasthttp"

	"github.com/lumenct/fdkrecon/cmn/nlog"
)

// Server is a minimal fasthttp status/metrics endpoint. It sits outside
// the core pipeline and exists purely so an operator can scrape progress
// without tailing logs.
type Server struct {
	Addr string

	server *fasthttp.Server
}

func NewServer(addr string) *Server {
	return &Server{Addr: addr}
}

func (s *Server) ListenAndServe() error {
	s.server = &fasthttp.Server{
		Handler: s.handle,
		Name:    "fdkrecon-status",
	}
	nlog.Infof("metrics: status endpoint listening on %s", s.Addr)
	return s.server.ListenAndServe(s.Addr)
}

func (s *Server) Shutdown() error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown()
}

func (s *Server) handle(ctx *fasthttp.RequestCtx) {
	switch string(ctx.Path()) {
	case "/healthz":
		ctx.SetStatusCode(fasthttp.StatusOK)
		fmt.Fprint(ctx, "ok")
	case "/metrics":
		writePrometheusText(ctx)
	default:
		ctx.SetStatusCode(fasthttp.StatusNotFound)
	}
}
