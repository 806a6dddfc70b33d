package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/valyala/fasthttp"

	"github.com/lumenct/fdkrecon/cmn/nlog"
)

// writePrometheusText gathers the default registry and writes it in
// the Prometheus text exposition format. fasthttp has no net/http
// handler compatibility, so promhttp.Handler can't be reused directly;
// this is the same gather step it performs internally.
func writePrometheusText(ctx *fasthttp.RequestCtx) {
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		nlog.Errorf("metrics: gathering metric families: %v", err)
		ctx.SetStatusCode(fasthttp.StatusInternalServerError)
		return
	}
	ctx.SetContentType(string(expfmt.FmtText))
	enc := expfmt.NewEncoder(ctx, expfmt.FmtText)
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			nlog.Errorf("metrics: encoding metric family %s: %v", mf.GetName(), err)
			return
		}
	}
}
