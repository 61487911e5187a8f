package metrics

import (
	"bytes"
	"fmt"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
)

// Format is the exposition format produced by Render.
var Format = expfmt.NewFormat(expfmt.TypeTextPlain)

// ContentType is the Content-Type header value matching Format.
var ContentType = string(Format)

// Render encodes the registry in the Prometheus text format, one family per
// instrument in catalog order. Within a family series are sorted by label
// values, so identical registries render identical bytes. Instruments with no
// series emit their HELP and TYPE lines only.
func (r *Registry) Render() ([]byte, error) {
	mfs, err := r.reg.Gather()
	if err != nil {
		return nil, fmt.Errorf("metrics: gather: %w", err)
	}
	byName := make(map[string]*dto.MetricFamily, len(mfs))
	for _, mf := range mfs {
		byName[mf.GetName()] = mf
	}

	var buf bytes.Buffer
	enc := expfmt.NewEncoder(&buf, Format)
	for _, in := range r.instruments {
		name := r.FQName(in)
		mf, ok := byName[name]
		if !ok || len(mf.GetMetric()) == 0 {
			// The text encoder rejects families without metrics.
			fmt.Fprintf(&buf, "# HELP %s %s\n# TYPE %s gauge\n", name, in.Help, name)
			continue
		}
		if err := enc.Encode(mf); err != nil {
			return nil, fmt.Errorf("metrics: encode %s: %w", name, err)
		}
	}
	return buf.Bytes(), nil
}
