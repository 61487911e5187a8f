// Package nodeid derives the exporter-local node identifier used as the
// node_id label on every emitted series.
//
// The upstream public node key is never exposed as a label. It is hashed into
// a version-5 UUID under the DNS namespace and rendered as 32 uppercase hex
// digits without dashes. The mapping is pure: the same key always yields the
// same id, across requests and across processes.
package nodeid

import (
	"encoding/hex"
	"strings"

	"github.com/google/uuid"
)

// Derive returns the stable node id for publicID.
func Derive(publicID string) string {
	id := uuid.NewSHA1(uuid.NameSpaceDNS, []byte(publicID))
	return strings.ToUpper(hex.EncodeToString(id[:]))
}
