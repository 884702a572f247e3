// Copyright 2026 The QuicPair Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"github.com/pion/webrtc/v4"

	"github.com/quicpair/quicpair/lib/config"
)

// ICEConfig lists the STUN and TURN servers used during candidate
// gathering. The zero value gathers host candidates only, which is
// enough when both peers share a network.
type ICEConfig struct {
	Servers []webrtc.ICEServer
}

// ICEConfigFromServers converts configured ICE servers to pion's form.
func ICEConfigFromServers(servers []config.ICEServer) ICEConfig {
	if len(servers) == 0 {
		return ICEConfig{}
	}
	converted := make([]webrtc.ICEServer, 0, len(servers))
	for _, server := range servers {
		converted = append(converted, webrtc.ICEServer{
			URLs:       server.URLs,
			Username:   server.Username,
			Credential: server.Credential,
		})
	}
	return ICEConfig{Servers: converted}
}
