package main

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/pairchat-server/internal/config"
)

func TestServeFlagsOverrideConfig(t *testing.T) {
	cmd := newServeCmd()
	require.NoError(t, cmd.Flags().Parse([]string{
		"--addr", ":9090",
		"--jwt-issuer", "issuer-x",
		"--delivery-acks=false",
	}))

	cfg := config.Default()
	cfg.DeliveryAcks = true
	cfg.JWTRequired = true

	var overrides config.Config
	overrides.Addr = cmd.Flags().Lookup("addr").Value.String()
	overrides.JWTIssuer = cmd.Flags().Lookup("jwt-issuer").Value.String()
	applyOverrides(&cfg, overrides, cmd.Flags().Changed)

	require.Equal(t, ":9090", cfg.Addr)
	require.Equal(t, "issuer-x", cfg.JWTIssuer)
	require.False(t, cfg.DeliveryAcks, "an explicit false switches acks off")
	require.True(t, cfg.JWTRequired, "flags not given keep the loaded value")
}
