package service

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/require"

	"grapevpn/keyhub/internal/config"
)

func TestClientProfile_Render(t *testing.T) {
	p := testProfile(t)

	out, err := p.Render("client-priv", p.Address(1))
	require.NoError(t, err)
	require.Equal(t, `[Interface]
PrivateKey = client-priv
Address = 10.66.66.3/32
DNS = 1.1.1.1

[Peer]
PublicKey = server-pub
Endpoint = vpn.test:51820
AllowedIPs = 0.0.0.0/0, ::/0
PersistentKeepalive = 25
`, out)
}

func TestClientProfile_ServerKeyPlaceholder(t *testing.T) {
	p, err := NewClientProfile(config.WireGuardConfig{
		HostPublicIP: "203.0.113.5",
		ListenPort:   51820,
		AddressBase:  "10.66.66.0",
	})
	require.NoError(t, err)
	require.Equal(t, "<SERVER_PUBLIC_KEY>", p.ServerPublicKey)
	require.Equal(t, "1.1.1.1", p.DNS)

	out, err := p.Render("k", p.Address(1))
	require.NoError(t, err)
	require.Contains(t, out, "PublicKey = <SERVER_PUBLIC_KEY>\n")
	require.Contains(t, out, "Endpoint = 203.0.113.5:51820\n")
}

func TestClientProfile_Address(t *testing.T) {
	p := testProfile(t)
	require.Equal(t, netip.MustParseAddr("10.66.66.3"), p.Address(1))
	require.Equal(t, netip.MustParseAddr("10.66.66.12"), p.Address(10))
	require.Equal(t, netip.MustParseAddr("10.66.67.1"), p.Address(255))
}

func TestNewClientProfile_RejectsBadBase(t *testing.T) {
	_, err := NewClientProfile(config.WireGuardConfig{AddressBase: "not-an-ip"})
	require.Error(t, err)

	_, err = NewClientProfile(config.WireGuardConfig{AddressBase: "fd00::"})
	require.Error(t, err)
}
