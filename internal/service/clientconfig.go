package service

import (
	"encoding/binary"
	"fmt"
	"net"
	"net/netip"
	"strconv"
	"strings"
	"text/template"

	"grapevpn/keyhub/internal/config"
)

const serverKeyPlaceholder = "<SERVER_PUBLIC_KEY>"

var clientConfigTemplate = template.Must(template.New("wg").Parse(`[Interface]
PrivateKey = {{.PrivateKey}}
Address = {{.Address}}/32
DNS = {{.DNS}}

[Peer]
PublicKey = {{.ServerPublicKey}}
Endpoint = {{.Endpoint}}
AllowedIPs = 0.0.0.0/0, ::/0
PersistentKeepalive = 25
`))

type clientConfigData struct {
	PrivateKey      string
	Address         string
	DNS             string
	ServerPublicKey string
	Endpoint        string
}

// ClientProfile holds the server-side values every client configuration
// shares.
type ClientProfile struct {
	Endpoint        string
	ServerPublicKey string
	DNS             string
	AddressBase     netip.Addr
}

func NewClientProfile(cfg config.WireGuardConfig) (ClientProfile, error) {
	base, err := netip.ParseAddr(cfg.AddressBase)
	if err != nil {
		return ClientProfile{}, fmt.Errorf("wireguard.address_base: %w", err)
	}
	if !base.Is4() {
		return ClientProfile{}, fmt.Errorf("wireguard.address_base must be IPv4, got %s", base)
	}
	serverKey := strings.TrimSpace(cfg.ServerPublicKey)
	if serverKey == "" {
		serverKey = serverKeyPlaceholder
	}
	dns := cfg.DNS
	if dns == "" {
		dns = "1.1.1.1"
	}
	return ClientProfile{
		Endpoint:        net.JoinHostPort(cfg.HostPublicIP, strconv.Itoa(cfg.ListenPort)),
		ServerPublicKey: serverKey,
		DNS:             dns,
		AddressBase:     base,
	}, nil
}

// Address returns base + 2 + n, where n counts the account's tokens in the
// current window including the one being issued.
func (p ClientProfile) Address(n int) netip.Addr {
	b := p.AddressBase.As4()
	v := binary.BigEndian.Uint32(b[:]) + 2 + uint32(n)
	binary.BigEndian.PutUint32(b[:], v)
	return netip.AddrFrom4(b)
}

// Render fills the client configuration for one keypair and address.
func (p ClientProfile) Render(privateKey string, addr netip.Addr) (string, error) {
	var sb strings.Builder
	err := clientConfigTemplate.Execute(&sb, clientConfigData{
		PrivateKey:      privateKey,
		Address:         addr.String(),
		DNS:             p.DNS,
		ServerPublicKey: p.ServerPublicKey,
		Endpoint:        p.Endpoint,
	})
	if err != nil {
		return "", fmt.Errorf("render client config: %w", err)
	}
	return sb.String(), nil
}
