// Package keygen provisions WireGuard keypairs. It prefers the trusted `wg`
// tool and falls back to locally generated Curve25519 keys when the tool is
// missing, fails or times out. Generation itself never fails.
package keygen

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/curve25519"

	"grapevpn/keyhub/internal/model"
)

const (
	keySize        = 32
	DefaultTimeout = 3 * time.Second
)

// Keypair is a client keypair plus the path that produced it.
type Keypair struct {
	PrivateKey string
	PublicKey  string
	Source     model.KeySource
}

// UsedTrustedTool reports whether the keys came from the wg tool.
func (k Keypair) UsedTrustedTool() bool {
	return k.Source == model.KeySourceTrustedTool
}

type Provider struct {
	toolPath string
	timeout  time.Duration
	runner   CommandRunner
	logger   *zap.Logger
}

type Option func(*Provider)

// WithRunner replaces the process runner used to invoke the tool.
func WithRunner(r CommandRunner) Option {
	return func(p *Provider) { p.runner = r }
}

func NewProvider(toolPath string, timeout time.Duration, logger *zap.Logger, opts ...Option) *Provider {
	if toolPath == "" {
		toolPath = "wg"
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Provider{
		toolPath: toolPath,
		timeout:  timeout,
		runner:   execRunner{},
		logger:   logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Generate returns a keypair from the wg tool, or a fallback keypair when
// the tool is unavailable.
func (p *Provider) Generate(ctx context.Context) Keypair {
	priv, pub, err := p.fromTool(ctx)
	if err == nil {
		return Keypair{PrivateKey: priv, PublicKey: pub, Source: model.KeySourceTrustedTool}
	}
	p.logger.Warn("wg tool unavailable, using fallback keypair",
		zap.String("tool", p.toolPath),
		zap.Error(err),
	)
	return Fallback()
}

func (p *Provider) fromTool(ctx context.Context) (string, string, error) {
	genCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	priv, err := p.runner.Run(genCtx, "", p.toolPath, "genkey")
	if err != nil {
		return "", "", err
	}
	if err := validateKey(priv); err != nil {
		return "", "", fmt.Errorf("genkey output: %w", err)
	}

	pubCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	pub, err := p.runner.Run(pubCtx, priv+"\n", p.toolPath, "pubkey")
	if err != nil {
		return "", "", err
	}
	if err := validateKey(pub); err != nil {
		return "", "", fmt.Errorf("pubkey output: %w", err)
	}
	return priv, pub, nil
}

// validateKey accepts the wg key format: standard base64 of 32 bytes.
func validateKey(key string) error {
	raw, err := base64.StdEncoding.DecodeString(key)
	if err != nil {
		return err
	}
	if len(raw) != keySize {
		return fmt.Errorf("key is %d bytes, want %d", len(raw), keySize)
	}
	return nil
}

// Fallback generates a clamped Curve25519 private key from crypto/rand and
// derives its public key. If derivation fails, the public key is a random
// placeholder.
func Fallback() Keypair {
	priv := make([]byte, keySize)
	mustRead(priv)

	priv[0] &^= 0x07
	priv[31] &^= 0x80
	priv[31] |= 0x40

	pub, err := curve25519.X25519(priv, curve25519.Basepoint)
	if err != nil {
		pub = make([]byte, keySize)
		mustRead(pub)
	}
	return Keypair{
		PrivateKey: base64.StdEncoding.EncodeToString(priv),
		PublicKey:  base64.StdEncoding.EncodeToString(pub),
		Source:     model.KeySourceFallback,
	}
}

// mustRead fills b from crypto/rand. A failing system random source leaves
// no secure way to mint keys, so it panics.
func mustRead(b []byte) {
	if _, err := rand.Read(b); err != nil {
		panic(fmt.Sprintf("keygen: crypto/rand unavailable: %v", err))
	}
}
