package factory

import (
	"context"
	"testing"

	"github.com/nimburion/docstream/pkg/config"
	"github.com/nimburion/docstream/pkg/observability/logger"
	"github.com/nimburion/docstream/pkg/transport"
	"github.com/nimburion/docstream/pkg/transport/rest"
)

func TestNewTransport_Memory(t *testing.T) {
	tr, err := NewTransport(config.TransportConfig{Type: config.TransportTypeMemory}, 100, logger.Nop{})
	if err != nil {
		t.Fatalf("NewTransport: %v", err)
	}
	if _, ok := tr.(*transport.Memory); !ok {
		t.Fatalf("expected *transport.Memory, got %T", tr)
	}
	if !tr.TestConnection(context.Background()) {
		t.Error("memory transport should be reachable")
	}
}

func TestNewTransport_REST(t *testing.T) {
	cfg := config.DefaultConfig().Transport
	cfg.Type = config.TransportTypeREST
	cfg.REST.BaseURL = "http://127.0.0.1:1"
	cfg.REST.ChannelID = "c"
	cfg.REST.Token = "t"
	tr, err := NewTransport(cfg, 0, logger.Nop{})
	if err != nil {
		t.Fatalf("NewTransport: %v", err)
	}
	if _, ok := tr.(*rest.Client); !ok {
		t.Fatalf("expected *rest.Client, got %T", tr)
	}
}

func TestNewTransport_Errors(t *testing.T) {
	cases := []config.TransportConfig{
		{Type: "smoke-signals"},
		{Type: config.TransportTypeREST},
		{Type: config.TransportTypeRedis},
		{Type: config.TransportTypeMongoDB},
	}
	for _, cfg := range cases {
		if _, err := NewTransport(cfg, 0, logger.Nop{}); err == nil {
			t.Errorf("type %q: expected error", cfg.Type)
		}
	}
}
