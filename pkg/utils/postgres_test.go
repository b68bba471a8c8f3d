package utils

import (
	"testing"
	"time"
)

func TestPostgresPoolConfig_Defaults(t *testing.T) {
	c := PostgresPoolConfig{}.withDefaults()
	if c.MaxOpenConns <= 0 || c.MaxIdleConns <= 0 {
		t.Fatalf("expected pool defaults, got %+v", c)
	}
	if c.PingTimeout <= 0 {
		t.Fatalf("expected ping timeout default")
	}
}

func TestPostgresPoolConfig_KeepsExplicitValues(t *testing.T) {
	c := PostgresPoolConfig{MaxOpenConns: 3, PingTimeout: time.Second}.withDefaults()
	if c.MaxOpenConns != 3 {
		t.Fatalf("expected explicit MaxOpenConns kept, got %d", c.MaxOpenConns)
	}
	if c.PingTimeout != time.Second {
		t.Fatalf("expected explicit PingTimeout kept, got %v", c.PingTimeout)
	}
}
