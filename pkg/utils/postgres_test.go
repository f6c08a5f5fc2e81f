package utils

import (
	"testing"
	"time"
)

func TestPoolConfigDefaults(t *testing.T) {
	got := PostgresPoolConfig{}.withDefaults()
	if got.MaxOpenConns != defaultMaxOpenConns || got.MaxIdleConns != defaultMaxIdleConns {
		t.Fatalf("unexpected conn defaults: %+v", got)
	}
	if got.ConnMaxLifetime != defaultConnMaxLifetime || got.ConnMaxIdleTime != defaultConnMaxIdleTime {
		t.Fatalf("unexpected lifetime defaults: %+v", got)
	}
	if got.PingTimeout != defaultPingTimeout {
		t.Fatalf("unexpected ping timeout: %v", got.PingTimeout)
	}
}

func TestPoolConfigDefaults_PreserveExplicitValues(t *testing.T) {
	in := PostgresPoolConfig{
		MaxOpenConns:    4,
		MaxIdleConns:    2,
		ConnMaxLifetime: time.Minute,
		ConnMaxIdleTime: 30 * time.Second,
		PingTimeout:     time.Second,
	}
	if got := in.withDefaults(); got != in {
		t.Fatalf("explicit values must not be overridden: %+v", got)
	}
}
