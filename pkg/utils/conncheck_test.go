package utils

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractFromDBURL(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want string
	}{
		{"with port", "postgresql://user:pw@dbhost:6432/trackline", "dbhost:6432"},
		{"default port", "postgresql://user:pw@dbhost/trackline", "dbhost:5432"},
		{"postgres scheme", "postgres://user@localhost:5432/db?sslmode=disable", "localhost:5432"},
		{"no credentials", "postgresql://dbhost/db", "dbhost:5432"},
		{"other scheme", "mysql://user@dbhost/db", ""},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractFromDBURL(tt.url))
		})
	}
}

func TestExtractFromNatsURL(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want string
	}{
		{"with port", "nats://natshost:4333", "natshost:4333"},
		{"default port", "nats://natshost", "natshost:4222"},
		{"credentials", "nats://user:pw@natshost:4222", "natshost:4222"},
		{"server list", "nats://a:4222, nats://b:4222", "a:4222"},
		{"unknown scheme", "http://natshost:4222", ""},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractFromNatsURL(tt.url))
		})
	}
}

func TestWaitForTCP(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()
	assert.NoError(t, WaitForTCP(context.Background(), ln.Addr().String(), time.Second))
}

func TestWaitForTCPTimeout(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()
	err = WaitForTCP(context.Background(), addr, 300*time.Millisecond)
	assert.Error(t, err)
}
