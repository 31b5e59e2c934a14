package netx

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crossfin/crossfin/internal/apperr"
)

func TestIsPrivateIP(t *testing.T) {
	private := []string{
		"127.0.0.1",
		"10.0.0.1",
		"172.16.0.1",
		"172.31.255.254",
		"192.168.1.1",
		"169.254.169.254",
		"100.64.0.1",
		"0.0.0.0",
		"224.0.0.1",
		"::1",
		"fc00::1",
		"fe80::1",
		"ff02::1",
		"2001:db8::1",
		"::ffff:10.0.0.1", // v4-mapped
	}
	for _, s := range private {
		ip := net.ParseIP(s)
		require.NotNil(t, ip, s)
		assert.True(t, IsPrivateIP(ip), "%s should be private", s)
	}

	public := []string{
		"8.8.8.8",
		"1.1.1.1",
		"93.184.216.34",
		"2606:4700:4700::1111",
	}
	for _, s := range public {
		ip := net.ParseIP(s)
		require.NotNil(t, ip, s)
		assert.False(t, IsPrivateIP(ip), "%s should be public", s)
	}
}

func TestCheckHost(t *testing.T) {
	blocked := []string{
		"localhost",
		"api.localhost",
		"metadata.google.internal",
		"169.254.169.254",
		"127.0.0.1",
		"10.0.0.5",
		"[::1]",
	}
	for _, h := range blocked {
		err := CheckHost(h)
		require.Error(t, err, h)
		assert.Equal(t, apperr.Forbidden, apperr.KindOf(err), h)
	}

	allowed := []string{
		"api.bithumb.com",
		"8.8.8.8",
		"data-api.binance.vision",
	}
	for _, h := range allowed {
		assert.NoError(t, CheckHost(h), h)
	}
}
