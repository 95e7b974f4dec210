package scrape

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateURL(t *testing.T) {
	cases := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{"https allowed", "https://example.com/page", false},
		{"http allowed", "http://example.com/page", false},
		{"ftp rejected", "ftp://example.com/file", true},
		{"file rejected", "file:///etc/passwd", true},
		{"localhost rejected", "http://localhost:8080/", true},
		{"loopback rejected", "https://127.0.0.1/", true},
		{"v6 loopback rejected", "https://[::1]/", true},
		{"local domain rejected", "https://printer.local/", true},
		{"internal domain rejected", "https://db.internal/", true},
		{"private IP rejected", "https://192.168.1.1/admin", true},
		{"ten-net rejected", "http://10.0.0.5/", true},
		{"link-local rejected", "http://169.254.169.254/latest/meta-data", true},
		{"cgnat rejected", "http://100.64.0.1/", true},
		{"public IP allowed", "https://93.184.216.34/", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := validateURL(tc.url)
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestIsPrivateIP(t *testing.T) {
	private := []string{
		"127.0.0.1", "10.1.2.3", "172.16.0.1", "192.168.0.1",
		"169.254.1.1", "100.64.0.1", "fc00::1", "fe80::1", "::1",
	}
	for _, s := range private {
		assert.True(t, isPrivateIP(net.ParseIP(s)), "%s should be private", s)
	}

	public := []string{"8.8.8.8", "93.184.216.34", "2606:2800:220:1:248:1893:25c8:1946"}
	for _, s := range public {
		assert.False(t, isPrivateIP(net.ParseIP(s)), "%s should be public", s)
	}
}

func TestIsTextualContentType(t *testing.T) {
	assert.True(t, isTextualContentType("text/html; charset=utf-8"))
	assert.True(t, isTextualContentType("application/xhtml+xml"))
	assert.True(t, isTextualContentType("TEXT/PLAIN"))
	assert.False(t, isTextualContentType("image/png"))
	assert.False(t, isTextualContentType("application/pdf"))
	assert.False(t, isTextualContentType("application/octet-stream"))
}
