package resilience

import (
	"errors"
	"fmt"
	"net"
	"syscall"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
)

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"cdn 503", NewTransientError(errors.New("brandfetch: status 503"), 503), true},
		{"eris wrapped 429", eris.Wrap(NewTransientError(errors.New("jina: status 429"), 429), "jina: search"), true},
		{"plain", errors.New("brandfetch: empty domain"), false},
		{"reset", fmt.Errorf("read tcp: %w", syscall.ECONNRESET), true},
		{"refused", fmt.Errorf("dial tcp: %w", syscall.ECONNREFUSED), true},
		{"dns timeout", &net.DNSError{IsTimeout: true, Err: "timeout"}, true},
		{"dns not found", &net.DNSError{Err: "no such host", Name: "cdn.invalid"}, true},
		{"tls message", errors.New("net/http: TLS handshake timeout"), true},
		{"idle conn", errors.New("http: server closed idle connection"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

func TestStatusCode_ThroughWrapping(t *testing.T) {
	err := eris.Wrap(NewTransientError(errors.New("bad status"), 502), "logo: fetch")
	assert.Equal(t, 502, StatusCode(err))
	assert.Zero(t, StatusCode(errors.New("dial tcp: refused")))
	assert.Zero(t, StatusCode(nil))
}

func TestTransientError_KeepsCause(t *testing.T) {
	cause := errors.New("content type text/html")
	te := NewTransientError(cause, 200)

	assert.ErrorIs(t, te, cause)
	assert.Equal(t, cause.Error(), te.Error())
	assert.Equal(t, 200, te.StatusCode)
}
