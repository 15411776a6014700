package model

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanDomain(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"acme.com", "acme.com"},
		{"https://www.Acme.com/about?x=1#top", "acme.com"},
		{"http://shop.acme.co.uk/", "shop.acme.co.uk"},
		{"  WWW.foo.io  ", "foo.io"},
		{"acme.com:8443/path", "acme.com"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := CleanDomain(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCleanDomain_Invalid(t *testing.T) {
	for _, in := range []string{"", "localhost", "a.b", "https://", "www.x"} {
		t.Run(in, func(t *testing.T) {
			_, err := CleanDomain(in)
			assert.True(t, errors.Is(err, ErrInvalidDomain), "got %v", err)
		})
	}
}

func TestDomainLabel(t *testing.T) {
	assert.Equal(t, "acme", DomainLabel("acme.co.uk"))
	assert.Equal(t, "acme", DomainLabel("acme"))
}
