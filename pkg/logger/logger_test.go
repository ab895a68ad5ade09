package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaskPhone(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"5511987654321", "55*******4321"},
		{"12345", "12345"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, MaskPhone(tt.in))
	}
}

func TestGetInitializesLogger(t *testing.T) {
	l := Get()
	assert.NotNil(t, l)
	assert.Equal(t, "user", User("5511987654321").Key)
}
