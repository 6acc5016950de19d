package logging

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestNew_Level(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, New("prod", "debug").GetLevel())
	assert.Equal(t, zerolog.WarnLevel, New("dev", "warn").GetLevel())
	assert.Equal(t, zerolog.InfoLevel, New("prod", "").GetLevel())
	assert.Equal(t, zerolog.InfoLevel, New("prod", "loud").GetLevel())
}
