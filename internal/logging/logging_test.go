package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func restore(t *testing.T) {
	level, logger := zerolog.GlobalLevel(), log.Logger
	t.Cleanup(func() {
		zerolog.SetGlobalLevel(level)
		log.Logger = logger
		zerolog.DefaultContextLogger = nil
	})
}

func TestSetupJSON(t *testing.T) {
	restore(t)
	var buf bytes.Buffer

	require.NoError(t, Setup("info", false, &buf))
	log.Debug().Msg("hidden")
	log.Info().Str("lang", "it").Msg("shown")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "shown", entry["message"])
	assert.Equal(t, "it", entry["lang"])
	assert.Equal(t, "info", entry["level"])
}

func TestSetupDefaultsToWarn(t *testing.T) {
	restore(t)
	var buf bytes.Buffer

	require.NoError(t, Setup("", true, &buf))
	log.Info().Msg("quiet")
	assert.Empty(t, buf.String())

	log.Warn().Msg("loud")
	assert.Contains(t, buf.String(), "loud")
}

func TestSetupRejectsUnknownLevel(t *testing.T) {
	restore(t)
	assert.Error(t, Setup("chatty", false, &bytes.Buffer{}))
}
