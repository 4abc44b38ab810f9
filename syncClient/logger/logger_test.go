package logger

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithWriter(t *testing.T) {
	t.Run("json carries service and fields", func(t *testing.T) {
		var buf bytes.Buffer
		log := NewWithWriter(&buf, int(zerolog.InfoLevel), "json", false)
		log.Info().Uint64("battle_id", 3243).Msg("json_test")

		out := buf.String()
		require.Contains(t, out, `"message":"json_test"`)
		assert.Contains(t, out, `"battle_id":3243`)
		assert.Contains(t, out, `"service":"wavewarzd"`)
		assert.Contains(t, out, `"time":`)
	})

	t.Run("console is human readable", func(t *testing.T) {
		var buf bytes.Buffer
		log := NewWithWriter(&buf, int(zerolog.DebugLevel), "console", false)
		log.Debug().Str("sync_type", "manual").Msg("console_log")

		out := buf.String()
		assert.Contains(t, out, "console_log")
		assert.Contains(t, out, "sync_type=manual")
		assert.NotContains(t, out, "\x1b[")
	})

	t.Run("level filters", func(t *testing.T) {
		var buf bytes.Buffer
		log := NewWithWriter(&buf, int(zerolog.WarnLevel), "json", false)
		log.Info().Msg("hidden")
		log.Warn().Msg("visible")

		assert.NotContains(t, buf.String(), "hidden")
		assert.Contains(t, buf.String(), "visible")
	})

	t.Run("sampler drops events", func(t *testing.T) {
		var buf bytes.Buffer
		log := NewWithWriter(&buf, int(zerolog.InfoLevel), "json", true)
		for i := 0; i < 20; i++ {
			log.Info().Int("count", i).Msg("sampled")
		}
		count := strings.Count(buf.String(), "sampled")
		assert.Greater(t, count, 0)
		assert.Less(t, count, 20)
	})
}
