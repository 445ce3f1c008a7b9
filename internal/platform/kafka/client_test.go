package kafka

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wordhub/internal/platform/config"
)

func TestTopicFor(t *testing.T) {
	assert.Equal(t, "wordhub.nospam", TopicFor("wordhub.", "NOSPAM"))
}

func TestNewWithoutBrokers(t *testing.T) {
	client, err := New(config.KafkaConfig{})
	require.NoError(t, err)
	assert.Nil(t, client)
}
