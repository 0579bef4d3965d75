package gemini_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clinsight/internal/config"
	"clinsight/internal/llm"
	"clinsight/internal/llm/gemini"
	"clinsight/internal/port"
)

func TestNewDescriber_RequiresAPIKey(t *testing.T) {
	_, err := gemini.NewDescriber(context.Background(), &config.ProviderConfig{})
	assert.Error(t, err)
}

func TestDescriber_NoImages(t *testing.T) {
	d, err := gemini.NewDescriber(context.Background(), &config.ProviderConfig{APIKey: "k"})
	require.NoError(t, err)
	_, err = d.Describe(context.Background(), port.VisionInput{CaseText: "x"})
	assert.Error(t, err)
}

func TestRegisteredAsDescriber(t *testing.T) {
	assert.Contains(t, llm.Describers.Names(), "gemini")
}
