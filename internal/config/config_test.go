package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

var envKeys = []string{
	"OPENAI_API_KEY", "ASSISTANT_ID", "ANTHROPIC_API_KEY",
	"THREADCHAT_BACKEND", "THREADCHAT_POLL_INTERVAL", "THREADCHAT_OPENAI_API_KEY",
	"THREADCHAT_OPENAI_ASSISTANT_ID", "THREADCHAT_ANTHROPIC_API_KEY",
	"THREADCHAT_DISPATCH_ATTEMPTS", "THREADCHAT_SANDBOX_ROOT",
}

// ConfigTestSuite runs each test in a scratch working directory and HOME so
// no stray threadchat.yaml or .env is picked up.
type ConfigTestSuite struct {
	suite.Suite
	tempDir string
	origDir string
}

func TestConfigSuite(t *testing.T) {
	suite.Run(t, new(ConfigTestSuite))
}

func (s *ConfigTestSuite) SetupTest() {
	var err error
	s.origDir, err = os.Getwd()
	require.NoError(s.T(), err)

	s.tempDir = s.T().TempDir()
	require.NoError(s.T(), os.Chdir(s.tempDir))

	s.T().Setenv("HOME", s.tempDir)
	for _, k := range envKeys {
		s.T().Setenv(k, "")
		os.Unsetenv(k)
	}
}

func (s *ConfigTestSuite) TearDownTest() {
	if s.origDir != "" {
		os.Chdir(s.origDir)
	}
}

func (s *ConfigTestSuite) TestDefaults() {
	cfg, err := Load("")
	require.NoError(s.T(), err)

	assert.Equal(s.T(), BackendOpenAI, cfg.Backend)
	assert.Equal(s.T(), "agent_directory", cfg.Sandbox.Root)
	assert.Equal(s.T(), "thread_id.txt", cfg.State.File)
	assert.Equal(s.T(), ".threadchat", cfg.State.Dir)
	assert.Equal(s.T(), 500*time.Millisecond, cfg.Poll.Interval)
	assert.Equal(s.T(), 3, cfg.Dispatch.Attempts)
	assert.Equal(s.T(), 4*time.Second, cfg.Dispatch.BackoffBase)
	assert.Equal(s.T(), 10*time.Second, cfg.Dispatch.BackoffCap)
	assert.Equal(s.T(), "https://api.openai.com/v1", cfg.OpenAI.BaseURL)
	assert.Equal(s.T(), 60*time.Second, cfg.OpenAI.Timeout)
	assert.Equal(s.T(), int64(1024), cfg.Anthropic.MaxTokens)
	assert.Equal(s.T(), 12000, cfg.Anthropic.TokenBudget)
	assert.Equal(s.T(), "info", cfg.Log.Level)
	assert.False(s.T(), cfg.Log.Console)
}

func (s *ConfigTestSuite) TestFileOverrides() {
	content := `
backend: anthropic
sandbox:
  root: ./files
poll:
  interval: 250ms
anthropic:
  model: claude-test
  token_budget: 4000
`
	path := filepath.Join(s.tempDir, "custom.yaml")
	require.NoError(s.T(), os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), BackendAnthropic, cfg.Backend)
	assert.Equal(s.T(), "./files", cfg.Sandbox.Root)
	assert.Equal(s.T(), 250*time.Millisecond, cfg.Poll.Interval)
	assert.Equal(s.T(), "claude-test", cfg.Anthropic.Model)
	assert.Equal(s.T(), 4000, cfg.Anthropic.TokenBudget)
}

func (s *ConfigTestSuite) TestDiscoversFileInWorkingDir() {
	require.NoError(s.T(), os.WriteFile("threadchat.yaml", []byte("state:\n  file: handle.txt\n"), 0o644))
	cfg, err := Load("")
	require.NoError(s.T(), err)
	assert.Equal(s.T(), "handle.txt", cfg.State.File)
}

func (s *ConfigTestSuite) TestEnvironmentOverrides() {
	s.T().Setenv("OPENAI_API_KEY", "sk-test")
	s.T().Setenv("ASSISTANT_ID", "asst_123")
	s.T().Setenv("THREADCHAT_POLL_INTERVAL", "2s")
	s.T().Setenv("THREADCHAT_DISPATCH_ATTEMPTS", "5")

	cfg, err := Load("")
	require.NoError(s.T(), err)
	assert.Equal(s.T(), "sk-test", cfg.OpenAI.APIKey)
	assert.Equal(s.T(), "asst_123", cfg.OpenAI.AssistantID)
	assert.Equal(s.T(), 2*time.Second, cfg.Poll.Interval)
	assert.Equal(s.T(), 5, cfg.Dispatch.Attempts)
	assert.NoError(s.T(), cfg.CheckCredentials())
}

func (s *ConfigTestSuite) TestDotEnvDoesNotOverride() {
	require.NoError(s.T(), os.WriteFile(".env", []byte("ANTHROPIC_API_KEY=from-file\nOPENAI_API_KEY=from-file\n"), 0o600))
	s.T().Setenv("OPENAI_API_KEY", "from-env")

	require.NoError(s.T(), LoadDotEnv())
	s.T().Cleanup(func() { os.Unsetenv("ANTHROPIC_API_KEY") })

	cfg, err := Load("")
	require.NoError(s.T(), err)
	assert.Equal(s.T(), "from-env", cfg.OpenAI.APIKey)
	assert.Equal(s.T(), "from-file", cfg.Anthropic.APIKey)
}

func (s *ConfigTestSuite) TestMissingDotEnvIgnored() {
	assert.NoError(s.T(), LoadDotEnv(filepath.Join(s.tempDir, "absent.env")))
}

func (s *ConfigTestSuite) TestExplicitMissingFile() {
	cfg, err := Load(filepath.Join(s.tempDir, "nope.yaml"))
	assert.Error(s.T(), err)
	assert.Nil(s.T(), cfg)
}

func (s *ConfigTestSuite) TestInvalidValues() {
	s.T().Setenv("THREADCHAT_BACKEND", "gemini")
	_, err := Load("")
	assert.ErrorContains(s.T(), err, "unknown backend")

	s.T().Setenv("THREADCHAT_BACKEND", "openai")
	s.T().Setenv("THREADCHAT_POLL_INTERVAL", "0s")
	_, err = Load("")
	assert.ErrorContains(s.T(), err, "poll.interval")
}

func (s *ConfigTestSuite) TestMissingCredential() {
	cfg, err := Load("")
	require.NoError(s.T(), err)
	assert.ErrorIs(s.T(), cfg.CheckCredentials(), ErrMissingCredential)

	cfg.Backend = BackendAnthropic
	assert.ErrorIs(s.T(), cfg.CheckCredentials(), ErrMissingCredential)
	cfg.Anthropic.APIKey = "k"
	assert.NoError(s.T(), cfg.CheckCredentials())
}
