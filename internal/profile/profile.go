package profile

import (
	"fmt"
	"net/url"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Profile is the resolved configuration of a captain process.
// The serve command uses the LLM and team sections, the relay command uses
// the relay section; both share mode and logging.
type Profile struct {
	// Unified LLM configuration (OpenAI-compatible protocol, or anthropic)
	LLMProvider    string // deepseek, openai, openrouter, siliconflow, zai, dashscope, ollama, anthropic
	LLMAPIKey      string
	LLMBaseURL     string // optional, has default per provider
	LLMModel       string // optional, has default per provider
	LLMTimeout     int    // LLM request timeout in seconds (default: 120)
	LLMMaxTokens   int
	LLMTemperature float32

	// Analysis team
	AgentLibrary       string // path to the agent descriptor file
	TerminationKeyword string
	TeamSize           int
	MaxTurns           int // 0 means one round over the team
	MaxConcurrentRuns  int

	// Relay
	TelegramToken  string
	AnalyzeURL     string
	AllowedUsers   []int64
	AnalyzeTimeout time.Duration
	MaxReplyLength int
	RateLimit      int // messages per minute per sender, 0 disables

	Mode     string
	Addr     string
	LogLevel string
	Version  string
	Port     int
}

// Provider default configurations for LLM.
// Used when the base URL or model is not explicitly set.
var llmProviderDefaults = map[string]struct {
	BaseURL string
	Model   string
}{
	"deepseek": {
		BaseURL: "https://api.deepseek.com/v1",
		Model:   "deepseek-chat",
	},
	"openai": {
		BaseURL: "https://api.openai.com/v1",
		Model:   "gpt-4o",
	},
	"openrouter": {
		BaseURL: "https://openrouter.ai/api/v1",
		Model:   "deepseek/deepseek-chat",
	},
	"siliconflow": {
		BaseURL: "https://api.siliconflow.cn/v1",
		Model:   "Qwen/Qwen2.5-72B-Instruct",
	},
	"zai": {
		BaseURL: "https://open.bigmodel.cn/api/paas/v4",
		Model:   "glm-4.7",
	},
	"dashscope": {
		BaseURL: "https://dashscope.aliyuncs.com/compatible-mode/v1",
		Model:   "qwen-max-latest",
	},
	"ollama": {
		BaseURL: "http://localhost:11434/v1",
		Model:   "llama3.1",
	},
	"anthropic": {
		BaseURL: "https://api.anthropic.com/v1",
		Model:   "claude-3-5-sonnet-20241022",
	},
}

const defaultLLMProvider = "deepseek"

// SupportedLLMProviders returns the provider names with presets, sorted.
func SupportedLLMProviders() []string {
	names := make([]string, 0, len(llmProviderDefaults))
	for name := range llmProviderDefaults {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// firstEnv returns the first non-empty environment variable among keys.
func firstEnv(keys ...string) string {
	for _, key := range keys {
		if value := os.Getenv(key); value != "" {
			return value
		}
	}
	return ""
}

// getEnvOrDefault returns environment variable value or default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvOrDefaultInt returns environment variable value as int or default value.
func getEnvOrDefaultInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// FromEnv loads the LLM configuration from environment variables.
// CAPTAIN_LLM_* variables win over the unprefixed LLM_* names.
func (p *Profile) FromEnv() {
	p.LLMProvider = strings.ToLower(getEnvOrDefault("CAPTAIN_LLM_PROVIDER", defaultLLMProvider))
	p.LLMAPIKey = firstEnv("CAPTAIN_LLM_API_KEY", "LLM_API_KEY")
	p.LLMBaseURL = firstEnv("CAPTAIN_LLM_BASE_URL", "LLM_BASE_URL")
	p.LLMModel = firstEnv("CAPTAIN_LLM_MODEL", "LLM_MODEL")
	p.LLMTimeout = getEnvOrDefaultInt("CAPTAIN_LLM_TIMEOUT_SECONDS", 120)
	p.LLMMaxTokens = getEnvOrDefaultInt("CAPTAIN_LLM_MAX_TOKENS", 2048)
	p.LLMTemperature = 0.7
	if value := os.Getenv("CAPTAIN_LLM_TEMPERATURE"); value != "" {
		if f, err := strconv.ParseFloat(value, 32); err == nil {
			p.LLMTemperature = float32(f)
		}
	}

	// Unknown providers are left as-is and rejected by ValidateService.
	defaults := llmProviderDefaults[p.LLMProvider]
	if p.LLMBaseURL == "" {
		p.LLMBaseURL = defaults.BaseURL
	}
	if p.LLMModel == "" {
		p.LLMModel = defaults.Model
	}
}

// Validate normalizes the settings shared by every command.
func (p *Profile) Validate() error {
	if p.Mode != "demo" && p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "demo"
	}
	if p.Port <= 0 || p.Port > 65535 {
		return errors.Errorf("invalid port %d", p.Port)
	}
	return nil
}

// ValidateService checks the settings needed by the analysis service.
func (p *Profile) ValidateService() error {
	if err := p.Validate(); err != nil {
		return err
	}
	if _, ok := llmProviderDefaults[p.LLMProvider]; !ok {
		return errors.Errorf("unknown LLM provider %q (supported: %s)", p.LLMProvider, strings.Join(SupportedLLMProviders(), ", "))
	}
	if p.LLMAPIKey == "" && p.LLMProvider != "ollama" {
		return errors.Errorf("LLM API key is required for provider %q (set CAPTAIN_LLM_API_KEY or LLM_API_KEY)", p.LLMProvider)
	}
	if p.AgentLibrary == "" {
		return errors.New("agent library path is required")
	}
	if p.TeamSize < 1 {
		return errors.Errorf("team size must be at least 1, got %d", p.TeamSize)
	}
	if p.MaxTurns < 0 {
		return errors.Errorf("max turns must not be negative, got %d", p.MaxTurns)
	}
	if p.MaxConcurrentRuns < 1 {
		return errors.Errorf("max concurrent runs must be at least 1, got %d", p.MaxConcurrentRuns)
	}
	return nil
}

// ValidateRelay checks the settings needed by the chat relay.
func (p *Profile) ValidateRelay() error {
	if p.Mode != "demo" && p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "demo"
	}
	if p.TelegramToken == "" {
		return errors.New("telegram bot token is required (set CAPTAIN_TELEGRAM_TOKEN or TELEGRAM_TOKEN)")
	}
	u, err := url.Parse(p.AnalyzeURL)
	if err != nil {
		return errors.Wrapf(err, "invalid analyze URL %q", p.AnalyzeURL)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.Errorf("analyze URL must be an absolute http(s) URL, got %q", p.AnalyzeURL)
	}
	if len(p.AllowedUsers) == 0 {
		return errors.New("allow-list is empty (set CAPTAIN_ALLOWED_USERS or ALLOWED_USERS)")
	}
	if p.MaxReplyLength < 1 || p.MaxReplyLength > 4000 {
		return errors.Errorf("max reply length must be between 1 and 4000, got %d", p.MaxReplyLength)
	}
	if p.AnalyzeTimeout <= 0 {
		return errors.Errorf("analyze timeout must be positive, got %s", p.AnalyzeTimeout)
	}
	if p.RateLimit < 0 {
		return errors.Errorf("rate limit must not be negative, got %d", p.RateLimit)
	}
	return nil
}

// ParseAllowedUsers parses a comma or whitespace separated list of
// Telegram user IDs.
func ParseAllowedUsers(raw string) ([]int64, error) {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ';' || r == ' ' || r == '\t' || r == '\n'
	})
	ids := make([]int64, 0, len(fields))
	for _, field := range fields {
		id, err := strconv.ParseInt(field, 10, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid user id %q", field)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// ListenAddr returns the host:port the analysis service binds to.
func (p *Profile) ListenAddr() string {
	return fmt.Sprintf("%s:%d", p.Addr, p.Port)
}
