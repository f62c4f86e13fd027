package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/kelseyhightower/envconfig"
	"golang.org/x/term"
)

// Config contains all configuration parameters for the application.
// Note: Password is prompted at runtime and stored in memory - use GetPasswordBytes()
type Config struct {
	Port            string `envconfig:"PORT" default:"8080"`
	StorePath       string `envconfig:"STORE_PATH" required:"true"`
	RPCURL          string `envconfig:"RPC_URL" default:"https://api.mainnet-beta.solana.com"`
	RPCFallbackURL  string `envconfig:"RPC_FALLBACK_URL" default:"https://solana-rpc.publicnode.com"`
	PriceOracleURL  string `envconfig:"PRICE_ORACLE_URL" default:"https://api.coingecko.com/api/v3"`
	PriceTTLSeconds int    `envconfig:"PRICE_TTL_SECONDS" default:"60"`
	CooldownSeconds int    `envconfig:"PAY_COOLDOWN_SECONDS" default:"30"`

	// Presale/staking program
	ProgramID     string `envconfig:"PROGRAM_ID" required:"true"`
	TokenMint     string `envconfig:"TOKEN_MINT" required:"true"`
	TokenDecimals int    `envconfig:"TOKEN_DECIMALS" default:"6"`
	TokenPriceID  string `envconfig:"TOKEN_PRICE_ID" default:""` // oracle asset id for the mint; empty leaves the token unpriced
	PresaleMinSOL string `envconfig:"PRESALE_MIN_SOL" default:"0.1"`
	PresaleMaxSOL string `envconfig:"PRESALE_MAX_SOL" default:"100"`
	PresaleRate   uint64 `envconfig:"PRESALE_RATE" default:"1000"` // tokens per SOL, default shown while the config account is unreadable
}

// cfg is the global configuration instance
var cfg *Config

// Init loads configuration from environment variables.
func Init() error {
	cfg = &Config{}
	if err := envconfig.Process("", cfg); err != nil {
		return fmt.Errorf("failed to process config: %w", err)
	}
	return nil
}

// Get returns the global configuration instance.
// Panics if Init() was not called.
func Get() *Config {
	if cfg == nil {
		panic("config not initialized, call Init() first")
	}
	return cfg
}

var passwordBytes []byte

// PromptForPassword prompts the user for the store password in the terminal.
// The password is read without echoing (hidden input) and stored in memory.
// Call this at startup before the server begins handling requests.
func PromptForPassword() error {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return errors.New("stdin is not a terminal: run the app interactively to enter password")
	}
	fmt.Fprint(os.Stderr, "Enter store password: ")
	defer fmt.Fprintln(os.Stderr)

	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}
	if len(raw) == 0 {
		return errors.New("password cannot be empty")
	}

	passwordBytes = make([]byte, len(raw))
	copy(passwordBytes, raw)
	clear(raw)
	return nil
}

// GetPasswordBytes returns the password stored in memory (from PromptForPassword).
// Returns an error if the password was not set.
// Caller must zero the returned slice after use for security.
func GetPasswordBytes() ([]byte, error) {
	if len(passwordBytes) == 0 {
		return nil, errors.New("password not set: call PromptForPassword at startup")
	}
	out := make([]byte, len(passwordBytes))
	copy(out, passwordBytes)
	return out, nil
}
