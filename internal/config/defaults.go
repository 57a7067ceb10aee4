package config

func Defaults() *Config {
	return &Config{
		General: GeneralConfig{
			LogLevel:            "info",
			MaxConcurrentEvents: 5,
		},
		Telegram: TelegramConfig{
			Token:     "",
			ParseMode: "Markdown",
		},
		Solana: SolanaConfig{
			RPCURL:         "https://api.mainnet-beta.solana.com",
			TimeoutSeconds: 10,
			LamportsPerSol: 1_000_000_000,
		},
		Payment: PaymentConfig{
			Receiver: "",
			Amount:   0.1,
			Asset:    "SOL",
		},
		Wallet: WalletConfig{
			StrictValidation: false,
		},
		History: HistoryConfig{
			Enabled: true,
			DBPath:  "~/.solbot/history.db",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Listen:  "127.0.0.1:9108",
		},
	}
}
