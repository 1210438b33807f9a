package digestbus

// Config represents the main config
type Config struct {
	DB struct {
		Type string // "bolt", "sqlite", etc.
		Path string
	}

	HTTP struct {
		Addr string
	}

	SMTP struct {
		Host     string
		Port     int
		Username string
		Password string
	}

	News struct {
		BaseURL  string
		APIKey   string
		PageSize int
	}

	Gemini struct {
		BaseURL string
		APIKey  string
		Model   string
	}

	Newsletter struct {
		From    string
		Product struct {
			Name string
		}
		HMAC struct {
			Secret string
		}
		// Schedule is used by the self-chained reschedule after each run;
		// Reactivation by the PATCH re-enable path. They carry different
		// constants on purpose (pending product clarification).
		Schedule     Schedule
		Reactivation Schedule
		Cron         struct {
			Spec string
		}
	}

	Sentry struct {
		DSN string
	}

	AMQP struct {
		URL   string
		Topic string
	}
}
