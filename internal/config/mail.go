package config

// MailConfig configures the SMTP notification sink.  With no host set the
// worker logs notifications instead of sending them.
type MailConfig struct {
    Host     string
    Port     int
    Username string
    Password string
    From     string
}

func LoadMailConfig() MailConfig {
    return MailConfig{
        Host:     envStr("SMTP_HOST", ""),
        Port:     envInt("SMTP_PORT", 587),
        Username: envStr("SMTP_USERNAME", ""),
        Password: envStr("SMTP_PASSWORD", ""),
        From:     envStr("SMTP_FROM", "no-reply@parking.local"),
    }
}

// Enabled reports whether an SMTP server is configured.
func (m MailConfig) Enabled() bool { return m.Host != "" }
