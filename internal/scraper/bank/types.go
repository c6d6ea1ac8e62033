package bank

// Credentials are the secrets submitted to a bank's login form.
type Credentials struct {
	Username string
	Password string
}

// Redacted returns a copy safe to print or log.
func (c Credentials) Redacted() Credentials {
	out := Credentials{Username: c.Username}
	if c.Password != "" {
		out.Password = "[REDACTED]"
	}
	return out
}
