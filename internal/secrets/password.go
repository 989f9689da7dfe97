package secrets

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/zalando/go-keyring"

	"leadhunt-engine/internal/config"
)

const (
	// "Service" groups the app's secrets in the OS keychain.
	KeyringService = "leadhunt"
)

type Kind string

const (
	SMTP Kind = "smtp"
	IMAP Kind = "imap"
)

var envFallback = map[Kind]string{
	SMTP: "LEADHUNT_SMTP_PASSWORD",
	IMAP: "LEADHUNT_IMAP_PASSWORD",
}

var ErrNotFound = errors.New("password not found")

// Get looks in the keychain first, then the kind's env variable.
func Get(kind Kind, account string) (string, error) {
	if strings.TrimSpace(account) != "" {
		pw, err := keyring.Get(KeyringService, account)
		if err == nil && strings.TrimSpace(pw) != "" {
			return pw, nil
		}
	}
	if v := os.Getenv(envFallback[kind]); v != "" {
		return v, nil
	}
	return "", fmt.Errorf("%s %w (set it in keychain or via %s)", kind, ErrNotFound, envFallback[kind])
}

func Set(account string, password string) error {
	if strings.TrimSpace(account) == "" {
		return errors.New("keyring account name is empty")
	}
	if strings.TrimSpace(password) == "" {
		return errors.New("password is empty")
	}
	return keyring.Set(KeyringService, account, password)
}

func Delete(account string) error {
	if strings.TrimSpace(account) == "" {
		return errors.New("keyring account name is empty")
	}
	return keyring.Delete(KeyringService, account)
}

// Has reports whether the keychain holds a password for account.
func Has(account string) bool {
	if strings.TrimSpace(account) == "" {
		return false
	}
	pw, err := keyring.Get(KeyringService, account)
	return err == nil && pw != ""
}

func SMTPAccount(cfg config.Config) string {
	return fmt.Sprintf("leadhunt:smtp:%s@%s", cfg.SMTP.Username, cfg.SMTP.Host)
}

func IMAPAccount(cfg config.Config) string {
	return fmt.Sprintf("leadhunt:imap:%s@%s", cfg.IMAP.Username, cfg.IMAP.Host)
}

func Account(kind Kind, cfg config.Config) (string, error) {
	switch kind {
	case SMTP:
		return SMTPAccount(cfg), nil
	case IMAP:
		return IMAPAccount(cfg), nil
	}
	return "", fmt.Errorf("unknown secret kind %q", kind)
}
